package domain

// QuizQuestion is a validated multiple-choice question generated by the model.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	Sources      []string `json:"sources,omitempty"`
}

// QuizSession is the per-user quiz state: the live question plus running score.
// At most one live session exists per user.
type QuizSession struct {
	UserID            int64    `json:"user_id"`
	Question          string   `json:"question"`
	Options           []string `json:"options"`
	CorrectIndex      int      `json:"correct_index"`
	Explanation       string   `json:"explanation"`
	Sources           []string `json:"sources,omitempty"`
	QuestionsAnswered int      `json:"questions_answered"`
	CorrectAnswers    int      `json:"correct_answers"`
}

// GradeResult is the outcome of grading one answer.
type GradeResult struct {
	Correct           bool   `json:"correct"`
	CorrectIndex      int    `json:"correct_index"`
	CorrectAnswer     string `json:"correct_answer"`
	Explanation       string `json:"explanation,omitempty"`
	QuestionsAnswered int    `json:"questions_answered"`
	CorrectAnswers    int    `json:"correct_answers"`
}

// QuizSummary is the final score snapshot returned when a quiz ends.
type QuizSummary struct {
	QuestionsAnswered int `json:"questions_answered"`
	CorrectAnswers    int `json:"correct_answers"`
}
