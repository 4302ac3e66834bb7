package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mkravets/safedesk/internal/domain"
)

// QuizRepository persists quiz sessions keyed by user id. It implements
// quiz.SessionStore.
type QuizRepository struct {
	db *DB
}

// NewQuizRepository creates a new quiz repository
func NewQuizRepository(db *DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// Get retrieves the user's session, or (nil, nil) when absent.
func (r *QuizRepository) Get(ctx context.Context, userID int64) (*domain.QuizSession, error) {
	session := &domain.QuizSession{}
	var optionsJSON string
	var explanation, sourcesJSON sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, question, options, correct_index, explanation, sources,
		       questions_answered, correct_answers
		FROM quiz_sessions WHERE user_id = ?
	`, userID).Scan(&session.UserID, &session.Question, &optionsJSON,
		&session.CorrectIndex, &explanation, &sourcesJSON,
		&session.QuestionsAnswered, &session.CorrectAnswers)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(optionsJSON), &session.Options); err != nil {
		return nil, err
	}
	session.Explanation = explanation.String
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &session.Sources); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// Set writes the session, replacing any previous one for the user.
func (r *QuizRepository) Set(ctx context.Context, session *domain.QuizSession) error {
	optionsJSON, err := json.Marshal(session.Options)
	if err != nil {
		return err
	}
	sourcesJSON, err := json.Marshal(session.Sources)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quiz_sessions (user_id, question, options, correct_index, explanation,
		                           sources, created_at, questions_answered, correct_answers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			question = excluded.question,
			options = excluded.options,
			correct_index = excluded.correct_index,
			explanation = excluded.explanation,
			sources = excluded.sources,
			created_at = excluded.created_at,
			questions_answered = excluded.questions_answered,
			correct_answers = excluded.correct_answers
	`, session.UserID, session.Question, string(optionsJSON), session.CorrectIndex,
		session.Explanation, string(sourcesJSON), time.Now().UTC(),
		session.QuestionsAnswered, session.CorrectAnswers)
	return err
}

// Delete removes the user's session. Missing sessions are a no-op.
func (r *QuizRepository) Delete(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM quiz_sessions WHERE user_id = ?`, userID)
	return err
}
