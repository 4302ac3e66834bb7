package quiz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mkravets/safedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryStore is an in-memory SessionStore for tests.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[int64]domain.QuizSession
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[int64]domain.QuizSession)}
}

func (m *memoryStore) Get(_ context.Context, userID int64) (*domain.QuizSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	copied := s
	return &copied, nil
}

func (m *memoryStore) Set(_ context.Context, session *domain.QuizSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.UserID] = *session
	return nil
}

func (m *memoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// fakeModel returns a canned completion or error.
type fakeModel struct {
	reply    string
	err      error
	lastSent []domain.Message
}

func (f *fakeModel) Chat(_ context.Context, messages []domain.Message) (string, error) {
	f.lastSent = messages
	return f.reply, f.err
}

const validQuestionJSON = `{"question":"Which item is PPE?","options":["Helmet","Desk","Chair","Lamp"],"correct_index":0,"explanation":"Helmets protect the head."}`

func newTestEngine(model *fakeModel, store SessionStore) *Engine {
	return NewEngine(model, store, zap.NewNop())
}

func TestParseQuestion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"raw json", validQuestionJSON},
		{"fenced json with tag", "```json\n" + validQuestionJSON + "\n```"},
		{"fenced json without tag", "```\n" + validQuestionJSON + "\n```"},
		{"json after commentary fence", "Here you go:\n```json\n" + validQuestionJSON + "\n```\nGood luck!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuestion(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "Which item is PPE?", q.Question)
			require.Len(t, q.Options, 4)
			assert.Equal(t, 0, q.CorrectIndex)
			assert.Equal(t, "Helmets protect the head.", q.Explanation)
		})
	}
}

func TestParseQuestionMalformed(t *testing.T) {
	_, err := ParseQuestion("the model rambled and returned no JSON at all")
	assert.ErrorIs(t, err, domain.ErrMalformedQuestion)
}

func TestParseQuestionValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"three options", `{"question":"q?","options":["a","b","c"],"correct_index":0,"explanation":""}`},
		{"blank option dropped", `{"question":"q?","options":["a","b","c","  "],"correct_index":0,"explanation":""}`},
		{"index out of range", `{"question":"q?","options":["a","b","c","d"],"correct_index":4,"explanation":""}`},
		{"negative index", `{"question":"q?","options":["a","b","c","d"],"correct_index":-1,"explanation":""}`},
		{"empty question", `{"question":"  ","options":["a","b","c","d"],"correct_index":1,"explanation":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuestion(tt.raw)
			assert.ErrorIs(t, err, domain.ErrInvalidQuestion)
		})
	}
}

func TestParseQuestionTrimsFields(t *testing.T) {
	q, err := ParseQuestion(`{"question":" q? ","options":[" a ","b","c","d"],"correct_index":1,"explanation":" because "}`)
	require.NoError(t, err)
	assert.Equal(t, "q?", q.Question)
	assert.Equal(t, "a", q.Options[0])
	assert.Equal(t, "because", q.Explanation)
}

func TestGenerateQuestionUsesContext(t *testing.T) {
	model := &fakeModel{reply: validQuestionJSON}
	engine := newTestEngine(model, newMemoryStore())

	chunks := []domain.DocumentChunk{
		{SourcePath: "/kb/ppe.txt", Text: "helmets required"},
		{SourcePath: "/kb/fire.txt", Text: "fire drills quarterly"},
	}
	q, err := engine.GenerateQuestion(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, []string{"/kb/ppe.txt", "/kb/fire.txt"}, q.Sources)

	require.Len(t, model.lastSent, 2)
	prompt := model.lastSent[1].Text()
	assert.Contains(t, prompt, "[1] helmets required")
	assert.Contains(t, prompt, "[2] fire drills quarterly")
}

func TestGenerateQuestionFallbackWithoutContext(t *testing.T) {
	model := &fakeModel{reply: validQuestionJSON}
	engine := newTestEngine(model, newMemoryStore())

	q, err := engine.GenerateQuestion(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, q.Sources)
	assert.Contains(t, model.lastSent[1].Text(), "General requirements")
}

func TestGenerateQuestionPropagatesModelError(t *testing.T) {
	wantErr := errors.New("endpoint down")
	engine := newTestEngine(&fakeModel{err: wantErr}, newMemoryStore())

	_, err := engine.GenerateQuestion(context.Background(), nil)
	assert.ErrorIs(t, err, wantErr)
}

func sampleQuestion() *domain.QuizQuestion {
	return &domain.QuizQuestion{
		Question:     "Which extinguisher class covers electrical fires?",
		Options:      []string{"A", "B", "C", "D"},
		CorrectIndex: 2,
		Explanation:  "Class C covers energized equipment.",
	}
}

func TestGradeCorrectAnswer(t *testing.T) {
	store := newMemoryStore()
	engine := newTestEngine(&fakeModel{}, store)
	ctx := context.Background()
	require.NoError(t, engine.Begin(ctx, 7, sampleQuestion()))

	result, err := engine.Grade(ctx, 7, 2)
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, 2, result.CorrectIndex)
	assert.Equal(t, "C", result.CorrectAnswer)
	assert.Equal(t, 1, result.QuestionsAnswered)
	assert.Equal(t, 1, result.CorrectAnswers)
}

func TestGradeWrongAnswer(t *testing.T) {
	engine := newTestEngine(&fakeModel{}, newMemoryStore())
	ctx := context.Background()
	require.NoError(t, engine.Begin(ctx, 7, sampleQuestion()))

	result, err := engine.Grade(ctx, 7, 0)
	require.NoError(t, err)
	assert.False(t, result.Correct)
	assert.Equal(t, 1, result.QuestionsAnswered)
	assert.Zero(t, result.CorrectAnswers)
}

func TestGradeOutOfRangeLeavesCountersUnchanged(t *testing.T) {
	store := newMemoryStore()
	engine := newTestEngine(&fakeModel{}, store)
	ctx := context.Background()
	require.NoError(t, engine.Begin(ctx, 7, sampleQuestion()))

	_, err := engine.Grade(ctx, 7, 5)
	assert.ErrorIs(t, err, domain.ErrAnswerOutOfRange)

	session, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, session.QuestionsAnswered)
	assert.Zero(t, session.CorrectAnswers)
}

func TestGradeWithoutSession(t *testing.T) {
	engine := newTestEngine(&fakeModel{}, newMemoryStore())
	_, err := engine.Grade(context.Background(), 404, 0)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestAdvancePreservesCounters(t *testing.T) {
	store := newMemoryStore()
	engine := newTestEngine(&fakeModel{}, store)
	ctx := context.Background()
	require.NoError(t, engine.Begin(ctx, 7, sampleQuestion()))
	_, err := engine.Grade(ctx, 7, 2)
	require.NoError(t, err)

	next := sampleQuestion()
	next.Question = "A different question?"
	require.NoError(t, engine.Advance(ctx, 7, next))

	session, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "A different question?", session.Question)
	assert.Equal(t, 1, session.QuestionsAnswered)
	assert.Equal(t, 1, session.CorrectAnswers)
}

func TestFinish(t *testing.T) {
	store := newMemoryStore()
	engine := newTestEngine(&fakeModel{}, store)
	ctx := context.Background()
	require.NoError(t, engine.Begin(ctx, 7, sampleQuestion()))
	_, err := engine.Grade(ctx, 7, 2)
	require.NoError(t, err)
	_, err = engine.Grade(ctx, 7, 2) // session still holds the same question
	require.NoError(t, err)

	summary, err := engine.Finish(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.QuestionsAnswered)
	assert.Equal(t, 2, summary.CorrectAnswers)

	// Session is gone; finishing again yields zeros.
	summary, err = engine.Finish(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, summary.QuestionsAnswered)
	assert.Zero(t, summary.CorrectAnswers)
}
