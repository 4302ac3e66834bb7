package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mkravets/safedesk/internal/config"
	"github.com/mkravets/safedesk/internal/domain"
	"github.com/mkravets/safedesk/internal/index"
	"github.com/mkravets/safedesk/internal/quiz"
	"github.com/mkravets/safedesk/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const quizReply = `{"question":"Which item is PPE?","options":["Helmet","Desk","Chair","Lamp"],"correct_index":0,"explanation":"Helmets protect the head."}`

type quizFixture struct {
	service *QuizService
	model   *fakeModel
	quizzes *repository.QuizRepository
	user    *domain.User
}

func newQuizFixture(t *testing.T) *quizFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Knowledge = config.KnowledgeConfig{Root: filepath.Join(t.TempDir(), "missing"), MaxChunkLen: 1200}
	cfg.Quiz.ContextChunks = 2

	logger := zap.NewNop()
	store := index.NewStore(cfg.Knowledge, logger)
	require.NoError(t, store.Reload())

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "quiz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := repository.NewUserRepository(db)
	interactions := repository.NewInteractionRepository(db)
	quizzes := repository.NewQuizRepository(db)
	model := &fakeModel{reply: quizReply}
	engine := quiz.NewEngine(model, quizzes, logger)

	svc := NewQuizService(cfg, engine, store, users, interactions, logger)

	user, err := users.GetOrCreate(1001, "")
	require.NoError(t, err)
	require.NoError(t, users.UpdateState(user.ID, domain.UserStateActive))

	return &quizFixture{service: svc, model: model, quizzes: quizzes, user: user}
}

func TestQuizStartCreatesSession(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()

	question, err := fx.service.Start(ctx, fx.user)
	require.NoError(t, err)
	assert.Equal(t, "Which item is PPE?", question.Question)

	session, err := fx.quizzes.Get(ctx, fx.user.ID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Zero(t, session.QuestionsAnswered)
	assert.Zero(t, session.CorrectAnswers)
}

func TestQuizStartGenerationFailureWritesNoSession(t *testing.T) {
	fx := newQuizFixture(t)
	fx.model.err = errors.New("model offline")
	ctx := context.Background()

	_, err := fx.service.Start(ctx, fx.user)
	require.Error(t, err)

	session, err := fx.quizzes.Get(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestQuizStartMalformedQuestionWritesNoSession(t *testing.T) {
	fx := newQuizFixture(t)
	fx.model.reply = "not json at all"
	ctx := context.Background()

	_, err := fx.service.Start(ctx, fx.user)
	assert.ErrorIs(t, err, domain.ErrMalformedQuestion)

	session, err := fx.quizzes.Get(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestQuizAnswerGradesAndAdvances(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()

	_, err := fx.service.Start(ctx, fx.user)
	require.NoError(t, err)

	outcome, err := fx.service.Answer(ctx, fx.user, 0)
	require.NoError(t, err)
	assert.True(t, outcome.Result.Correct)
	assert.Equal(t, "Helmet", outcome.Result.CorrectAnswer)
	assert.Equal(t, 1, outcome.Result.QuestionsAnswered)
	assert.Equal(t, 1, outcome.Result.CorrectAnswers)
	require.NotNil(t, outcome.NextQuestion)

	// Counters carry into the replaced session.
	session, err := fx.quizzes.Get(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.QuestionsAnswered)
}

func TestQuizAnswerOutOfRange(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()

	_, err := fx.service.Start(ctx, fx.user)
	require.NoError(t, err)

	_, err = fx.service.Answer(ctx, fx.user, 5)
	assert.ErrorIs(t, err, domain.ErrAnswerOutOfRange)

	session, err := fx.quizzes.Get(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Zero(t, session.QuestionsAnswered)
}

func TestQuizAnswerWithoutSession(t *testing.T) {
	fx := newQuizFixture(t)
	_, err := fx.service.Answer(context.Background(), fx.user, 0)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestQuizAnswerSurvivesNextGenerationFailure(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()

	_, err := fx.service.Start(ctx, fx.user)
	require.NoError(t, err)

	fx.model.err = errors.New("model offline")
	outcome, err := fx.service.Answer(ctx, fx.user, 0)
	require.NoError(t, err)
	assert.True(t, outcome.Result.Correct)
	assert.Nil(t, outcome.NextQuestion)

	// Grading still counted.
	session, err := fx.quizzes.Get(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.QuestionsAnswered)
}

func TestQuizFinish(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()

	_, err := fx.service.Start(ctx, fx.user)
	require.NoError(t, err)
	_, err = fx.service.Answer(ctx, fx.user, 0)
	require.NoError(t, err)

	summary, err := fx.service.Finish(ctx, fx.user)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.QuestionsAnswered)
	assert.Equal(t, 1, summary.CorrectAnswers)

	session, err := fx.quizzes.Get(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Nil(t, session)

	// Finishing with no session yields zeros, not an error.
	summary, err = fx.service.Finish(ctx, fx.user)
	require.NoError(t, err)
	assert.Zero(t, summary.QuestionsAnswered)
}
