package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mkravets/safedesk/internal/config"
	"github.com/mkravets/safedesk/internal/domain"
	"github.com/mkravets/safedesk/internal/index"
	"github.com/mkravets/safedesk/internal/quiz"
	"github.com/mkravets/safedesk/internal/repository"
	"go.uber.org/zap"
)

// QuizService orchestrates the quiz mini-game: question generation from
// sampled context, grading, and session lifecycle.
type QuizService struct {
	cfg          *config.Config
	engine       *quiz.Engine
	store        *index.Store
	users        *repository.UserRepository
	interactions *repository.InteractionRepository
	logger       *zap.Logger

	userLocks *keyedMutex
}

// NewQuizService creates a new quiz service
func NewQuizService(
	cfg *config.Config,
	engine *quiz.Engine,
	store *index.Store,
	users *repository.UserRepository,
	interactions *repository.InteractionRepository,
	logger *zap.Logger,
) *QuizService {
	return &QuizService{
		cfg:          cfg,
		engine:       engine,
		store:        store,
		users:        users,
		interactions: interactions,
		logger:       logger,
		userLocks:    newKeyedMutex(),
	}
}

// AnswerOutcome bundles the grading result with the next generated question.
// NextQuestion is nil when generating the follow-up failed; the graded result
// still stands.
type AnswerOutcome struct {
	Result       *domain.GradeResult  `json:"result"`
	NextQuestion *domain.QuizQuestion `json:"next_question,omitempty"`
}

// generateQuestion samples index context and asks the engine for a question.
// Nothing is persisted here; failures propagate with no session written.
func (s *QuizService) generateQuestion(ctx context.Context, user *domain.User) (*domain.QuizQuestion, error) {
	chunks := s.store.Sample(s.cfg.Quiz.ContextChunks)
	question, err := s.engine.GenerateQuestion(ctx, chunks)
	if err != nil {
		return nil, err
	}
	s.auditGeneration(user, question)
	return question, nil
}

// Start begins a quiz for the user: a fresh question, zeroed counters. Any
// prior session content is overwritten.
func (s *QuizService) Start(ctx context.Context, user *domain.User) (*domain.QuizQuestion, error) {
	unlock := s.userLocks.Lock(userKey(user.ID))
	defer unlock()

	question, err := s.generateQuestion(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Begin(ctx, user.ID, question); err != nil {
		return nil, err
	}
	return question, nil
}

// Answer grades the user's choice and immediately generates the next
// question, preserving the running score. The quiz continues until the user
// finishes it explicitly.
func (s *QuizService) Answer(ctx context.Context, user *domain.User, chosenIndex int) (*AnswerOutcome, error) {
	unlock := s.userLocks.Lock(userKey(user.ID))
	defer unlock()

	result, err := s.engine.Grade(ctx, user.ID, chosenIndex)
	if err != nil {
		return nil, err
	}

	outcome := &AnswerOutcome{Result: result}
	next, err := s.generateQuestion(ctx, user)
	if err != nil {
		// The answer is already graded and counted; the user can retry by
		// answering the current question again only after a restart, so
		// surface the gap in logs rather than failing the whole exchange.
		s.logger.Warn("Failed to generate follow-up question", zap.Int64("user_id", user.ID), zap.Error(err))
		return outcome, nil
	}
	if err := s.engine.Advance(ctx, user.ID, next); err != nil {
		return nil, err
	}
	outcome.NextQuestion = next
	return outcome, nil
}

// Current returns the question the user is expected to answer.
func (s *QuizService) Current(ctx context.Context, user *domain.User) (*domain.QuizSession, error) {
	return s.engine.Current(ctx, user.ID)
}

// Finish ends the quiz and returns the final score.
func (s *QuizService) Finish(ctx context.Context, user *domain.User) (domain.QuizSummary, error) {
	unlock := s.userLocks.Lock(userKey(user.ID))
	defer unlock()

	return s.engine.Finish(ctx, user.ID)
}

func (s *QuizService) auditGeneration(user *domain.User, question *domain.QuizQuestion) {
	summary := fmt.Sprintf("%s | %s", question.Question, strings.Join(question.Options, "; "))
	if err := s.interactions.LogInteraction(user.ID, "[Quiz] generation", summary); err != nil {
		s.logger.Warn("Failed to log quiz generation", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if err := s.users.UpdateLastActive(user.ID); err != nil {
		s.logger.Warn("Failed to update last active", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	for _, path := range question.Sources {
		if err := s.interactions.LogDocumentUsage(user.ID, path); err != nil {
			s.logger.Warn("Failed to log document usage", zap.String("doc", path), zap.Error(err))
		}
	}
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
