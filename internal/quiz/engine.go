// Package quiz generates multiple-choice questions through the model-call
// service and grades answers against per-user sessions.
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkravets/safedesk/internal/domain"
	"github.com/mkravets/safedesk/internal/llm"
	"go.uber.org/zap"
)

// SessionStore is the keyed persistence contract for quiz sessions.
// Get returns (nil, nil) when the user has no session.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*domain.QuizSession, error)
	Set(ctx context.Context, session *domain.QuizSession) error
	Delete(ctx context.Context, userID int64) error
}

// fallbackContext seeds question generation when the index has no chunks.
const fallbackContext = "General requirements: occupational safety briefings, personal protective " +
	"equipment, employer responsibilities, training and knowledge verification procedures."

const generationSystemPrompt = "You are a workplace safety instructor. " +
	"Create test questions using only the provided context."

// Engine drives quiz question generation and grading.
type Engine struct {
	model  llm.Caller
	store  SessionStore
	logger *zap.Logger
}

// NewEngine creates a quiz engine.
func NewEngine(model llm.Caller, store SessionStore, logger *zap.Logger) *Engine {
	return &Engine{model: model, store: store, logger: logger}
}

// GenerateQuestion asks the model for one question grounded in the given
// chunks (or the generic fallback when none are supplied) and validates the
// returned JSON. No session state is touched.
func (e *Engine) GenerateQuestion(ctx context.Context, chunks []domain.DocumentChunk) (*domain.QuizQuestion, error) {
	contextText := fallbackContext
	var sources []string
	if len(chunks) > 0 {
		snippets := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			snippets = append(snippets, fmt.Sprintf("[%d] %s", i+1, strings.TrimSpace(chunk.Text)))
			sources = append(sources, chunk.SourcePath)
		}
		contextText = strings.Join(snippets, "\n\n")
	}

	prompt := "Generate one workplace safety test question based on the context. " +
		"The question must have exactly four answer options, only one of them correct. " +
		"Return strict JSON with no commentary:\n" +
		`{"question":"...","options":["...","...","...","..."],"correct_index":0,"explanation":"..."}` + "\n" +
		"correct_index is zero-based. explanation briefly justifies the correct answer.\n\n" +
		"Context:\n" + contextText

	messages := []domain.Message{
		domain.TextMessage(domain.RoleSystem, generationSystemPrompt),
		domain.TextMessage(domain.RoleUser, prompt),
	}

	raw, err := e.model.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	question, err := ParseQuestion(raw)
	if err != nil {
		e.logger.Warn("Model returned unusable quiz question", zap.Error(err))
		return nil, err
	}
	question.Sources = sources
	return question, nil
}

type questionPayload struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

// ParseQuestion extracts a validated question from untrusted model output.
// Candidates are tried in order (raw text, then each fenced segment with a
// leading "json" tag stripped); the first that parses as JSON wins, after
// which validation failures are surfaced verbatim.
func ParseQuestion(raw string) (*domain.QuizQuestion, error) {
	var payload questionPayload
	parsed := false
	for _, candidate := range jsonCandidates(raw) {
		if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
			parsed = true
			break
		}
	}
	if !parsed {
		return nil, domain.ErrMalformedQuestion
	}

	options := make([]string, 0, len(payload.Options))
	for _, opt := range payload.Options {
		if trimmed := strings.TrimSpace(opt); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	if len(options) != 4 {
		return nil, fmt.Errorf("%w: expected 4 answer options, got %d", domain.ErrInvalidQuestion, len(options))
	}
	if payload.CorrectIndex < 0 || payload.CorrectIndex > 3 {
		return nil, fmt.Errorf("%w: correct_index %d outside [0,3]", domain.ErrInvalidQuestion, payload.CorrectIndex)
	}
	question := strings.TrimSpace(payload.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question text", domain.ErrInvalidQuestion)
	}

	return &domain.QuizQuestion{
		Question:     question,
		Options:      options,
		CorrectIndex: payload.CorrectIndex,
		Explanation:  strings.TrimSpace(payload.Explanation),
	}, nil
}

func jsonCandidates(raw string) []string {
	text := strings.TrimSpace(raw)
	candidates := []string{text}
	if strings.Contains(text, "```") {
		for _, part := range strings.Split(text, "```") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if len(part) >= 4 && strings.EqualFold(part[:4], "json") {
				part = strings.TrimSpace(part[4:])
			}
			candidates = append(candidates, part)
		}
	}
	return candidates
}

// Begin stores a fresh session with zeroed counters.
func (e *Engine) Begin(ctx context.Context, userID int64, question *domain.QuizQuestion) error {
	return e.store.Set(ctx, sessionFromQuestion(userID, question, 0, 0))
}

// Advance replaces the session's question content while preserving the
// running counters.
func (e *Engine) Advance(ctx context.Context, userID int64, question *domain.QuizQuestion) error {
	current, err := e.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	answered, correct := 0, 0
	if current != nil {
		answered, correct = current.QuestionsAnswered, current.CorrectAnswers
	}
	return e.store.Set(ctx, sessionFromQuestion(userID, question, answered, correct))
}

func sessionFromQuestion(userID int64, q *domain.QuizQuestion, answered, correct int) *domain.QuizSession {
	return &domain.QuizSession{
		UserID:            userID,
		Question:          q.Question,
		Options:           q.Options,
		CorrectIndex:      q.CorrectIndex,
		Explanation:       q.Explanation,
		Sources:           q.Sources,
		QuestionsAnswered: answered,
		CorrectAnswers:    correct,
	}
}

// Grade checks the chosen option against the live session and updates the
// running counters. Counters are untouched on any error.
func (e *Engine) Grade(ctx context.Context, userID int64, chosenIndex int) (*domain.GradeResult, error) {
	session, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNoActiveSession
	}
	if chosenIndex < 0 || chosenIndex >= len(session.Options) {
		return nil, fmt.Errorf("%w: %d of %d options", domain.ErrAnswerOutOfRange, chosenIndex, len(session.Options))
	}

	correct := chosenIndex == session.CorrectIndex
	session.QuestionsAnswered++
	if correct {
		session.CorrectAnswers++
	}
	if err := e.store.Set(ctx, session); err != nil {
		return nil, err
	}

	return &domain.GradeResult{
		Correct:           correct,
		CorrectIndex:      session.CorrectIndex,
		CorrectAnswer:     session.Options[session.CorrectIndex],
		Explanation:       session.Explanation,
		QuestionsAnswered: session.QuestionsAnswered,
		CorrectAnswers:    session.CorrectAnswers,
	}, nil
}

// Current returns the live session, or ErrNoActiveSession.
func (e *Engine) Current(ctx context.Context, userID int64) (*domain.QuizSession, error) {
	session, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNoActiveSession
	}
	return session, nil
}

// Finish returns the final score snapshot and clears the session. A user
// with no session gets a zero-valued summary.
func (e *Engine) Finish(ctx context.Context, userID int64) (domain.QuizSummary, error) {
	session, err := e.store.Get(ctx, userID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	if session == nil {
		return domain.QuizSummary{}, nil
	}
	summary := domain.QuizSummary{
		QuestionsAnswered: session.QuestionsAnswered,
		CorrectAnswers:    session.CorrectAnswers,
	}
	if err := e.store.Delete(ctx, userID); err != nil {
		return domain.QuizSummary{}, err
	}
	return summary, nil
}
