// Package conversation keeps the bounded rolling message history used for
// prompt continuity, keyed by conversation id.
package conversation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mkravets/safedesk/internal/domain"
)

// Window holds per-conversation histories capped at 2 x maxMessages entries.
// Eviction is FIFO and always removes whole user+assistant pairs.
type Window struct {
	maxMessages int

	mu      sync.Mutex
	history map[string][]domain.Message
}

// NewWindow creates a window keeping at most maxMessages user/assistant
// pairs per conversation.
func NewWindow(maxMessages int) *Window {
	if maxMessages <= 0 {
		maxMessages = 10
	}
	return &Window{
		maxMessages: maxMessages,
		history:     make(map[string][]domain.Message),
	}
}

// BuildMessages assembles the full prompt for a model call: one system
// message (base prompt plus a rendered context block when chunks are
// present), the stored history in original order, then the new user turn.
// It does not mutate state; Commit records the turn after the call succeeds.
func (w *Window) BuildMessages(conversationID, userText, systemPrompt string, chunks []domain.DocumentChunk) []domain.Message {
	systemContent := systemPrompt + renderContext(chunks)

	w.mu.Lock()
	stored := w.history[conversationID]
	history := make([]domain.Message, len(stored))
	copy(history, stored)
	w.mu.Unlock()

	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.TextMessage(domain.RoleSystem, systemContent))
	messages = append(messages, history...)
	messages = append(messages, domain.TextMessage(domain.RoleUser, userText))
	return messages
}

func renderContext(chunks []domain.DocumentChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	snippets := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		snippets = append(snippets, fmt.Sprintf("[%d] Source: %s\n%s",
			i+1, chunk.SourceName(), strings.TrimSpace(chunk.Text)))
	}
	return "\n\nRelevant excerpts from the regulatory base:\n" + strings.Join(snippets, "\n---\n")
}

// Commit appends a user/assistant pair to the conversation and evicts the
// oldest pairs once the window exceeds its bound.
func (w *Window) Commit(conversationID, userText, assistantText string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	history := append(w.history[conversationID],
		domain.TextMessage(domain.RoleUser, userText),
		domain.TextMessage(domain.RoleAssistant, assistantText),
	)
	if excess := len(history) - w.maxMessages*2; excess > 0 {
		history = history[excess:]
	}
	w.history[conversationID] = history
}

// Reset discards the history for a conversation. Unknown ids are a no-op.
func (w *Window) Reset(conversationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.history, conversationID)
}

// Len returns the number of stored messages for a conversation.
func (w *Window) Len(conversationID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.history[conversationID])
}
