package conversation

import (
	"fmt"
	"testing"

	"github.com/mkravets/safedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessagesWithoutContext(t *testing.T) {
	w := NewWindow(10)

	messages := w.BuildMessages("chat-1", "what is ppe?", "be helpful", nil)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleSystem, messages[0].Role)
	assert.Equal(t, "be helpful", messages[0].Text())
	assert.Equal(t, domain.RoleUser, messages[1].Role)
	assert.Equal(t, "what is ppe?", messages[1].Text())
}

func TestBuildMessagesRendersContextBlock(t *testing.T) {
	w := NewWindow(10)
	chunks := []domain.DocumentChunk{
		{SourcePath: "/kb/ppe.txt", Text: "wear a helmet "},
		{SourcePath: "/kb/fire.txt", Text: "keep exits clear"},
	}

	messages := w.BuildMessages("chat-1", "question", "base prompt", chunks)
	system := messages[0].Text()
	assert.Contains(t, system, "base prompt")
	assert.Contains(t, system, "[1] Source: ppe.txt\nwear a helmet")
	assert.Contains(t, system, "\n---\n")
	assert.Contains(t, system, "[2] Source: fire.txt\nkeep exits clear")
}

func TestBuildMessagesIncludesHistoryInOrder(t *testing.T) {
	w := NewWindow(10)
	w.Commit("chat-1", "q1", "a1")
	w.Commit("chat-1", "q2", "a2")

	messages := w.BuildMessages("chat-1", "q3", "sys", nil)
	require.Len(t, messages, 6)
	assert.Equal(t, "q1", messages[1].Text())
	assert.Equal(t, "a1", messages[2].Text())
	assert.Equal(t, "q2", messages[3].Text())
	assert.Equal(t, "a2", messages[4].Text())
	assert.Equal(t, "q3", messages[5].Text())
}

func TestBuildMessagesDoesNotMutateHistory(t *testing.T) {
	w := NewWindow(10)
	w.BuildMessages("chat-1", "hello", "sys", nil)
	assert.Zero(t, w.Len("chat-1"))
}

func TestCommitEvictsWholePairs(t *testing.T) {
	const maxPairs = 3
	w := NewWindow(maxPairs)

	for i := 0; i < maxPairs*2+1; i++ {
		w.Commit("chat-1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	assert.Equal(t, maxPairs*2, w.Len("chat-1"))

	messages := w.BuildMessages("chat-1", "next", "sys", nil)
	history := messages[1 : len(messages)-1]
	require.Len(t, history, maxPairs*2)
	// Oldest pairs evicted first; the window never starts on an assistant turn.
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, "q4", history[0].Text())
	assert.Equal(t, domain.RoleAssistant, history[len(history)-1].Role)
	assert.Equal(t, "a6", history[len(history)-1].Text())
}

func TestConversationsAreIndependent(t *testing.T) {
	w := NewWindow(5)
	w.Commit("chat-1", "q", "a")

	assert.Equal(t, 2, w.Len("chat-1"))
	assert.Zero(t, w.Len("chat-2"))
}

func TestResetUnknownIDIsNoOp(t *testing.T) {
	w := NewWindow(5)
	w.Reset("never-seen")

	w.Commit("chat-1", "q", "a")
	w.Reset("chat-1")
	assert.Zero(t, w.Len("chat-1"))
}
