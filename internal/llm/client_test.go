package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkravets/safedesk/internal/config"
	"github.com/mkravets/safedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	return NewClient(config.LLMConfig{
		APIURL:      url,
		Model:       "test-model",
		Temperature: 0.3,
		MaxTokens:   256,
	}, zap.NewNop())
}

func TestChatReturnsCompletion(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hello there  "}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	reply, err := client.Chat(context.Background(), []domain.Message{
		domain.TextMessage(domain.RoleSystem, "sys"),
		domain.TextMessage(domain.RoleUser, "hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)

	assert.Equal(t, "test-model", captured["model"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	// Single text parts are sent as plain string content.
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "sys", first["content"])
}

func TestChatEncodesMultimodalContent(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Chat(context.Background(), []domain.Message{
		{
			Role: domain.RoleUser,
			Parts: []domain.ContentPart{
				{Type: domain.PartText, Text: "what is in this photo?"},
				{Type: domain.PartImageURL, ImageURL: "data:image/png;base64,aGk="},
			},
		},
	})
	require.NoError(t, err)

	messages := captured["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	textPart := content[0].(map[string]any)
	assert.Equal(t, "text", textPart["type"])
	imagePart := content[1].(map[string]any)
	assert.Equal(t, "image_url", imagePart["type"])
	assert.Equal(t, "data:image/png;base64,aGk=",
		imagePart["image_url"].(map[string]any)["url"])
}

func TestChatErrorPaths(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantIn  string
	}{
		{
			name: "http status error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
			wantIn: "status 500",
		},
		{
			name: "empty choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
			wantIn: "missing message content",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			wantIn: "decoding model response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := newTestClient(srv.URL)
			_, err := client.Chat(context.Background(), []domain.Message{
				domain.TextMessage(domain.RoleUser, "hi"),
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantIn)
		})
	}
}
