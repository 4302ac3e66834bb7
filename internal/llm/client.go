// Package llm talks to an OpenAI-compatible chat completions endpoint
// (LM Studio, Ollama, vLLM). The caller sees one opaque error per failed
// call; transport, HTTP, and decode failures are collapsed here.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkravets/safedesk/internal/config"
	"github.com/mkravets/safedesk/internal/domain"
	"go.uber.org/zap"
)

// Caller is the model-call contract consumed by the orchestration layer.
type Caller interface {
	Chat(ctx context.Context, messages []domain.Message) (string, error)
}

// Client calls a chat completions endpoint over HTTP.
type Client struct {
	apiURL      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a client from configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiURL:      cfg.APIURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// wireMessage carries content either as a plain string (single text part)
// or as a part array (multimodal).
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wirePart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends an ordered message list and returns the completion text.
func (c *Client) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    encodeMessages(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	c.logger.Debug("Sending prompt", zap.Int("messages", len(messages)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("model response is missing message content")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

func encodeMessages(messages []domain.Message) []wireMessage {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMessage{Role: m.Role, Content: encodeContent(m.Parts)})
	}
	return wire
}

func encodeContent(parts []domain.ContentPart) any {
	if len(parts) == 1 && parts[0].Type == domain.PartText {
		return parts[0].Text
	}
	wire := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case domain.PartImageURL:
			wire = append(wire, wirePart{Type: domain.PartImageURL, ImageURL: &wireImageURL{URL: p.ImageURL}})
		default:
			wire = append(wire, wirePart{Type: domain.PartText, Text: p.Text})
		}
	}
	return wire
}
