package domain

// Message roles understood by the model-call service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content part types for multimodal messages.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ContentPart is one tagged part of a message body. Text parts carry Text;
// image parts carry an inline data URL in ImageURL.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message is one role-tagged entry in a model prompt.
type Message struct {
	Role  string        `json:"role"`
	Parts []ContentPart `json:"content"`
}

// TextMessage builds a plain text message.
func TextMessage(role, text string) Message {
	return Message{
		Role:  role,
		Parts: []ContentPart{{Type: PartText, Text: text}},
	}
}

// Text returns the concatenated text parts of the message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ChatResponse is the answer plus citation list.
type ChatResponse struct {
	Answer  string          `json:"answer"`
	Sources []DocumentChunk `json:"sources,omitempty"`
}
