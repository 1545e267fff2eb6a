package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Attachment is a file, image or code block attached to a message.
type Attachment struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Content   string `json:"content,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Metadata holds token usage and timing information for a message.
type Metadata struct {
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	Model        string `json:"model,omitempty"`
	Provider     string `json:"provider,omitempty"`
	LatencyMs    int64  `json:"latency_ms,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Cached       bool   `json:"cached,omitempty"`
}

// MergeMap merges decoded metadata fields into m, last write wins per field.
// Unknown keys are ignored. JSON numbers arrive as float64.
func (m *Metadata) MergeMap(fields map[string]any) {
	for key, val := range fields {
		switch key {
		case "input_tokens":
			if n, ok := asInt(val); ok {
				m.InputTokens = n
			}
		case "output_tokens":
			if n, ok := asInt(val); ok {
				m.OutputTokens = n
			}
		case "total_tokens":
			if n, ok := asInt(val); ok {
				m.TotalTokens = n
			}
		case "model":
			if s, ok := val.(string); ok {
				m.Model = s
			}
		case "provider":
			if s, ok := val.(string); ok {
				m.Provider = s
			}
		case "latency_ms":
			if n, ok := asInt(val); ok {
				m.LatencyMs = int64(n)
			}
		case "finish_reason":
			if s, ok := val.(string); ok {
				m.FinishReason = s
			}
		case "cached":
			if b, ok := val.(bool); ok {
				m.Cached = b
			}
		}
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

// Message is a single message within a conversation.
//
// A user message is immutable once created. An assistant message starts as
// an empty placeholder with Streaming=true, grows by content appends while
// the exchange streams, and is finalized (or discarded) by the terminal
// event.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Role           Role         `json:"role"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Metadata       *Metadata    `json:"metadata,omitempty"`
	Streaming      bool         `json:"streaming,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewUserMessage creates an immutable user message with a client-generated id.
func NewUserMessage(content string, attachments []Attachment) *Message {
	return &Message{
		ID:          uuid.New().String(),
		Role:        RoleUser,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
}

// NewPlaceholder creates an empty streaming assistant message. Its id is
// transient until the server assigns an authoritative one.
func NewPlaceholder() *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Streaming: true,
		CreatedAt: time.Now(),
	}
}
