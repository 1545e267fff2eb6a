package stream

// EventType discriminates decoded stream events.
type EventType string

const (
	EventContent  EventType = "content"
	EventMetadata EventType = "metadata"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is one semantic event decoded from a chat response. Content events
// carry an incremental text delta; metadata events carry token usage and
// model fields; done events carry the server-assigned conversation and
// message ids and, for transports that only deliver the full text at
// completion, the final authoritative content.
type Event struct {
	Type           EventType      `json:"type"`
	Content        string         `json:"content,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Error          string         `json:"error,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	MessageID      string         `json:"message_id,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func validType(t EventType) bool {
	switch t {
	case EventContent, EventMetadata, EventError, EventDone:
		return true
	}
	return false
}
