package models

import (
	"strings"
	"testing"
)

func TestProvisionalTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "short content unchanged",
			content: "Hello",
			want:    "Hello",
		},
		{
			name:    "whitespace trimmed",
			content: "  What is dominance?  ",
			want:    "What is dominance?",
		},
		{
			name:    "exactly at the cap",
			content: strings.Repeat("a", 50),
			want:    strings.Repeat("a", 50),
		},
		{
			name:    "long content truncated with ellipsis",
			content: strings.Repeat("a", 60),
			want:    strings.Repeat("a", 50) + "...",
		},
		{
			name:    "truncation counts runes not bytes",
			content: strings.Repeat("ä", 60),
			want:    strings.Repeat("ä", 50) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProvisionalTitle(tt.content); got != tt.want {
				t.Errorf("ProvisionalTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetadata_MergeMap(t *testing.T) {
	var m Metadata

	// JSON numbers arrive as float64.
	m.MergeMap(map[string]any{
		"input_tokens":  float64(12),
		"output_tokens": float64(4),
		"model":         "gpt-4o",
		"unknown_field": "ignored",
	})

	if m.InputTokens != 12 || m.OutputTokens != 4 {
		t.Errorf("tokens = %d/%d, want 12/4", m.InputTokens, m.OutputTokens)
	}
	if m.Model != "gpt-4o" {
		t.Errorf("Model = %q", m.Model)
	}

	// Later fragments win field by field.
	m.MergeMap(map[string]any{
		"output_tokens": float64(9),
		"total_tokens":  float64(21),
		"cached":        true,
	})

	if m.InputTokens != 12 {
		t.Errorf("InputTokens overwritten to %d", m.InputTokens)
	}
	if m.OutputTokens != 9 || m.TotalTokens != 21 {
		t.Errorf("tokens = %d/%d, want 9/21", m.OutputTokens, m.TotalTokens)
	}
	if !m.Cached {
		t.Error("Cached not merged")
	}
}

func TestMetadata_MergeMapWrongTypes(t *testing.T) {
	m := Metadata{InputTokens: 7}

	m.MergeMap(map[string]any{
		"input_tokens": "not a number",
		"model":        42,
	})

	if m.InputTokens != 7 {
		t.Errorf("InputTokens = %d, want untouched 7", m.InputTokens)
	}
	if m.Model != "" {
		t.Errorf("Model = %q, want empty", m.Model)
	}
}

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello", nil)

	if msg.ID == "" {
		t.Error("user message missing id")
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %q", msg.Role)
	}
	if msg.Streaming {
		t.Error("user message marked streaming")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestNewPlaceholder(t *testing.T) {
	a := NewPlaceholder()
	b := NewPlaceholder()

	if a.ID == b.ID {
		t.Error("placeholders share a transient id")
	}
	if a.Role != RoleAssistant || !a.Streaming {
		t.Errorf("placeholder = %+v", a)
	}
	if a.Content != "" {
		t.Errorf("placeholder starts with content %q", a.Content)
	}
}
