// Package models defines the conversation data model shared by the
// streaming engine, transport and cache layers.
package models

import "time"

// Conversation is a chat session with an ordered message list.
//
// The id is empty until the server assigns one (a brand-new conversation is
// created by the first exchange). The message list is append-only except
// for the single in-place placeholder finalization per exchange.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count,omitempty"`
	TotalTokens  int       `json:"total_tokens_used,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationSummary is the listing shape returned by the server.
type ConversationSummary struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	MessageCount       int        `json:"message_count"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
