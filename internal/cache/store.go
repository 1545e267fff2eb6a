// Package cache provides an advisory snapshot store for conversation
// history. A miss or an unreachable backend never fails an operation;
// callers fall through to the server.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/zygotrix/zigi-go/internal/models"
)

// ErrCacheMiss is returned when a key is not present.
var ErrCacheMiss = errors.New("cache miss")

// DefaultTTL bounds how long a snapshot stays fresh.
const DefaultTTL = 24 * time.Hour

// Store is a byte-oriented key-value store with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ConversationSnapshot is the cached view of a conversation, written
// optimistically after every completed exchange and load.
type ConversationSnapshot struct {
	Conversation models.Conversation `json:"conversation"`
	Messages     []models.Message    `json:"messages"`
	CachedAt     time.Time           `json:"cached_at"`
}

// ConversationKey builds the snapshot key for a conversation.
func ConversationKey(id string) string {
	return "zigi:conversation:" + id
}
