package session

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Gate errors. Duplicate and in-flight suppression are silent no-ops at the
// session surface; only the empty-message rejection reaches the caller.
var (
	ErrEmptyMessage        = errors.New("empty message")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrExchangeInFlight    = errors.New("exchange already in flight")
)

// GateConfig holds the suppression windows. They are explicit configuration
// rather than ambient package state so hosts and tests can tune them.
type GateConfig struct {
	// DebounceWindow is the minimum gap between any two submissions on the
	// same conversation.
	DebounceWindow time.Duration
	// DuplicateWindow suppresses re-submission of identical content on the
	// same conversation.
	DuplicateWindow time.Duration
}

// DefaultGateConfig returns the production windows.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		DebounceWindow:  300 * time.Millisecond,
		DuplicateWindow: 2 * time.Second,
	}
}

// Gate deduplicates and rate-limits submit intents, and enforces at most
// one in-flight exchange per conversation.
type Gate struct {
	mu  sync.Mutex
	cfg GateConfig
	now func() time.Time

	lastSubmit map[string]time.Time // keyed by conversation
	lastKey    map[string]time.Time // keyed by trimmed content + conversation
	inflight   map[string]bool      // keyed by conversation
}

// NewGate creates a gate with the given windows.
func NewGate(cfg GateConfig) *Gate {
	return &Gate{
		cfg:        cfg,
		now:        time.Now,
		lastSubmit: make(map[string]time.Time),
		lastKey:    make(map[string]time.Time),
		inflight:   make(map[string]bool),
	}
}

// Begin evaluates a submit intent. On acceptance it marks the conversation
// in flight and returns a release func the caller must invoke when the
// exchange terminates, however it terminates. Empty submissions are
// rejected without consuming any window.
func (g *Gate) Begin(content string, hasAttachments bool, conversationID string) (func(), error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" && !hasAttachments {
		return nil, ErrEmptyMessage
	}

	key := trimmed + "\x00" + conversationID

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight[conversationID] {
		return nil, ErrExchangeInFlight
	}

	now := g.now()
	g.pruneLocked(now)

	if t, ok := g.lastKey[key]; ok && now.Sub(t) < g.cfg.DuplicateWindow {
		return nil, ErrDuplicateSubmission
	}
	if t, ok := g.lastSubmit[conversationID]; ok && now.Sub(t) < g.cfg.DebounceWindow {
		return nil, ErrDuplicateSubmission
	}

	g.lastKey[key] = now
	g.lastSubmit[conversationID] = now
	g.inflight[conversationID] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, conversationID)
			g.mu.Unlock()
		})
	}
	return release, nil
}

// pruneLocked drops window entries that can no longer suppress anything,
// keeping the maps bounded over a long session. Caller must hold g.mu.
func (g *Gate) pruneLocked(now time.Time) {
	for key, t := range g.lastKey {
		if now.Sub(t) >= g.cfg.DuplicateWindow {
			delete(g.lastKey, key)
		}
	}
	for conversation, t := range g.lastSubmit {
		if now.Sub(t) >= g.cfg.DebounceWindow {
			delete(g.lastSubmit, conversation)
		}
	}
}
