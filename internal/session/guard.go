package session

import "sync/atomic"

// Guard decides whether an asynchronous result still belongs to the
// conversation view that dispatched it. Every navigation bumps the epoch;
// results carrying an older tag are discarded without side effects.
type Guard struct {
	epoch atomic.Uint64
}

// NewGuard creates a guard at epoch zero.
func NewGuard() *Guard {
	return &Guard{}
}

// Capture tags the currently active view. The tag stays valid until the
// next Bump, regardless of what happens to the conversation itself.
func (g *Guard) Capture() Tag {
	return Tag{guard: g, epoch: g.epoch.Load()}
}

// Bump invalidates all outstanding tags. Called on every conversation
// switch, new-conversation start and clear.
func (g *Guard) Bump() {
	g.epoch.Add(1)
}

// Tag identifies the view that was active when an operation was dispatched.
type Tag struct {
	guard *Guard
	epoch uint64
}

// Live reports whether the tagged view is still the active one.
func (t Tag) Live() bool {
	return t.guard != nil && t.guard.epoch.Load() == t.epoch
}
