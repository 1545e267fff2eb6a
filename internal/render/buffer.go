// Package render coalesces high-frequency content deltas into
// bounded-rate emissions toward a single consumer.
package render

import (
	"sync"
	"time"
)

// Scheduler defers a flush to the host's rendering cadence. Schedule is
// called at most once per pending flush; the callback must eventually run.
type Scheduler interface {
	Schedule(flush func())
}

// TickScheduler runs flushes on a fixed interval after the first pending
// delta, the terminal analogue of a frame callback.
type TickScheduler struct {
	Interval time.Duration
}

// NewTickScheduler creates a scheduler with the given flush interval.
func NewTickScheduler(interval time.Duration) *TickScheduler {
	return &TickScheduler{Interval: interval}
}

// Schedule fires flush after the interval elapses.
func (s *TickScheduler) Schedule(flush func()) {
	time.AfterFunc(s.Interval, flush)
}

// SyncScheduler flushes immediately. Used where coalescing is unwanted.
type SyncScheduler struct{}

// Schedule runs flush synchronously.
func (SyncScheduler) Schedule(flush func()) { flush() }

// Buffer accumulates content deltas and emits their concatenation to the
// consumer at most once per scheduled flush. Close guarantees a final
// synchronous flush, so no delta is dropped, only deferred.
type Buffer struct {
	mu        sync.Mutex
	pending   string
	scheduled bool
	closed    bool
	consumer  func(string)
	scheduler Scheduler

	// deliver serializes consumer invocations with Close, so no delta can
	// reach the consumer after Close has returned.
	deliver sync.Mutex
}

// NewBuffer creates a buffer bound to one consumer.
func NewBuffer(scheduler Scheduler, consumer func(string)) *Buffer {
	return &Buffer{
		consumer:  consumer,
		scheduler: scheduler,
	}
}

// Append adds a delta to the accumulator and schedules a flush if none is
// pending. Appends after Close are dropped.
func (b *Buffer) Append(delta string) {
	if delta == "" {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.pending += delta
	schedule := !b.scheduled
	b.scheduled = true
	b.mu.Unlock()

	if schedule {
		b.scheduler.Schedule(b.flush)
	}
}

// flush emits the accumulated text and clears the schedule flag. The text
// is claimed and delivered under the delivery lock, so a concurrent Close
// either waits for the emission or finds the accumulator already empty.
func (b *Buffer) flush() {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	text := b.pending
	b.pending = ""
	b.scheduled = false
	consumer := b.consumer
	b.mu.Unlock()

	if text != "" && consumer != nil {
		consumer(text)
	}
}

// Close performs the final synchronous flush and releases the consumer.
// It blocks until any in-flight flush has handed its text to the consumer;
// afterwards nothing reaches the consumer anymore.
func (b *Buffer) Close() {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	text := b.pending
	consumer := b.consumer
	b.pending = ""
	b.scheduled = false
	b.closed = true
	b.consumer = nil
	b.mu.Unlock()

	if text != "" && consumer != nil {
		consumer(text)
	}
}
