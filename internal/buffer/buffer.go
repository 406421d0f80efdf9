// Package buffer holds events that have not yet been confirmed delivered.
package buffer

import (
	"sync"

	"github.com/GabrielNunesIT/event-buffer/internal/model"
)

// Buffer is an ordered, append-only sequence of events.
// All methods are safe for concurrent use; a single mutex guards every mutation.
type Buffer struct {
	mu        sync.Mutex
	events    []model.Event
	head      Cursor // position of events[0] in the append history
	maxEvents int
	evicted   uint64
}

// Cursor is a position in the buffer's append history.
// A snapshot's cursor is the position just past its last event.
type Cursor uint64

// Option configures a Buffer.
type Option func(*Buffer)

// WithMaxEvents bounds the buffer. When full, the oldest event is evicted.
// Zero or a negative value means unbounded.
func WithMaxEvents(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxEvents = n
		}
	}
}

// New creates an empty buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append adds an event at the end.
func (b *Buffer) Append(e model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, e)
	b.trimLocked()
}

// Prepend places restored events ahead of the current contents.
// It must not run while a snapshot taken with SnapshotCursor is still outstanding.
func (b *Buffer) Prepend(events []model.Event) {
	if len(events) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	merged := make([]model.Event, 0, len(events)+len(b.events))
	merged = append(merged, events...)
	merged = append(merged, b.events...)
	b.events = merged
	b.trimLocked()
}

// trimLocked evicts the oldest events beyond maxEvents (caller must hold lock).
func (b *Buffer) trimLocked() {
	if b.maxEvents == 0 || len(b.events) <= b.maxEvents {
		return
	}
	over := len(b.events) - b.maxEvents
	b.evicted += uint64(over)
	b.head += Cursor(over)
	b.events = append(b.events[:0:0], b.events[over:]...)
}

// Snapshot returns a copy of the current contents in insertion order.
func (b *Buffer) Snapshot() []model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.CloneEvents(b.events)
}

// SnapshotCursor returns a copy of the current contents and the cursor just past them.
func (b *Buffer) SnapshotCursor() ([]model.Event, Cursor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.CloneEvents(b.events), b.head + Cursor(len(b.events))
}

// DropThrough removes every event before cursor c, i.e. the events covered by a
// delivered snapshot. Events appended after that snapshot are kept, and events the
// size bound already evicted are not counted twice. Returns the number of events left.
func (b *Buffer) DropThrough(c Cursor) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c <= b.head {
		return len(b.events)
	}
	n := int(c - b.head)
	if n >= len(b.events) {
		b.head += Cursor(len(b.events))
		b.events = nil
		return 0
	}
	b.head += Cursor(n)
	b.events = append([]model.Event(nil), b.events[n:]...)
	return len(b.events)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head += Cursor(len(b.events))
	b.events = nil
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// IsEmpty reports whether nothing is buffered.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// Evicted returns how many events were dropped by the size bound.
func (b *Buffer) Evicted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}
