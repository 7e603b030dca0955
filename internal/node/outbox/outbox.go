// Package outbox holds a node's pending outbound events.
//
// Producers append from any goroutine. Once per frame the synchronizer
// takes the whole batch by swapping in an empty buffer, so a producer
// only ever waits for a slice append, never for network I/O.
package outbox

import (
	"sync"

	"github.com/yndnr/framesync-go/internal/core/domain"
)

// defaultCapacity is the initial capacity of a fresh buffer.
const defaultCapacity = 32

// Outbox is a thread-safe FIFO of locally produced events.
type Outbox struct {
	mu     sync.Mutex
	events []domain.Event
	closed bool
	total  uint64
}

// New creates an empty outbox.
func New() *Outbox {
	return &Outbox{
		events: make([]domain.Event, 0, defaultCapacity),
	}
}

// Push appends events in order. Zero events are skipped.
// Returns false if the outbox is closed.
func (o *Outbox) Push(events ...domain.Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	for _, e := range events {
		if e.IsZero() {
			continue
		}
		o.events = append(o.events, e)
		o.total++
	}
	return true
}

// Drain takes ownership of every pending event and leaves an empty
// buffer in place. The returned slice is never shared with producers.
func (o *Outbox) Drain() []domain.Event {
	o.mu.Lock()
	batch := o.events
	next := defaultCapacity
	if c := cap(batch); c > next && len(batch) > c/4 {
		next = c
	}
	o.events = make([]domain.Event, 0, next)
	o.mu.Unlock()

	return batch
}

// Len returns the number of pending events.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// Total returns the number of events ever accepted.
func (o *Outbox) Total() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.total
}

// Close rejects further pushes. Pending events stay drainable.
func (o *Outbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}
