package synchronizer

import (
	"fmt"
	"sync/atomic"

	"github.com/yndnr/framesync-go/internal/core/domain"
)

// Listener receives one event of the Authoritative Event List.
type Listener func(round domain.Round, e domain.Event)

// Subscription is a registered listener. Close unregisters it.
type Subscription struct {
	s      *Synchronizer
	id     uint64
	fn     Listener
	closed atomic.Bool
}

// Subscribe registers fn. Listeners are invoked on the host goroutine
// inside OnFrameBegin, once per event in list order, and in
// registration order for each event.
func (s *Synchronizer) Subscribe(fn Listener) *Subscription {
	sub := &Subscription{s: s, fn: fn}
	if fn == nil || s.Phase() == domain.PhaseShutdown {
		sub.closed.Store(true)
		return sub
	}

	s.subsMu.Lock()
	s.nextID++
	sub.id = s.nextID
	next := make([]*Subscription, len(s.subs), len(s.subs)+1)
	copy(next, s.subs)
	s.subs = append(next, sub)
	s.subsMu.Unlock()
	return sub
}

// Close unregisters the listener. It is safe to call more than once and
// from inside the listener itself; the listener sees no event after
// Close returns.
func (sub *Subscription) Close() error {
	if sub.closed.Swap(true) {
		return nil
	}
	s := sub.s
	s.subsMu.Lock()
	next := make([]*Subscription, 0, len(s.subs))
	for _, other := range s.subs {
		if other != sub {
			next = append(next, other)
		}
	}
	s.subs = next
	s.subsMu.Unlock()
	return nil
}

// Active reports whether the subscription is still registered.
func (sub *Subscription) Active() bool {
	return !sub.closed.Load()
}

// Subscribers returns the number of registered listeners.
func (s *Synchronizer) Subscribers() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

func (s *Synchronizer) deliver(round domain.Round, events []domain.Event) {
	if len(events) == 0 {
		return
	}

	s.subsMu.Lock()
	subs := s.subs
	s.subsMu.Unlock()

	for _, e := range events {
		for _, sub := range subs {
			if sub.closed.Load() {
				continue
			}
			s.invoke(sub, round, e)
		}
	}
	s.metrics.Delivered(len(events))
}

// invoke runs one listener call. A panicking listener is logged and
// skipped; it cannot abort the frame.
func (s *Synchronizer) invoke(sub *Subscription, round domain.Round, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.listenerPanics.Add(1)
			s.metrics.ListenerPanic()
			s.logger.Error("listener panicked",
				"round", uint64(round),
				"event", e.Name(),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	sub.fn(round, e)
}
