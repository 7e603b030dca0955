package framesync

import (
	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/node/synchronizer"
)

type (
	// Event is one named input record with ordered fields.
	Event = domain.Event
	// KV is a field given to NewEvent.
	KV = domain.KV
	// Round is a node's frame counter.
	Round = domain.Round
	// Phase is the node's position in the frame lifecycle.
	Phase = domain.Phase
	// ConnState is the coordinator connection state.
	ConnState = domain.ConnState
	// Listener receives delivered events.
	Listener = synchronizer.Listener
	// Subscription is a registered Listener.
	Subscription = synchronizer.Subscription
)

// NewEvent builds an event. Values must be strings, bools, numbers or
// slices and maps of those.
func NewEvent(name string, kvs ...KV) (Event, error) {
	return domain.NewEvent(name, kvs...)
}

// MustEvent is NewEvent that panics on error.
func MustEvent(name string, kvs ...KV) Event {
	return domain.MustEvent(name, kvs...)
}
