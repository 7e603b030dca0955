// Package domain defines the core domain models for framesync.
package domain

// Round identifies one event-sync + swap-barrier cycle.
// A node's Round strictly increases by one per completed frame.
type Round uint64

// Next returns the round that follows r.
func (r Round) Next() Round {
	return r + 1
}

// ConnState is the state of a node's connection to the coordinator.
type ConnState int32

const (
	// StateDisconnected means no connection exists.
	StateDisconnected ConnState = iota
	// StateConnecting means a dial or handshake is in progress.
	StateConnecting
	// StateConnected means the connection is live and keeping deadlines.
	StateConnected
	// StateDegraded means the connection is live but has missed a protocol
	// deadline. It is recoverable.
	StateDegraded
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// IsLive reports whether messages can be sent in this state.
func (s ConnState) IsLive() bool {
	return s == StateConnected || s == StateDegraded
}

// Phase is the Frame Synchronizer's position in the per-frame cycle.
type Phase int32

const (
	// PhaseAwaitingEventPhase waits for the host's begin-frame hook.
	PhaseAwaitingEventPhase Phase = iota
	// PhaseAwaitingEventAck waits for the Authoritative Event List.
	PhaseAwaitingEventAck
	// PhaseAwaitingSwapReady waits for the host's render-complete hook.
	PhaseAwaitingSwapReady
	// PhaseAwaitingSwapGo waits for the coordinator's go signal.
	PhaseAwaitingSwapGo
	// PhaseShutdown is entered once and never left.
	PhaseShutdown
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseAwaitingEventPhase:
		return "awaiting_event_phase"
	case PhaseAwaitingEventAck:
		return "awaiting_event_ack"
	case PhaseAwaitingSwapReady:
		return "awaiting_swap_ready"
	case PhaseAwaitingSwapGo:
		return "awaiting_swap_go"
	case PhaseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}
