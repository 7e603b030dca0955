package protocol

import (
	"fmt"

	"github.com/yndnr/framesync-go/internal/core/domain"
)

// ProtocolVersion is the wire protocol version carried in Hello.
const ProtocolVersion = 1

// Kind is the message kind.
type Kind uint8

const (
	KindUnspecified Kind = 0

	// Handshake.
	KindHello   Kind = 1
	KindWelcome Kind = 2
	KindReject  Kind = 3

	// Phase 1: event synchronization.
	KindEventSubmit Kind = 10
	KindEventSync   Kind = 11

	// Phase 2: swap barrier.
	KindSwapReady Kind = 20
	KindSwapGo    Kind = 21
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindHello:
		return "Hello"
	case KindWelcome:
		return "Welcome"
	case KindReject:
		return "Reject"
	case KindEventSubmit:
		return "EventSubmit"
	case KindEventSync:
		return "EventSync"
	case KindSwapReady:
		return "SwapReady"
	case KindSwapGo:
		return "SwapGo"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindHello, KindWelcome, KindReject,
		KindEventSubmit, KindEventSync,
		KindSwapReady, KindSwapGo:
		return true
	default:
		return false
	}
}

// Message is one decoded protocol message. Only the fields relevant to
// Kind are populated.
type Message struct {
	Kind  Kind
	Round uint64

	// EventSubmit, EventSync
	Events []domain.Event
	// EventSync: murmur3-64 of Events, verified on decode.
	Digest uint64

	// Hello, Welcome
	NodeID string
	// Hello
	Version int
	MAC     string
	// Welcome
	SessionID string
	// Reject
	Reason string
}

// NewHello builds the handshake opener sent by a node.
func NewHello(nodeID, mac string) Message {
	return Message{Kind: KindHello, NodeID: nodeID, Version: ProtocolVersion, MAC: mac}
}

// NewWelcome builds the coordinator's handshake acceptance.
func NewWelcome(sessionID, nodeID string) Message {
	return Message{Kind: KindWelcome, SessionID: sessionID, NodeID: nodeID}
}

// NewReject builds the coordinator's handshake refusal.
func NewReject(reason string) Message {
	return Message{Kind: KindReject, Reason: reason}
}

// NewEventSubmit builds a node's batch of pending events for a round.
func NewEventSubmit(round uint64, events []domain.Event) Message {
	return Message{Kind: KindEventSubmit, Round: round, Events: events}
}

// NewEventSync builds the Authoritative Event List for a node's round.
func NewEventSync(round uint64, events []domain.Event) Message {
	return Message{Kind: KindEventSync, Round: round, Events: events, Digest: Digest(events)}
}

// NewSwapReady builds a node's ready-to-swap signal.
func NewSwapReady(round uint64) Message {
	return Message{Kind: KindSwapReady, Round: round}
}

// NewSwapGo builds the coordinator's barrier release.
func NewSwapGo(round uint64) Message {
	return Message{Kind: KindSwapGo, Round: round}
}
