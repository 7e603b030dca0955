package registry

import (
	"sort"
	"time"
)

// NodeStatus describes one registered node.
type NodeStatus struct {
	ID           string    `json:"id" yaml:"id"`
	SessionID    string    `json:"session_id" yaml:"session_id"`
	Remote       string    `json:"remote" yaml:"remote"`
	RegisteredAt time.Time `json:"registered_at" yaml:"registered_at"`
	LastSeen     time.Time `json:"last_seen" yaml:"last_seen"`
	Submitted    bool      `json:"submitted" yaml:"submitted"`
	LastTag      uint64    `json:"last_round" yaml:"last_round"`
	LastServer   uint64    `json:"last_server_round" yaml:"last_server_round"`
}

// Status is a snapshot of the registry.
type Status struct {
	Nodes         []NodeStatus `json:"nodes" yaml:"nodes"`
	NextMerge     uint64       `json:"next_merge" yaml:"next_merge"`
	PendingRounds int          `json:"pending_rounds" yaml:"pending_rounds"`
	Merged        uint64       `json:"merged_total" yaml:"merged_total"`
	Released      uint64       `json:"released_total" yaml:"released_total"`
}

// Status returns a snapshot with nodes sorted by ID.
func (r *Registry) Status() Status {
	st := Status{
		Nodes:         make([]NodeStatus, 0, len(r.nodes)),
		NextMerge:     r.nextMerge,
		PendingRounds: len(r.rounds),
		Merged:        r.merged,
		Released:      r.released,
	}
	for _, n := range r.nodes {
		st.Nodes = append(st.Nodes, NodeStatus{
			ID:           n.id,
			SessionID:    n.session,
			Remote:       n.remote,
			RegisteredAt: n.registeredAt,
			LastSeen:     n.lastSeen,
			Submitted:    n.submitted,
			LastTag:      n.lastTag,
			LastServer:   n.lastServer,
		})
	}
	sort.Slice(st.Nodes, func(i, j int) bool { return st.Nodes[i].ID < st.Nodes[j].ID })
	return st
}
