package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/protocol"
)

// Errors returned for messages the registry cannot place.
var (
	ErrNotRegistered = errors.New("registry: node not registered")
	ErrUnknownRound  = errors.New("registry: no open round for tag")
)

// Config holds the per-round deadlines.
type Config struct {
	SubmitTimeout  time.Duration
	BarrierTimeout time.Duration
}

// Recipient is a node that should receive a reply, with the round tag
// the reply must carry.
type Recipient struct {
	NodeID    string
	SessionID string
	Tag       uint64
}

// Merge is a round whose Authoritative Event List was built.
type Merge struct {
	Round      uint64
	Events     []domain.Event
	Digest     uint64
	Recipients []Recipient
	Missing    []string
	TimedOut   bool
}

// Release is a round whose swap barrier was lifted.
type Release struct {
	Round      uint64
	Recipients []Recipient
	Missing    []string
	TimedOut   bool
	Wait       time.Duration // merge to release
}

// Result lists what a call decided. Merges and releases are in round
// order.
type Result struct {
	Merges   []Merge
	Releases []Release
}

// Empty reports whether nothing was decided.
func (r Result) Empty() bool {
	return len(r.Merges) == 0 && len(r.Releases) == 0
}

func (r *Result) add(o Result) {
	r.Merges = append(r.Merges, o.Merges...)
	r.Releases = append(r.Releases, o.Releases...)
}

type node struct {
	id           string
	session      string
	remote       string
	registeredAt time.Time
	submitted    bool
	lastServer   uint64 // server round of the last submission
	lastTag      uint64 // node tag of the last submission
	lastSeen     time.Time
}

type submission struct {
	session string
	tag     uint64
}

type round struct {
	id         uint64
	firstAt    time.Time
	batches    [][]domain.Event
	submitters map[string]submission
	order      []string // submitters in arrival order
	ready      map[string]struct{}

	merged   bool
	mergedAt time.Time
}

// Registry is the Node Registry.
type Registry struct {
	cfg       Config
	nodes     map[string]*node
	rounds    map[uint64]*round
	nextMerge uint64

	merged   uint64
	released uint64
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	return &Registry{
		cfg:    cfg,
		nodes:  make(map[string]*node),
		rounds: make(map[uint64]*round),
	}
}

// SetTimeouts changes the round deadlines. Non-positive values are ignored.
func (r *Registry) SetTimeouts(submit, barrier time.Duration) {
	if submit > 0 {
		r.cfg.SubmitTimeout = submit
	}
	if barrier > 0 {
		r.cfg.BarrierTimeout = barrier
	}
}

// Register adds a node session. A session already registered under the
// same node ID is replaced; its pending submissions keep their events
// but no longer receive replies. It returns the replaced session ID.
func (r *Registry) Register(nodeID, sessionID, remote string, now time.Time) (replaced string) {
	if old, ok := r.nodes[nodeID]; ok {
		replaced = old.session
	}
	r.nodes[nodeID] = &node{
		id:           nodeID,
		session:      sessionID,
		remote:       remote,
		registeredAt: now,
		lastSeen:     now,
	}
	return replaced
}

// Unregister removes a node session and re-evaluates open rounds, since
// the node no longer holds them up. A stale session ID is ignored.
func (r *Registry) Unregister(nodeID, sessionID string, now time.Time) Result {
	n, ok := r.nodes[nodeID]
	if !ok || n.session != sessionID {
		return Result{}
	}
	delete(r.nodes, nodeID)
	return r.evaluate(now)
}

// Registered reports whether sessionID is the current session of nodeID.
func (r *Registry) Registered(nodeID, sessionID string) bool {
	n, ok := r.nodes[nodeID]
	return ok && n.session == sessionID
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// Submit records a node's batch for its round tag.
func (r *Registry) Submit(nodeID, sessionID string, tag uint64, events []domain.Event, now time.Time) (Result, error) {
	n, ok := r.nodes[nodeID]
	if !ok || n.session != sessionID {
		return Result{}, ErrNotRegistered
	}

	id := r.nextMerge
	if n.submitted && n.lastServer+1 > id {
		id = n.lastServer + 1
	}

	rd := r.rounds[id]
	if rd == nil {
		rd = &round{
			id:         id,
			firstAt:    now,
			submitters: make(map[string]submission),
			ready:      make(map[string]struct{}),
		}
		r.rounds[id] = rd
	}

	rd.batches = append(rd.batches, events)
	rd.submitters[nodeID] = submission{session: sessionID, tag: tag}
	rd.order = append(rd.order, nodeID)

	n.submitted = true
	n.lastServer = id
	n.lastTag = tag
	n.lastSeen = now

	return r.evaluate(now), nil
}

// Ready records a node's swap-ready signal for its round tag. Ready may
// arrive before the round is merged.
func (r *Registry) Ready(nodeID, sessionID string, tag uint64, now time.Time) (Result, error) {
	n, ok := r.nodes[nodeID]
	if !ok || n.session != sessionID {
		return Result{}, ErrNotRegistered
	}
	n.lastSeen = now

	rd := r.find(nodeID, sessionID, tag)
	if rd == nil {
		return Result{}, fmt.Errorf("%w: node %s tag %d", ErrUnknownRound, nodeID, tag)
	}
	rd.ready[nodeID] = struct{}{}
	return r.evaluate(now), nil
}

// Tick applies deadlines.
func (r *Registry) Tick(now time.Time) Result {
	return r.evaluate(now)
}

func (r *Registry) find(nodeID, sessionID string, tag uint64) *round {
	for _, rd := range r.rounds {
		if sub, ok := rd.submitters[nodeID]; ok && sub.session == sessionID && sub.tag == tag {
			return rd
		}
	}
	return nil
}

func (r *Registry) evaluate(now time.Time) Result {
	var res Result
	for {
		rd := r.rounds[r.nextMerge]
		if rd == nil {
			break
		}
		all := r.allSubmitted(rd)
		timedOut := now.Sub(rd.firstAt) >= r.cfg.SubmitTimeout
		if !all && !timedOut {
			break
		}
		res.Merges = append(res.Merges, r.merge(rd, now, !all))
		r.nextMerge++
	}

	for _, id := range r.sortedRounds() {
		rd := r.rounds[id]
		if !rd.merged {
			continue
		}
		expected := r.expected(rd)
		all := true
		for _, e := range expected {
			if _, ok := rd.ready[e.NodeID]; !ok {
				all = false
				break
			}
		}
		timedOut := now.Sub(rd.mergedAt) >= r.cfg.BarrierTimeout
		if !all && !timedOut {
			continue
		}
		res.Releases = append(res.Releases, r.release(rd, expected, now, !all))
	}
	return res
}

func (r *Registry) allSubmitted(rd *round) bool {
	for id, n := range r.nodes {
		sub, ok := rd.submitters[id]
		if !ok || sub.session != n.session {
			return false
		}
	}
	return true
}

// expected returns the round's submitters that are still registered
// under the session they submitted from, in arrival order.
func (r *Registry) expected(rd *round) []Recipient {
	out := make([]Recipient, 0, len(rd.order))
	for _, id := range rd.order {
		sub := rd.submitters[id]
		// A node that re-registered appears twice in order.
		if !r.Registered(id, sub.session) || containsNode(out, id) {
			continue
		}
		out = append(out, Recipient{NodeID: id, SessionID: sub.session, Tag: sub.tag})
	}
	return out
}

func (r *Registry) merge(rd *round, now time.Time, timedOut bool) Merge {
	var total int
	for _, b := range rd.batches {
		total += len(b)
	}
	events := make([]domain.Event, 0, total)
	for _, b := range rd.batches {
		events = append(events, b...)
	}

	var missing []string
	for id, n := range r.nodes {
		if sub, ok := rd.submitters[id]; !ok || sub.session != n.session {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)

	rd.merged = true
	rd.mergedAt = now
	rd.batches = nil
	r.merged++

	return Merge{
		Round:      rd.id,
		Events:     events,
		Digest:     protocol.Digest(events),
		Recipients: r.expected(rd),
		Missing:    missing,
		TimedOut:   timedOut,
	}
}

func (r *Registry) release(rd *round, expected []Recipient, now time.Time, timedOut bool) Release {
	recipients := make([]Recipient, 0, len(expected))
	var missing []string
	for _, e := range expected {
		if _, ok := rd.ready[e.NodeID]; ok {
			recipients = append(recipients, e)
		} else {
			missing = append(missing, e.NodeID)
		}
	}

	delete(r.rounds, rd.id)
	r.released++

	return Release{
		Round:      rd.id,
		Recipients: recipients,
		Missing:    missing,
		TimedOut:   timedOut,
		Wait:       now.Sub(rd.mergedAt),
	}
}

func (r *Registry) sortedRounds() []uint64 {
	ids := make([]uint64, 0, len(r.rounds))
	for id := range r.rounds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func containsNode(rs []Recipient, id string) bool {
	for _, r := range rs {
		if r.NodeID == id {
			return true
		}
	}
	return false
}
