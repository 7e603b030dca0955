package synchronizer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/node/outbox"
	"github.com/yndnr/framesync-go/internal/protocol"
	"github.com/yndnr/framesync-go/internal/telemetry/metric"
)

// Transport is the connection the synchronizer drives.
// *transport.Transport implements it.
type Transport interface {
	Connect(ctx context.Context, address string) (domain.ConnState, error)
	Send(m protocol.Message) error
	Receive(timeout time.Duration) (protocol.Message, error)
	State() domain.ConnState
	SetDegraded(degraded bool)
	OnStateChange(fn func(domain.ConnState)) (remove func())
	Close() error
}

// Resolver returns the coordinator address to dial.
type Resolver func(ctx context.Context) (string, error)

// StaticAddress resolves to a fixed address.
func StaticAddress(addr string) Resolver {
	return func(context.Context) (string, error) {
		return addr, nil
	}
}

// Config configures a Synchronizer.
type Config struct {
	NodeID string

	// Enabled turns coordinator synchronization on. When false every
	// round runs offline with local events only.
	Enabled bool

	EventTimeout      time.Duration
	SwapTimeout       time.Duration
	ReconnectInterval time.Duration
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metric set. A nil set disables metrics.
func WithMetrics(m *metric.NodeMetrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithResolver sets how the coordinator address is found.
func WithResolver(r Resolver) Option {
	return func(s *Synchronizer) {
		s.resolve = r
	}
}

// Stats is a point-in-time view of synchronizer counters.
type Stats struct {
	Round          domain.Round
	Phase          domain.Phase
	State          domain.ConnState
	Rounds         uint64 // completed frames
	SyncedRounds   uint64 // phase 1 adopted a coordinator list
	DegradedRounds uint64 // phase 1 fell back to local events while enabled
	MissedBarriers uint64 // phase 2 proceeded without go
	Discarded      uint64 // inbound messages discarded as out-of-round
	ListenerPanics uint64
	Reconnects     uint64
}

// Synchronizer is the Frame Synchronizer of one node.
type Synchronizer struct {
	cfg     Config
	tr      Transport
	resolve Resolver
	outbox  *outbox.Outbox
	logger  *slog.Logger
	metrics *metric.NodeMetrics

	// hookMu is held for the duration of a hook. TryLock failure means
	// a concurrent or re-entrant hook call.
	hookMu    sync.Mutex
	submitted bool // this round's EventSubmit went out; guarded by hookMu

	round atomic.Uint64
	phase atomic.Int32

	eventTimeout atomic.Int64
	swapTimeout  atomic.Int64

	subsMu sync.Mutex
	subs   []*Subscription // copy-on-write
	nextID uint64

	limiter        *rate.Limiter
	reconnect      chan struct{}
	removeListener func()
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	startOnce      sync.Once
	closeOnce      sync.Once

	rounds         atomic.Uint64
	syncedRounds   atomic.Uint64
	degradedRounds atomic.Uint64
	missedBarriers atomic.Uint64
	discarded      atomic.Uint64
	listenerPanics atomic.Uint64
	reconnects     atomic.Uint64
}

// New creates a synchronizer at round 0 in PhaseAwaitingEventPhase.
// The synchronizer owns tr and closes it on Close. tr may be nil when
// cfg.Enabled is false.
func New(cfg Config, tr Transport, opts ...Option) (*Synchronizer, error) {
	if cfg.EventTimeout <= 0 || cfg.SwapTimeout <= 0 {
		return nil, domain.ErrInvalidConfig.WithDetails("phase timeouts must be positive")
	}
	if cfg.Enabled {
		if tr == nil {
			return nil, domain.ErrInvalidConfig.WithDetails("synchronization enabled without a transport")
		}
		if cfg.ReconnectInterval <= 0 {
			return nil, domain.ErrInvalidConfig.WithDetails("reconnect interval must be positive")
		}
	}

	s := &Synchronizer{
		cfg:       cfg,
		tr:        tr,
		outbox:    outbox.New(),
		logger:    slog.Default(),
		reconnect: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "synchronizer", "node_id", cfg.NodeID)
	s.eventTimeout.Store(int64(cfg.EventTimeout))
	s.swapTimeout.Store(int64(cfg.SwapTimeout))
	s.phase.Store(int32(domain.PhaseAwaitingEventPhase))
	return s, nil
}

// Start makes one connection attempt and starts the background
// reconnect loop. An unreachable coordinator is not an error: the node
// runs offline until a reconnect succeeds.
func (s *Synchronizer) Start(ctx context.Context) error {
	if s.Phase() == domain.PhaseShutdown {
		return domain.ErrShutdown
	}
	if !s.cfg.Enabled {
		s.logger.Info("synchronization disabled, running standalone")
		return nil
	}

	s.startOnce.Do(func() {
		if s.resolve == nil {
			s.resolve = func(context.Context) (string, error) {
				return "", domain.ErrServerUnavailable.WithDetails("no coordinator address")
			}
		}

		s.limiter = rate.NewLimiter(rate.Every(s.cfg.ReconnectInterval), 1)
		s.limiter.Allow()

		s.removeListener = s.tr.OnStateChange(s.onStateChange)

		loopCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel

		if err := s.dial(ctx); err != nil {
			s.logger.Warn("coordinator unavailable at startup, running offline",
				"error", err,
			)
			s.triggerReconnect()
		}

		s.wg.Add(1)
		go s.reconnectLoop(loopCtx)
	})
	return nil
}

// Publish queues local events for the next frame. It never waits for
// the network.
func (s *Synchronizer) Publish(events ...domain.Event) error {
	if !s.outbox.Push(events...) {
		return domain.ErrShutdown
	}
	s.metrics.Published(len(events))
	return nil
}

// Pending returns the number of queued local events.
func (s *Synchronizer) Pending() int {
	return s.outbox.Len()
}

// Round returns the current Frame Round.
func (s *Synchronizer) Round() domain.Round {
	return domain.Round(s.round.Load())
}

// Phase returns the current state machine phase.
func (s *Synchronizer) Phase() domain.Phase {
	return domain.Phase(s.phase.Load())
}

// State returns the connection state. Always Disconnected when
// synchronization is disabled.
func (s *Synchronizer) State() domain.ConnState {
	if s.tr == nil {
		return domain.StateDisconnected
	}
	return s.tr.State()
}

// SetTimeouts changes the phase timeouts for subsequent waits.
// Non-positive values are ignored.
func (s *Synchronizer) SetTimeouts(event, swap time.Duration) {
	if event > 0 {
		s.eventTimeout.Store(int64(event))
	}
	if swap > 0 {
		s.swapTimeout.Store(int64(swap))
	}
}

// Timeouts returns the current phase timeouts.
func (s *Synchronizer) Timeouts() (event, swap time.Duration) {
	return time.Duration(s.eventTimeout.Load()), time.Duration(s.swapTimeout.Load())
}

// Stats returns a snapshot of the counters.
func (s *Synchronizer) Stats() Stats {
	return Stats{
		Round:          s.Round(),
		Phase:          s.Phase(),
		State:          s.State(),
		Rounds:         s.rounds.Load(),
		SyncedRounds:   s.syncedRounds.Load(),
		DegradedRounds: s.degradedRounds.Load(),
		MissedBarriers: s.missedBarriers.Load(),
		Discarded:      s.discarded.Load(),
		ListenerPanics: s.listenerPanics.Load(),
		Reconnects:     s.reconnects.Load(),
	}
}

// Close moves to PhaseShutdown from any phase, closes the transport and
// stops the reconnect loop. Later hook calls return ErrShutdown.
func (s *Synchronizer) Close() error {
	s.closeOnce.Do(func() {
		s.phase.Store(int32(domain.PhaseShutdown))
		s.outbox.Close()
		if s.cancel != nil {
			s.cancel()
		}
		if s.removeListener != nil {
			s.removeListener()
		}
		if s.tr != nil {
			s.tr.Close()
		}
		s.wg.Wait()

		s.subsMu.Lock()
		for _, sub := range s.subs {
			sub.closed.Store(true)
		}
		s.subs = nil
		s.subsMu.Unlock()

		s.logger.Info("synchronizer shut down", "round", uint64(s.Round()))
	})
	return nil
}

// setPhase moves to p unless the synchronizer has shut down.
func (s *Synchronizer) setPhase(p domain.Phase) {
	for {
		cur := s.phase.Load()
		if domain.Phase(cur) == domain.PhaseShutdown {
			return
		}
		if s.phase.CompareAndSwap(cur, int32(p)) {
			return
		}
	}
}
