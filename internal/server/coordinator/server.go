package coordinator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/protocol"
	"github.com/yndnr/framesync-go/internal/server/registry"
	"github.com/yndnr/framesync-go/internal/storage/journal"
	"github.com/yndnr/framesync-go/internal/telemetry/metric"
)

// Config holds the coordinator configuration.
type Config struct {
	// Addr is the sync listener address.
	Addr string
	// IdleTimeout closes a session that sends nothing for this long.
	IdleTimeout time.Duration
	// HandshakeTimeout bounds the Hello/Welcome exchange.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// WriteQueue is the per-session outbound queue length.
	WriteQueue int

	// SubmitTimeout and BarrierTimeout must be shorter than the nodes'
	// event and swap timeouts plus the round trip.
	SubmitTimeout  time.Duration
	BarrierTimeout time.Duration
	// TickInterval is how often round deadlines are checked.
	TickInterval time.Duration

	// ClusterKey authenticates Hello. Empty accepts every node.
	ClusterKey []byte
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:             "0.0.0.0:7450",
		IdleTimeout:      30 * time.Second,
		HandshakeTimeout: 2 * time.Second,
		WriteTimeout:     250 * time.Millisecond,
		WriteQueue:       64,
		SubmitTimeout:    25 * time.Millisecond,
		BarrierTimeout:   25 * time.Millisecond,
		TickInterval:     2 * time.Millisecond,
	}
}

// Journal receives merged rounds. *journal.Journal implements it.
type Journal interface {
	Append(e journal.Entry) error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metric set.
func WithMetrics(m *metric.CoordinatorMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithJournal records every merged round in j.
func WithJournal(j Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// WithClock replaces time.Now. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// Server is the coordinating server.
type Server struct {
	cfg     *Config
	logger  *slog.Logger
	metrics *metric.CoordinatorMetrics
	journal Journal
	now     func() time.Time

	mu       sync.Mutex
	reg      *registry.Registry
	sessions map[string]*session // by session ID

	journalCh chan journal.Entry

	ln      net.Listener
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a coordinator. Start begins serving.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*session),
		reg: registry.New(registry.Config{
			SubmitTimeout:  cfg.SubmitTimeout,
			BarrierTimeout: cfg.BarrierTimeout,
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "coordinator")
	return s
}

// Start listens on cfg.Addr and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("coordinator: listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.running.Store(true)

	ctx, s.cancel = context.WithCancel(ctx)

	if s.journal != nil {
		s.journalCh = make(chan journal.Entry, 1024)
		s.wg.Add(1)
		go s.journalLoop(ctx)
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx); err != nil && s.running.Load() {
			s.logger.Error("accept loop failed", "error", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		s.tickLoop(ctx)
	}()

	s.logger.Info("coordinator listening",
		"address", ln.Addr().String(),
		"submit_timeout", s.cfg.SubmitTimeout,
		"barrier_timeout", s.cfg.BarrierTimeout,
		"authenticated", len(s.cfg.ClusterKey) > 0)
	return nil
}

// Addr returns the listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Status returns a registry snapshot.
func (s *Server) Status() registry.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Status()
}

// SetTimeouts changes the round deadlines for subsequent evaluation.
func (s *Server) SetTimeouts(submit, barrier time.Duration) {
	s.mu.Lock()
	s.reg.SetTimeouts(submit, barrier)
	s.mu.Unlock()
	s.logger.Info("round timeouts updated", "submit_timeout", submit, "barrier_timeout", barrier)
}

// Shutdown stops accepting, closes every session and waits for the
// serving goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	var firstErr error
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		firstErr = err
	}
	s.cancel()

	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("coordinator stopped")
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(c)
		}()
	}
}

func (s *Server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			res := s.reg.Tick(s.now())
			s.dispatch(res)
			s.mu.Unlock()
		}
	}
}

func (s *Server) serveConn(c net.Conn) {
	if tcp, ok := c.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	r := bufio.NewReader(c)

	sess, err := s.handshake(c, r)
	if err != nil {
		s.logger.Warn("handshake failed", "remote", c.RemoteAddr().String(), "error", err)
		c.Close()
		return
	}
	log := s.logger.With("node_id", sess.nodeID, "session_id", sess.id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.writeLoop(s.cfg.WriteTimeout)
	}()

	defer func() {
		sess.close()
		s.mu.Lock()
		res := s.reg.Unregister(sess.nodeID, sess.id, s.now())
		if cur, ok := s.sessions[sess.id]; ok && cur == sess {
			delete(s.sessions, sess.id)
		}
		s.metrics.SetSessions(len(s.sessions))
		s.dispatch(res)
		s.mu.Unlock()
		log.Info("node disconnected", "remote", sess.remote)
	}()

	for {
		if s.cfg.IdleTimeout > 0 {
			if err := c.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
				return
			}
		}

		m, err := protocol.ReadMessage(r)
		if err != nil {
			if !protocol.IsFatal(err) {
				s.metrics.ProtocolViolation()
				log.Warn("discarding malformed frame", "error", err)
				continue
			}
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			case errors.As(err, &netErr) && netErr.Timeout():
				log.Info("session idle, closing")
			default:
				log.Debug("session read failed", "error", err)
			}
			return
		}

		s.handle(log, sess, m)
	}
}

// handshake reads Hello, authenticates it, registers the session and
// writes Welcome. A refused node gets Reject before the close.
func (s *Server) handshake(c net.Conn, r *bufio.Reader) (*session, error) {
	if s.cfg.HandshakeTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}

	hello, err := protocol.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}

	reject := func(reason string) error {
		s.metrics.HandshakeRejected()
		_ = protocol.WriteMessage(c, protocol.NewReject(reason))
		return domain.ErrAuthRejected.WithDetails(reason)
	}

	switch {
	case hello.Kind != protocol.KindHello:
		return nil, reject(fmt.Sprintf("expected Hello, got %s", hello.Kind))
	case hello.Version != protocol.ProtocolVersion:
		return nil, reject(fmt.Sprintf("unsupported protocol version %d", hello.Version))
	case domain.ValidateNodeID(hello.NodeID) != nil:
		return nil, reject("invalid node id")
	case !protocol.VerifyMAC(s.cfg.ClusterKey, hello.NodeID, hello.MAC):
		return nil, reject("cluster key mismatch")
	}

	sess := newSession(uuid.NewString(), hello.NodeID, c, s.cfg.WriteQueue)

	// Welcome goes out before the session is visible to dispatch so it
	// is always the first frame the node reads.
	if err := protocol.WriteMessage(c, protocol.NewWelcome(sess.id, sess.nodeID)); err != nil {
		return nil, fmt.Errorf("write welcome: %w", err)
	}
	_ = c.SetDeadline(time.Time{})

	s.mu.Lock()
	replaced := s.reg.Register(sess.nodeID, sess.id, sess.remote, s.now())
	if old, ok := s.sessions[replaced]; ok {
		old.close()
		delete(s.sessions, replaced)
	}
	s.sessions[sess.id] = sess
	s.metrics.SetSessions(len(s.sessions))
	s.mu.Unlock()

	// Shutdown may have swept sessions while this one was handshaking.
	if !s.running.Load() {
		sess.close()
	}

	s.logger.Info("node registered",
		"node_id", sess.nodeID,
		"session_id", sess.id,
		"remote", sess.remote,
		"replaced_session", replaced)
	return sess, nil
}

func (s *Server) handle(log *slog.Logger, sess *session, m protocol.Message) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		res registry.Result
		err error
	)
	switch m.Kind {
	case protocol.KindEventSubmit:
		res, err = s.reg.Submit(sess.nodeID, sess.id, m.Round, m.Events, now)
	case protocol.KindSwapReady:
		res, err = s.reg.Ready(sess.nodeID, sess.id, m.Round, now)
	default:
		s.metrics.ProtocolViolation()
		log.Warn("unexpected message kind", "kind", m.Kind.String(), "round", m.Round)
		return
	}
	if err != nil {
		if errors.Is(err, registry.ErrUnknownRound) {
			// A ready that arrives after its barrier timed out.
			log.Debug("late message ignored", "kind", m.Kind.String(), "round", m.Round)
			return
		}
		log.Warn("message rejected", "kind", m.Kind.String(), "round", m.Round, "error", err)
		return
	}
	s.dispatch(res)
}

// dispatch sends the replies a registry call decided. Caller holds s.mu
// so replies from concurrent calls reach each session in round order.
func (s *Server) dispatch(res registry.Result) {
	for _, m := range res.Merges {
		for _, rc := range m.Recipients {
			msg := protocol.Message{Kind: protocol.KindEventSync, Round: rc.Tag, Events: m.Events, Digest: m.Digest}
			s.send(rc, msg)
		}
		s.metrics.RoundMerged(len(m.Events), len(m.Missing))
		s.record(m)

		if m.TimedOut {
			s.logger.Debug("round merged on timeout",
				"round", m.Round,
				"events", len(m.Events),
				"missing", m.Missing)
		}
	}

	for _, rel := range res.Releases {
		for _, rc := range rel.Recipients {
			s.send(rc, protocol.NewSwapGo(rc.Tag))
		}
		s.metrics.BarrierReleased(rel.TimedOut, rel.Wait)
		if rel.TimedOut {
			s.logger.Debug("barrier released on timeout",
				"round", rel.Round,
				"missing", rel.Missing)
		}
	}
}

func (s *Server) send(rc registry.Recipient, m protocol.Message) {
	sess, ok := s.sessions[rc.SessionID]
	if !ok {
		return
	}
	frame, err := protocol.Encode(m)
	if err != nil {
		s.logger.Error("encode reply failed", "kind", m.Kind.String(), "node_id", rc.NodeID, "error", err)
		return
	}
	if err := sess.enqueue(frame); err != nil {
		if errors.Is(err, errSessionClosed) {
			// Already gone; its disconnect is handled by the read loop.
			return
		}
		s.metrics.QueueDrop()
		s.logger.Warn("session queue full, disconnecting",
			"node_id", sess.nodeID,
			"session_id", sess.id)
		sess.close()
	}
}

func (s *Server) record(m registry.Merge) {
	if s.journalCh == nil {
		return
	}
	nodes := make([]string, len(m.Recipients))
	for i, rc := range m.Recipients {
		nodes[i] = rc.NodeID
	}
	e := journal.Entry{
		Round:    m.Round,
		Digest:   m.Digest,
		At:       s.now(),
		Nodes:    nodes,
		Missing:  m.Missing,
		TimedOut: m.TimedOut,
		Events:   m.Events,
	}
	select {
	case s.journalCh <- e:
	default:
		s.logger.Warn("journal queue full, round not recorded", "round", m.Round)
	}
}

func (s *Server) journalLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case e := <-s.journalCh:
			if err := s.journal.Append(e); err != nil {
				s.logger.Error("journal append failed", "round", e.Round, "error", err)
			}
		case <-ctx.Done():
			for {
				select {
				case e := <-s.journalCh:
					if err := s.journal.Append(e); err != nil {
						s.logger.Error("journal append failed", "round", e.Round, "error", err)
					}
				default:
					return
				}
			}
		}
	}
}
