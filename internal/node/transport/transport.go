package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/protocol"
)

// Defaults applied when Config fields are zero.
const (
	DefaultConnectTimeout = time.Second
	DefaultWriteTimeout   = 250 * time.Millisecond
	DefaultInboxSize      = 64
)

// Config configures a Transport.
type Config struct {
	// NodeID is announced in Hello.
	NodeID string

	// ClusterKey keys the handshake MAC. Empty disables authentication.
	ClusterKey []byte

	// ConnectTimeout bounds dialing plus the Hello/Welcome exchange.
	ConnectTimeout time.Duration

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// InboxSize bounds buffered inbound messages. When full, the oldest
	// message is dropped.
	InboxSize int
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithViolationHook sets a callback invoked for every discarded inbound frame.
func WithViolationHook(fn func(error)) Option {
	return func(t *Transport) {
		t.onViolation = fn
	}
}

// session is the per-connection state. A new session is created on
// every successful Connect so that waiters on an old connection observe
// its loss even after a reconnect.
type session struct {
	id       string
	remote   string
	conn     net.Conn
	inbox    chan protocol.Message
	lost     chan struct{}
	lostOnce sync.Once
	lostErr  error
}

// Transport is a single persistent connection to the coordinator.
type Transport struct {
	cfg         Config
	logger      *slog.Logger
	onViolation func(error)

	mu   sync.Mutex // guards sess
	sess *session

	writeMu sync.Mutex // serializes frame writes

	state atomic.Int32

	listenersMu sync.RWMutex
	listeners   map[uint64]func(domain.ConnState)
	nextID      uint64

	violations atomic.Uint64
	closed     atomic.Bool
}

// New creates a disconnected transport.
func New(cfg Config, opts ...Option) *Transport {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultInboxSize
	}

	t := &Transport{
		cfg:       cfg,
		logger:    slog.Default(),
		listeners: make(map[uint64]func(domain.ConnState)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "transport", "node_id", cfg.NodeID)
	t.state.Store(int32(domain.StateDisconnected))
	return t
}

// Connect dials address and performs the handshake. Any existing
// connection is closed first. On failure the transport is Disconnected
// and the error wraps ErrServerUnavailable or ErrAuthRejected.
func (t *Transport) Connect(ctx context.Context, address string) (domain.ConnState, error) {
	if t.closed.Load() {
		return domain.StateDisconnected, domain.ErrShutdown
	}

	t.dropSession(errors.New("reconnecting"))
	t.setState(domain.StateConnecting)

	sess, err := t.handshake(ctx, address)
	if err != nil {
		t.setState(domain.StateDisconnected)
		return domain.StateDisconnected, err
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		sess.conn.Close()
		t.setState(domain.StateDisconnected)
		return domain.StateDisconnected, domain.ErrShutdown
	}
	// The session and its state change together so that a loss seen by
	// readLoop can never be overwritten by a late Connected.
	t.sess = sess
	changed := t.swapState(domain.StateConnected)
	t.mu.Unlock()

	t.logger.Info("connected to coordinator",
		"remote", sess.remote,
		"session_id", sess.id,
	)
	if changed {
		t.notify(domain.StateConnected)
	}
	go t.readLoop(sess)
	return domain.StateConnected, nil
}

func (t *Transport) handshake(ctx context.Context, address string) (*session, error) {
	mac, err := protocol.MAC(t.cfg.ClusterKey, t.cfg.NodeID)
	if err != nil {
		return nil, domain.ErrInvalidConfig.WithCause(err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, domain.ErrServerUnavailable.WithDetails(address).WithCause(err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)

	if err := protocol.WriteMessage(conn, protocol.NewHello(t.cfg.NodeID, mac)); err != nil {
		conn.Close()
		return nil, domain.ErrServerUnavailable.WithDetails("send hello").WithCause(err)
	}

	r := bufio.NewReader(conn)
	reply, err := protocol.ReadMessage(r)
	if err != nil {
		conn.Close()
		return nil, domain.ErrServerUnavailable.WithDetails("read welcome").WithCause(err)
	}

	switch reply.Kind {
	case protocol.KindWelcome:
	case protocol.KindReject:
		conn.Close()
		return nil, domain.ErrAuthRejected.WithDetails(reply.Reason)
	default:
		conn.Close()
		return nil, domain.ErrProtocolViolation.WithDetails(fmt.Sprintf("expected Welcome, got %s", reply.Kind))
	}

	conn.SetDeadline(time.Time{})

	return &session{
		id:     reply.SessionID,
		remote: conn.RemoteAddr().String(),
		conn:   &bufferedConn{Conn: conn, r: r},
		inbox:  make(chan protocol.Message, t.cfg.InboxSize),
		lost:   make(chan struct{}),
	}, nil
}

// readLoop decodes frames until the connection fails.
func (t *Transport) readLoop(sess *session) {
	for {
		m, err := protocol.ReadMessage(sess.conn)
		if err != nil {
			if protocol.IsFatal(err) {
				t.lose(sess, err)
				return
			}
			t.violation(fmt.Errorf("discard inbound frame: %w", err))
			continue
		}

		switch m.Kind {
		case protocol.KindEventSync, protocol.KindSwapGo:
		default:
			t.violation(fmt.Errorf("unexpected %s after handshake", m.Kind))
			continue
		}

		select {
		case sess.inbox <- m:
		default:
			// Drop the oldest message; stale rounds are discarded by the
			// synchronizer anyway.
			select {
			case old := <-sess.inbox:
				t.violation(fmt.Errorf("inbox full, dropped %s round %d", old.Kind, old.Round))
			default:
			}
			select {
			case sess.inbox <- m:
			default:
			}
		}
	}
}

func (t *Transport) violation(err error) {
	t.violations.Add(1)
	t.logger.Warn("protocol violation", "error", err)
	if t.onViolation != nil {
		t.onViolation(err)
	}
}

// Send writes one message. It fails with ErrNotConnected when there is
// no live connection and with ErrConnectionLost when the write fails;
// a failed write also drops the connection.
func (t *Transport) Send(m protocol.Message) error {
	sess := t.current()
	if sess == nil {
		return domain.ErrNotConnected
	}

	frame, err := protocol.Encode(m)
	if err != nil {
		return domain.ErrProtocolViolation.WithCause(err)
	}

	t.writeMu.Lock()
	sess.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	_, err = sess.conn.Write(frame)
	t.writeMu.Unlock()

	if err != nil {
		t.lose(sess, err)
		return domain.ErrConnectionLost.WithCause(err)
	}
	return nil
}

// Receive waits up to timeout for the next inbound message.
//
// It returns ErrPhaseTimeout when nothing arrives in time,
// ErrConnectionLost when the connection drops during the wait and
// ErrNotConnected when there is no connection at all. Messages already
// buffered are returned even if the connection has since dropped.
func (t *Transport) Receive(timeout time.Duration) (protocol.Message, error) {
	sess := t.current()
	if sess == nil {
		return protocol.Message{}, domain.ErrNotConnected
	}

	select {
	case m := <-sess.inbox:
		return m, nil
	default:
	}

	if timeout <= 0 {
		return protocol.Message{}, domain.ErrPhaseTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-sess.inbox:
		return m, nil
	case <-sess.lost:
		select {
		case m := <-sess.inbox:
			return m, nil
		default:
		}
		return protocol.Message{}, domain.ErrConnectionLost.WithCause(sess.lostErr)
	case <-timer.C:
		return protocol.Message{}, domain.ErrPhaseTimeout
	}
}

// State returns the current connection state.
func (t *Transport) State() domain.ConnState {
	return domain.ConnState(t.state.Load())
}

// SetDegraded moves a live connection between Connected and Degraded.
// It has no effect in any other state.
func (t *Transport) SetDegraded(degraded bool) {
	from, to := domain.StateConnected, domain.StateDegraded
	if !degraded {
		from, to = to, from
	}
	if t.state.CompareAndSwap(int32(from), int32(to)) {
		t.notify(to)
	}
}

// SessionID returns the coordinator-issued session ID of the current
// connection, or "" when disconnected.
func (t *Transport) SessionID() string {
	if sess := t.current(); sess != nil {
		return sess.id
	}
	return ""
}

// Violations returns the number of discarded inbound frames.
func (t *Transport) Violations() uint64 {
	return t.violations.Load()
}

// OnStateChange registers fn for state transitions and returns a
// function that unregisters it. fn runs on the goroutine causing the
// transition and must not block.
func (t *Transport) OnStateChange(fn func(domain.ConnState)) (remove func()) {
	t.listenersMu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.listenersMu.Lock()
			delete(t.listeners, id)
			t.listenersMu.Unlock()
		})
	}
}

// Close drops the connection and rejects further Connect calls.
func (t *Transport) Close() error {
	t.closed.Store(true)
	t.dropSession(domain.ErrShutdown)
	return nil
}

func (t *Transport) current() *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess
}

// dropSession closes the current connection, if any.
func (t *Transport) dropSession(reason error) {
	if sess := t.current(); sess != nil {
		t.lose(sess, reason)
	}
}

// lose marks sess as lost. Only the first call per session has effect.
func (t *Transport) lose(sess *session, err error) {
	sess.lostOnce.Do(func() {
		sess.lostErr = err
		sess.conn.Close()

		var changed bool
		t.mu.Lock()
		current := t.sess == sess
		if current {
			t.sess = nil
			changed = t.swapState(domain.StateDisconnected)
		}
		t.mu.Unlock()

		if current {
			t.logger.Warn("connection lost",
				"remote", sess.remote,
				"error", err,
			)
			if changed {
				t.notify(domain.StateDisconnected)
			}
		}

		// Waiters wake only after the state reflects the loss.
		close(sess.lost)
	})
}

func (t *Transport) setState(s domain.ConnState) {
	if t.swapState(s) {
		t.notify(s)
	}
}

// swapState stores s and reports whether the state changed.
func (t *Transport) swapState(s domain.ConnState) bool {
	return domain.ConnState(t.state.Swap(int32(s))) != s
}

func (t *Transport) notify(s domain.ConnState) {
	t.listenersMu.RLock()
	fns := make([]func(domain.ConnState), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}

// bufferedConn reads through the reader used during the handshake so
// that bytes already buffered there are not lost.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
