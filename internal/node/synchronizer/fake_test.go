package synchronizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/protocol"
)

// fakeTransport is an in-memory Transport. reply, when set, is called
// for every sent message and its results are queued as inbound.
type fakeTransport struct {
	mu         sync.Mutex
	state      domain.ConnState
	sent       []protocol.Message
	connectErr error
	connects   int
	degraded   []bool
	listeners  map[int]func(domain.ConnState)
	nextID     int
	reply      func(m protocol.Message) []protocol.Message
	closed     bool

	inbox chan protocol.Message
	lost  chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:     make(chan protocol.Message, 16),
		lost:      make(chan struct{}),
		listeners: make(map[int]func(domain.ConnState)),
	}
}

func (f *fakeTransport) setState(st domain.ConnState) {
	f.mu.Lock()
	f.state = st
	fns := make([]func(domain.ConnState), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (f *fakeTransport) Connect(ctx context.Context, address string) (domain.ConnState, error) {
	f.mu.Lock()
	f.connects++
	err := f.connectErr
	if f.closed {
		err = domain.ErrShutdown
	}
	f.mu.Unlock()

	f.setState(domain.StateConnecting)
	if err != nil {
		f.setState(domain.StateDisconnected)
		return domain.StateDisconnected, domain.ErrServerUnavailable.WithCause(err)
	}
	f.mu.Lock()
	f.lost = make(chan struct{})
	f.mu.Unlock()
	f.setState(domain.StateConnected)
	return domain.StateConnected, nil
}

func (f *fakeTransport) Send(m protocol.Message) error {
	f.mu.Lock()
	if !f.state.IsLive() {
		f.mu.Unlock()
		return domain.ErrNotConnected
	}
	f.sent = append(f.sent, m)
	reply := f.reply
	f.mu.Unlock()

	if reply != nil {
		for _, r := range reply(m) {
			f.inbox <- r
		}
	}
	return nil
}

func (f *fakeTransport) Receive(timeout time.Duration) (protocol.Message, error) {
	f.mu.Lock()
	live := f.state.IsLive()
	lost := f.lost
	f.mu.Unlock()

	select {
	case m := <-f.inbox:
		return m, nil
	default:
	}
	if !live {
		return protocol.Message{}, domain.ErrNotConnected
	}
	if timeout <= 0 {
		return protocol.Message{}, domain.ErrPhaseTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-f.inbox:
		return m, nil
	case <-lost:
		return protocol.Message{}, domain.ErrConnectionLost
	case <-timer.C:
		return protocol.Message{}, domain.ErrPhaseTimeout
	}
}

// drop simulates the coordinator going away.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	lost := f.lost
	f.mu.Unlock()
	f.setState(domain.StateDisconnected)
	close(lost)
}

func (f *fakeTransport) State() domain.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) SetDegraded(degraded bool) {
	f.mu.Lock()
	f.degraded = append(f.degraded, degraded)
	f.mu.Unlock()
}

func (f *fakeTransport) OnStateChange(fn func(domain.ConnState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) sentKinds() []protocol.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Kind, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Kind
	}
	return out
}

func (f *fakeTransport) lastDegraded() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.degraded) == 0 {
		return false, false
	}
	return f.degraded[len(f.degraded)-1], true
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) setConnectErr(err error) {
	f.mu.Lock()
	f.connectErr = err
	f.mu.Unlock()
}

// coordinatorReply answers like a healthy coordinator with a single
// node: EventSync echoes the submitted batch after extra, and every
// SwapReady is released.
func coordinatorReply(extra ...domain.Event) func(protocol.Message) []protocol.Message {
	return func(m protocol.Message) []protocol.Message {
		switch m.Kind {
		case protocol.KindEventSubmit:
			merged := append(append([]domain.Event{}, extra...), m.Events...)
			return []protocol.Message{protocol.NewEventSync(m.Round, merged)}
		case protocol.KindSwapReady:
			return []protocol.Message{protocol.NewSwapGo(m.Round)}
		}
		return nil
	}
}

var errRefused = errors.New("connection refused")
