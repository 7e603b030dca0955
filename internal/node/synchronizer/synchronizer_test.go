package synchronizer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/protocol"
)

func testConfig(enabled bool) Config {
	return Config{
		NodeID:            "projector-left",
		Enabled:           enabled,
		EventTimeout:      30 * time.Millisecond,
		SwapTimeout:       30 * time.Millisecond,
		ReconnectInterval: 10 * time.Millisecond,
	}
}

func newConnected(t *testing.T, tr *fakeTransport) *Synchronizer {
	t.Helper()
	s, err := New(testConfig(true), tr, WithResolver(StaticAddress("coordinator:7450")))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Close() })
	require.Equal(t, domain.StateConnected, s.State())
	return s
}

// recorder collects delivered events.
type recorder struct {
	mu     sync.Mutex
	rounds []domain.Round
	names  []string
}

func (r *recorder) listen(round domain.Round, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, round)
	r.names = append(r.names, e.Name())
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func runFrame(t *testing.T, s *Synchronizer) []domain.Event {
	t.Helper()
	list, err := s.OnFrameBegin(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.OnRenderComplete(context.Background()))
	return list
}

func TestNew_Validation(t *testing.T) {
	cfg := testConfig(true)
	cfg.EventTimeout = 0
	_, err := New(cfg, newFakeTransport())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = New(testConfig(true), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	cfg = testConfig(true)
	cfg.ReconnectInterval = 0
	_, err = New(cfg, newFakeTransport())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = New(testConfig(false), nil)
	assert.NoError(t, err)
}

func TestStandalone_DeliversLocalEventsInOrder(t *testing.T) {
	s, err := New(testConfig(false), nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	var rec recorder
	s.Subscribe(rec.listen)

	require.NoError(t, s.Publish(domain.MustEvent("Head_Move"), domain.MustEvent("Brush_Move")))
	require.NoError(t, s.Publish(domain.MustEvent("Grab")))
	assert.Equal(t, 3, s.Pending())

	list, err := s.OnFrameBegin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Head_Move", "Brush_Move", "Grab"}, domain.Names(list))
	assert.Equal(t, []string{"Head_Move", "Brush_Move", "Grab"}, rec.got())
	assert.Equal(t, domain.PhaseAwaitingSwapReady, s.Phase())
	assert.Equal(t, 0, s.Pending())

	require.NoError(t, s.OnRenderComplete(context.Background()))
	assert.Equal(t, domain.Round(1), s.Round())
	assert.Equal(t, domain.PhaseAwaitingEventPhase, s.Phase())
	assert.Equal(t, domain.StateDisconnected, s.State())
}

func TestSynced_AdoptsAuthoritativeList(t *testing.T) {
	tr := newFakeTransport()
	tr.reply = coordinatorReply(domain.MustEvent("Brush_Move"))
	s := newConnected(t, tr)

	var rec recorder
	s.Subscribe(rec.listen)
	require.NoError(t, s.Publish(domain.MustEvent("Head_Move")))

	list := runFrame(t, s)

	assert.Equal(t, []string{"Brush_Move", "Head_Move"}, domain.Names(list))
	assert.Equal(t, []string{"Brush_Move", "Head_Move"}, rec.got())
	assert.Equal(t, []protocol.Kind{protocol.KindEventSubmit, protocol.KindSwapReady}, tr.sentKinds())

	st := s.Stats()
	assert.Equal(t, domain.Round(1), st.Round)
	assert.Equal(t, uint64(1), st.Rounds)
	assert.Equal(t, uint64(1), st.SyncedRounds)
	assert.Zero(t, st.MissedBarriers)
	assert.Zero(t, st.DegradedRounds)
}

func TestRounds_AreMonotonic(t *testing.T) {
	tr := newFakeTransport()
	tr.reply = coordinatorReply()
	s := newConnected(t, tr)

	var rec recorder
	s.Subscribe(rec.listen)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Publish(domain.MustEvent("Tick", domain.KV{Key: "i", Value: i})))
		runFrame(t, s)
	}

	assert.Equal(t, domain.Round(5), s.Round())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, r := range rec.rounds {
		assert.Equal(t, domain.Round(i), r)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	var last uint64
	for i, m := range tr.sent {
		if i > 0 {
			assert.GreaterOrEqual(t, m.Round, last)
		}
		last = m.Round
	}
}

func TestEventTimeout_FallsBackToLocalEvents(t *testing.T) {
	tr := newFakeTransport()
	s := newConnected(t, tr)

	require.NoError(t, s.Publish(domain.MustEvent("Head_Move")))

	start := time.Now()
	list, err := s.OnFrameBegin(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, []string{"Head_Move"}, domain.Names(list))
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)

	degraded, ok := tr.lastDegraded()
	assert.True(t, ok)
	assert.True(t, degraded)
	assert.Equal(t, uint64(1), s.Stats().DegradedRounds)
}

func TestSwapTimeout_ProceedsAsIfGo(t *testing.T) {
	tr := newFakeTransport()
	tr.reply = func(m protocol.Message) []protocol.Message {
		if m.Kind == protocol.KindEventSubmit {
			return []protocol.Message{protocol.NewEventSync(m.Round, m.Events)}
		}
		return nil
	}
	s := newConnected(t, tr)

	_, err := s.OnFrameBegin(context.Background())
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, s.OnRenderComplete(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, domain.Round(1), s.Round())
	assert.Equal(t, domain.PhaseAwaitingEventPhase, s.Phase())
	assert.Equal(t, uint64(1), s.Stats().MissedBarriers)
}

func TestUnreachableServer_RunsOffline(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = errRefused

	cfg := testConfig(true)
	cfg.ReconnectInterval = time.Hour
	s, err := New(cfg, tr, WithResolver(StaticAddress("coordinator:7450")))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	require.NoError(t, s.Publish(domain.MustEvent("Head_Move")))

	start := time.Now()
	list := runFrame(t, s)
	elapsed := time.Since(start)

	assert.Equal(t, []string{"Head_Move"}, domain.Names(list))
	assert.Less(t, elapsed, 20*time.Millisecond, "offline frames must not wait")
	assert.Empty(t, tr.sentKinds())
	assert.Equal(t, domain.Round(1), s.Round())
	assert.Zero(t, s.Stats().MissedBarriers)
}

func TestDisconnectDuringEventPhase_FallsBack(t *testing.T) {
	tr := newFakeTransport()
	s := newConnected(t, tr)
	tr.setConnectErr(errRefused)
	tr.reply = func(m protocol.Message) []protocol.Message {
		if m.Kind == protocol.KindEventSubmit {
			go tr.drop()
		}
		return nil
	}

	cfg := testConfig(true)
	s.SetTimeouts(time.Second, cfg.SwapTimeout)

	require.NoError(t, s.Publish(domain.MustEvent("Grab")))

	start := time.Now()
	list, err := s.OnFrameBegin(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []string{"Grab"}, domain.Names(list))

	// Submission went out, but the connection is gone: no SwapReady.
	require.NoError(t, s.OnRenderComplete(context.Background()))
	assert.Equal(t, []protocol.Kind{protocol.KindEventSubmit}, tr.sentKinds())
	assert.Equal(t, domain.Round(1), s.Round())
}

func TestReconnect_AfterServerReturns(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = errRefused

	s, err := New(testConfig(true), tr, WithResolver(StaticAddress("coordinator:7450")))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	assert.Equal(t, domain.StateDisconnected, s.State())

	tr.setConnectErr(nil)
	assert.Eventually(t, func() bool {
		return s.State() == domain.StateConnected
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, tr.connectCount(), 2)
	assert.GreaterOrEqual(t, s.Stats().Reconnects, uint64(1))
}

func TestOutOfRoundMessages_AreDiscarded(t *testing.T) {
	tr := newFakeTransport()
	tr.reply = func(m protocol.Message) []protocol.Message {
		switch m.Kind {
		case protocol.KindEventSubmit:
			return []protocol.Message{
				protocol.NewSwapGo(m.Round),
				protocol.NewEventSync(m.Round+5, []domain.Event{domain.MustEvent("Stale")}),
				protocol.NewEventSync(m.Round, m.Events),
			}
		case protocol.KindSwapReady:
			return []protocol.Message{protocol.NewSwapGo(m.Round)}
		}
		return nil
	}
	s := newConnected(t, tr)

	require.NoError(t, s.Publish(domain.MustEvent("Head_Move")))
	list := runFrame(t, s)

	assert.Equal(t, []string{"Head_Move"}, domain.Names(list))
	st := s.Stats()
	assert.Equal(t, uint64(2), st.Discarded)
	assert.Equal(t, uint64(1), st.SyncedRounds)
	assert.Zero(t, st.MissedBarriers)
}

func TestHooks_OutOfOrder(t *testing.T) {
	s, err := New(testConfig(false), nil)
	require.NoError(t, err)
	defer s.Close()

	err = s.OnRenderComplete(context.Background())
	assert.ErrorIs(t, err, domain.ErrHookOutOfOrder)

	_, err = s.OnFrameBegin(context.Background())
	require.NoError(t, err)

	_, err = s.OnFrameBegin(context.Background())
	assert.ErrorIs(t, err, domain.ErrHookOutOfOrder)
	assert.Equal(t, domain.PhaseAwaitingSwapReady, s.Phase())
	assert.Equal(t, domain.Round(0), s.Round())
}

func TestHooks_ReentrantFromListener(t *testing.T) {
	s, err := New(testConfig(false), nil)
	require.NoError(t, err)
	defer s.Close()

	var inner error
	s.Subscribe(func(domain.Round, domain.Event) {
		_, inner = s.OnFrameBegin(context.Background())
	})
	require.NoError(t, s.Publish(domain.MustEvent("Grab")))

	runFrame(t, s)
	assert.ErrorIs(t, inner, domain.ErrHookOutOfOrder)
}

func TestSubscription_Close(t *testing.T) {
	s, err := New(testConfig(false), nil)
	require.NoError(t, err)
	defer s.Close()

	var calls int
	var sub *Subscription
	sub = s.Subscribe(func(domain.Round, domain.Event) {
		calls++
		sub.Close()
	})
	var rec recorder
	s.Subscribe(rec.listen)
	assert.Equal(t, 2, s.Subscribers())

	require.NoError(t, s.Publish(domain.MustEvent("A"), domain.MustEvent("B")))
	runFrame(t, s)

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"A", "B"}, rec.got())
	assert.False(t, sub.Active())
	assert.Equal(t, 1, s.Subscribers())
	assert.NoError(t, sub.Close())
}

func TestListenerPanic_DoesNotAbortFrame(t *testing.T) {
	s, err := New(testConfig(false), nil)
	require.NoError(t, err)
	defer s.Close()

	s.Subscribe(func(_ domain.Round, e domain.Event) {
		if e.Name() == "Boom" {
			panic("listener bug")
		}
	})
	var rec recorder
	s.Subscribe(rec.listen)

	require.NoError(t, s.Publish(domain.MustEvent("Boom"), domain.MustEvent("Grab")))
	runFrame(t, s)

	assert.Equal(t, []string{"Boom", "Grab"}, rec.got())
	assert.Equal(t, uint64(1), s.Stats().ListenerPanics)
	assert.Equal(t, domain.Round(1), s.Round())
}

func TestPublish_DoesNotBlockDuringPhaseWait(t *testing.T) {
	tr := newFakeTransport()
	s := newConnected(t, tr)
	s.SetTimeouts(200*time.Millisecond, 0)

	done := make(chan []domain.Event)
	go func() {
		list, _ := s.OnFrameBegin(context.Background())
		done <- list
	}()

	assert.Eventually(t, func() bool {
		return s.Phase() == domain.PhaseAwaitingEventAck
	}, time.Second, time.Millisecond)

	start := time.Now()
	require.NoError(t, s.Publish(domain.MustEvent("Late")))
	assert.Less(t, time.Since(start), 20*time.Millisecond)

	list := <-done
	assert.Empty(t, list)
	assert.Equal(t, 1, s.Pending(), "late event waits for the next round")
}

func TestSetTimeouts(t *testing.T) {
	s, err := New(testConfig(false), nil)
	require.NoError(t, err)

	s.SetTimeouts(80*time.Millisecond, 0)
	event, swap := s.Timeouts()
	assert.Equal(t, 80*time.Millisecond, event)
	assert.Equal(t, 30*time.Millisecond, swap)
}

func TestClose_ShutsDownHooks(t *testing.T) {
	tr := newFakeTransport()
	s := newConnected(t, tr)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, domain.PhaseShutdown, s.Phase())
	_, err := s.OnFrameBegin(context.Background())
	assert.ErrorIs(t, err, domain.ErrShutdown)
	assert.ErrorIs(t, s.OnRenderComplete(context.Background()), domain.ErrShutdown)
	assert.ErrorIs(t, s.Publish(domain.MustEvent("A")), domain.ErrShutdown)
	assert.ErrorIs(t, s.Start(context.Background()), domain.ErrShutdown)
	tr.mu.Lock()
	assert.True(t, tr.closed)
	tr.mu.Unlock()
	assert.False(t, s.Subscribe(func(domain.Round, domain.Event) {}).Active())
}
