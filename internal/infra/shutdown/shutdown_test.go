package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"
)

// teardown records the order in which server components are stopped.
type teardown struct {
	mu    sync.Mutex
	order []string
}

func (td *teardown) hook(name string, err error) func(context.Context) error {
	return func(context.Context) error {
		td.mu.Lock()
		td.order = append(td.order, name)
		td.mu.Unlock()
		return err
	}
}

func (td *teardown) stopped() []string {
	td.mu.Lock()
	defer td.mu.Unlock()
	return append([]string(nil), td.order...)
}

func waitFor(t *testing.T, h *Handler) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()
	return awaitErr(t, errCh)
}

func awaitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return")
		return nil
	}
}

func equalOrder(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// Components are registered as they start, so the journal is closed
// last, after the coordinator has flushed its final rounds into it.
func TestHandler_ServerTeardownOrder(t *testing.T) {
	h := NewHandler(5 * time.Second)
	td := &teardown{}
	h.OnShutdown(td.hook("journal", nil))
	h.OnShutdown(td.hook("coordinator", nil))
	h.OnShutdown(td.hook("gossip", nil))
	h.OnShutdown(td.hook("admin", nil))

	h.Trigger()
	if err := waitFor(t, h); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := []string{"admin", "gossip", "coordinator", "journal"}
	if got := td.stopped(); !equalOrder(got, want) {
		t.Errorf("teardown order = %v, want %v", got, want)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after Wait returned")
	}
}

func TestHandler_TriggerAfterStartupFailure(t *testing.T) {
	h := NewHandler(time.Second)
	td := &teardown{}
	h.OnShutdown(td.hook("journal", nil))
	h.OnShutdown(td.hook("coordinator", nil))

	// Discovery failed to start: main triggers and waits itself, and a
	// late component may trigger again.
	h.Trigger()
	h.Trigger()
	if err := waitFor(t, h); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if got := td.stopped(); !equalOrder(got, []string{"coordinator", "journal"}) {
		t.Errorf("teardown order = %v", got)
	}
}

func TestHandler_FailedHookDoesNotSkipJournal(t *testing.T) {
	h := NewHandler(5 * time.Second)
	td := &teardown{}
	errDrain := errors.New("coordinator: 2 sessions still open")
	h.OnShutdown(td.hook("journal", nil))
	h.OnShutdown(td.hook("coordinator", errDrain))
	h.OnShutdown(td.hook("admin", nil))

	h.Trigger()
	err := waitFor(t, h)
	if !errors.Is(err, errDrain) {
		t.Errorf("Wait() error = %v, want %v", err, errDrain)
	}
	if got := td.stopped(); !equalOrder(got, []string{"admin", "coordinator", "journal"}) {
		t.Errorf("teardown order = %v", got)
	}
}

func TestHandler_TimeoutBoundsCoordinatorDrain(t *testing.T) {
	h := NewHandler(50 * time.Millisecond)
	td := &teardown{}
	h.OnShutdown(td.hook("journal", nil))
	h.OnShutdown(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("shutdown context has no deadline")
		}
		// A session that never drains holds the coordinator until the deadline.
		<-ctx.Done()
		return fmt.Errorf("drain sessions: %w", ctx.Err())
	})

	start := time.Now()
	h.Trigger()
	err := waitFor(t, h)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("teardown took %v with a 50ms timeout", elapsed)
	}
	if got := td.stopped(); !equalOrder(got, []string{"journal"}) {
		t.Errorf("journal not closed after the drain timed out: %v", got)
	}
}

func TestHandler_SIGTERMStartsTeardown(t *testing.T) {
	h := NewHandler(5 * time.Second)
	td := &teardown{}
	h.OnShutdown(td.hook("coordinator", nil))

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()

	// Wait installs its signal handler before blocking.
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	if err := awaitErr(t, errCh); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if got := td.stopped(); !equalOrder(got, []string{"coordinator"}) {
		t.Errorf("teardown order = %v", got)
	}
}

func TestHandler_HooksRegisteredConcurrently(t *testing.T) {
	h := NewHandler(5 * time.Second)
	td := &teardown{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.OnShutdown(td.hook(fmt.Sprintf("session-%d", i), nil))
		}(i)
	}
	wg.Wait()

	h.Trigger()
	if err := waitFor(t, h); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := td.stopped(); len(got) != 8 {
		t.Errorf("ran %d hooks, want 8", len(got))
	}
}
