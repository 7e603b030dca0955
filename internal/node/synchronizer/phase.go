package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/protocol"
	"github.com/yndnr/framesync-go/internal/telemetry/metric"
	"github.com/yndnr/framesync-go/internal/telemetry/tracer"
)

// Phase results recorded on spans and in logs.
const (
	resultSynced  = "synced"
	resultOffline = "offline"
	resultGo      = "go"
	resultSkipped = "skipped"
)

// Metric phase labels.
const (
	phaseEvent = "event"
	phaseSwap  = "swap"
)

// OnFrameBegin runs the event phase of the current round and returns
// the list that was delivered to subscribers: the Authoritative Event
// List when the coordinator answered in time, otherwise this node's own
// pending events.
//
// It must be called once per frame, before OnRenderComplete, from the
// host's frame goroutine. The wait is bounded by the event timeout.
func (s *Synchronizer) OnFrameBegin(ctx context.Context) ([]domain.Event, error) {
	if !s.hookMu.TryLock() {
		return nil, domain.ErrHookOutOfOrder.WithDetails("OnFrameBegin called while another hook is running")
	}
	defer s.hookMu.Unlock()

	switch p := s.Phase(); p {
	case domain.PhaseAwaitingEventPhase:
	case domain.PhaseShutdown:
		return nil, domain.ErrShutdown
	default:
		return nil, domain.ErrHookOutOfOrder.WithDetails(fmt.Sprintf("OnFrameBegin in phase %s", p))
	}

	round := s.Round()
	_, span := tracer.StartSpan(ctx, "framesync.event_phase",
		tracer.NodeID(s.cfg.NodeID),
		tracer.Round(uint64(round)),
	)

	local := s.outbox.Drain()
	list, result := local, resultOffline
	s.submitted = false

	if s.cfg.Enabled {
		result = s.exchangeEvents(round, local, &list)
		if result == resultSynced {
			s.syncedRounds.Add(1)
		} else {
			s.degradedRounds.Add(1)
			s.metrics.Fallback(phaseEvent, result)
		}
	}

	s.setPhase(domain.PhaseAwaitingEventAck)
	s.deliver(round, list)
	s.setPhase(domain.PhaseAwaitingSwapReady)
	s.metrics.RoundCompleted()

	span.SetAttributes(tracer.Events(len(list)))
	tracer.End(span, result, nil)
	return list, nil
}

// exchangeEvents submits local and waits for this round's EventSync.
// On success it replaces *list and returns resultSynced; otherwise it
// returns the fallback reason and *list keeps the local events.
func (s *Synchronizer) exchangeEvents(round domain.Round, local []domain.Event, list *[]domain.Event) string {
	if !s.tr.State().IsLive() {
		s.logger.Debug("offline round, using local events",
			"round", uint64(round),
			"events", len(local),
		)
		return metric.ReasonNotSent
	}

	if err := s.tr.Send(protocol.NewEventSubmit(uint64(round), local)); err != nil {
		s.logger.Debug("event submit failed, using local events",
			"round", uint64(round),
			"error", err,
		)
		return metric.ReasonNotSent
	}
	s.submitted = true
	s.setPhase(domain.PhaseAwaitingEventAck)

	timeout, _ := s.Timeouts()
	start := time.Now()
	m, reason := s.await(protocol.KindEventSync, round, timeout)
	s.metrics.ObservePhaseWait(phaseEvent, time.Since(start))

	switch reason {
	case "":
		s.tr.SetDegraded(false)
		*list = m.Events
		return resultSynced
	case metric.ReasonTimeout:
		s.tr.SetDegraded(true)
		s.logger.Warn("event sync timed out, using local events",
			"round", uint64(round),
			"timeout", timeout,
			"events", len(local),
		)
	default:
		s.logger.Warn("connection lost during event phase, using local events",
			"round", uint64(round),
			"events", len(local),
		)
	}
	return reason
}

// OnRenderComplete runs the swap barrier of the current round and
// advances to the next round. When this round's submission never
// reached the coordinator it returns immediately. A missing go within
// the swap timeout is treated as go.
func (s *Synchronizer) OnRenderComplete(ctx context.Context) error {
	if !s.hookMu.TryLock() {
		return domain.ErrHookOutOfOrder.WithDetails("OnRenderComplete called while another hook is running")
	}
	defer s.hookMu.Unlock()

	switch p := s.Phase(); p {
	case domain.PhaseAwaitingSwapReady:
	case domain.PhaseShutdown:
		return domain.ErrShutdown
	default:
		return domain.ErrHookOutOfOrder.WithDetails(fmt.Sprintf("OnRenderComplete in phase %s", p))
	}

	round := s.Round()
	_, span := tracer.StartSpan(ctx, "framesync.swap_barrier",
		tracer.NodeID(s.cfg.NodeID),
		tracer.Round(uint64(round)),
	)

	result := resultSkipped
	if s.submitted {
		result = s.awaitBarrier(round)
		if result != resultGo {
			s.missedBarriers.Add(1)
			s.metrics.Fallback(phaseSwap, result)
		}
	}
	s.submitted = false

	s.round.Add(1)
	s.rounds.Add(1)
	s.setPhase(domain.PhaseAwaitingEventPhase)

	tracer.End(span, result, nil)
	return nil
}

func (s *Synchronizer) awaitBarrier(round domain.Round) string {
	if !s.tr.State().IsLive() {
		return metric.ReasonDisconnected
	}
	if err := s.tr.Send(protocol.NewSwapReady(uint64(round))); err != nil {
		return metric.ReasonNotSent
	}
	s.setPhase(domain.PhaseAwaitingSwapGo)

	_, timeout := s.Timeouts()
	start := time.Now()
	_, reason := s.await(protocol.KindSwapGo, round, timeout)
	s.metrics.ObservePhaseWait(phaseSwap, time.Since(start))

	switch reason {
	case "":
		s.tr.SetDegraded(false)
		return resultGo
	case metric.ReasonTimeout:
		s.tr.SetDegraded(true)
		s.logger.Warn("swap go timed out, proceeding",
			"round", uint64(round),
			"timeout", timeout,
		)
	default:
		s.logger.Warn("connection lost during swap barrier, proceeding",
			"round", uint64(round),
		)
	}
	return reason
}

// await receives until a message of kind for round arrives or timeout
// elapses. Messages of any other kind or round are discarded. The
// returned reason is empty on success.
func (s *Synchronizer) await(kind protocol.Kind, round domain.Round, timeout time.Duration) (protocol.Message, string) {
	deadline := time.Now().Add(timeout)
	for {
		m, err := s.tr.Receive(time.Until(deadline))
		if err != nil {
			if errors.Is(err, domain.ErrPhaseTimeout) {
				return protocol.Message{}, metric.ReasonTimeout
			}
			return protocol.Message{}, metric.ReasonDisconnected
		}
		if m.Kind == kind && m.Round == uint64(round) {
			return m, ""
		}

		s.discarded.Add(1)
		s.metrics.ProtocolViolation()
		s.logger.Warn("discarding unexpected message",
			"kind", m.Kind.String(),
			"msg_round", m.Round,
			"want_kind", kind.String(),
			"round", uint64(round),
		)
	}
}
