package synchronizer

import (
	"context"

	"github.com/yndnr/framesync-go/internal/core/domain"
)

func (s *Synchronizer) onStateChange(state domain.ConnState) {
	s.metrics.SetConnState(int(state))
	if state == domain.StateDisconnected {
		s.triggerReconnect()
	}
}

func (s *Synchronizer) triggerReconnect() {
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

// reconnectLoop re-dials whenever the transport reports Disconnected,
// paced by the limiter so an absent coordinator costs one attempt per
// reconnect interval.
func (s *Synchronizer) reconnectLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reconnect:
		}

		for s.tr.State() == domain.StateDisconnected {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			s.reconnects.Add(1)
			s.metrics.ReconnectAttempt()

			if err := s.dial(ctx); err != nil {
				s.logger.Debug("reconnect failed", "error", err)
				continue
			}
			s.logger.Info("reconnected to coordinator", "round", uint64(s.Round()))
		}
	}
}

func (s *Synchronizer) dial(ctx context.Context) error {
	addr, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	_, err = s.tr.Connect(ctx, addr)
	return err
}
