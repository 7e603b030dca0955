package coordinator

import (
	"errors"
	"net"
	"sync"
	"time"
)

// session is one authenticated node connection.
type session struct {
	id     string
	nodeID string
	remote string
	conn   net.Conn

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id, nodeID string, conn net.Conn, queue int) *session {
	return &session{
		id:     id,
		nodeID: nodeID,
		remote: conn.RemoteAddr().String(),
		conn:   conn,
		out:    make(chan []byte, queue),
		done:   make(chan struct{}),
	}
}

var (
	errSessionClosed = errors.New("session closed")
	errQueueFull     = errors.New("session queue full")
)

// enqueue queues a frame without blocking. It fails with errSessionClosed
// once the session is closed and with errQueueFull when the writer is
// behind.
func (s *session) enqueue(frame []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	select {
	case s.out <- frame:
		return nil
	default:
		return errQueueFull
	}
}

// writeLoop drains the queue until the session closes or a write fails.
func (s *session) writeLoop(writeTimeout time.Duration) {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.out:
			if writeTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			if _, err := s.conn.Write(frame); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
