package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fallback reasons reported by the node synchronizer.
const (
	ReasonTimeout           = "timeout"
	ReasonDisconnected      = "disconnected"
	ReasonProtocolViolation = "protocol_violation"
	ReasonNotSent           = "not_sent"
)

// NodeMetrics holds synchronizer metrics for one node process.
type NodeMetrics struct {
	rounds          prometheus.Counter
	phaseDuration   *prometheus.HistogramVec
	fallbacks       *prometheus.CounterVec
	published       prometheus.Counter
	delivered       prometheus.Counter
	connState       prometheus.Gauge
	reconnects      prometheus.Counter
	listenerPanics  prometheus.Counter
	protoViolations prometheus.Counter
}

// NewNodeMetrics registers node metrics with reg.
func NewNodeMetrics(reg prometheus.Registerer) *NodeMetrics {
	f := promauto.With(reg)
	const sub = "node"

	return &NodeMetrics{
		rounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "rounds_total",
			Help:      "Total number of completed event phases.",
		}),
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "phase_wait_seconds",
			Help:      "Time spent waiting for the coordinator in each phase.",
			Buckets:   []float64{.0005, .001, .002, .005, .01, .02, .05, .1, .25},
		}, []string{"phase"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "fallbacks_total",
			Help:      "Phases completed without coordinator confirmation.",
		}, []string{"phase", "reason"}),
		published: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "events_published_total",
			Help:      "Events accepted into the local outbox.",
		}),
		delivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "events_delivered_total",
			Help:      "Events delivered to subscribers.",
		}),
		connState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "connection_state",
			Help:      "Connection state (0 disconnected, 1 connecting, 2 connected, 3 degraded).",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "reconnect_attempts_total",
			Help:      "Background reconnect attempts.",
		}),
		listenerPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "listener_panics_total",
			Help:      "Panics recovered from event listeners.",
		}),
		protoViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "protocol_violations_total",
			Help:      "Inbound messages discarded as protocol violations.",
		}),
	}
}

// RoundCompleted counts one completed event phase.
func (m *NodeMetrics) RoundCompleted() {
	if m == nil {
		return
	}
	m.rounds.Inc()
}

// ObservePhaseWait records how long a phase waited on the coordinator.
func (m *NodeMetrics) ObservePhaseWait(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// Fallback counts a phase completed locally.
func (m *NodeMetrics) Fallback(phase, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(phase, reason).Inc()
}

// Published counts events accepted into the outbox.
func (m *NodeMetrics) Published(n int) {
	if m == nil {
		return
	}
	m.published.Add(float64(n))
}

// Delivered counts events delivered to subscribers.
func (m *NodeMetrics) Delivered(n int) {
	if m == nil {
		return
	}
	m.delivered.Add(float64(n))
}

// SetConnState records the current connection state.
func (m *NodeMetrics) SetConnState(state int) {
	if m == nil {
		return
	}
	m.connState.Set(float64(state))
}

// ReconnectAttempt counts one reconnect attempt.
func (m *NodeMetrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// ListenerPanic counts a recovered listener panic.
func (m *NodeMetrics) ListenerPanic() {
	if m == nil {
		return
	}
	m.listenerPanics.Inc()
}

// ProtocolViolation counts a discarded inbound message.
func (m *NodeMetrics) ProtocolViolation() {
	if m == nil {
		return
	}
	m.protoViolations.Inc()
}
