package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CoordinatorMetrics holds round merge and barrier metrics.
type CoordinatorMetrics struct {
	sessions        prometheus.Gauge
	merged          prometheus.Counter
	mergedEvents    prometheus.Histogram
	missing         prometheus.Counter
	releases        *prometheus.CounterVec
	barrierWait     prometheus.Histogram
	queueDrops      prometheus.Counter
	rejects         prometheus.Counter
	protoViolations prometheus.Counter
}

// NewCoordinatorMetrics registers coordinator metrics with reg.
func NewCoordinatorMetrics(reg prometheus.Registerer) *CoordinatorMetrics {
	f := promauto.With(reg)
	const sub = "coordinator"

	return &CoordinatorMetrics{
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "sessions_active",
			Help:      "Registered node sessions.",
		}),
		merged: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "rounds_merged_total",
			Help:      "Rounds merged and broadcast.",
		}),
		mergedEvents: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "merged_events",
			Help:      "Events per merged round.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		missing: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "missing_submissions_total",
			Help:      "Registered nodes that did not submit before a merge.",
		}),
		releases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "barrier_releases_total",
			Help:      "Swap barriers released, by cause.",
		}, []string{"cause"}),
		barrierWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "barrier_wait_seconds",
			Help:      "Time from merge to barrier release.",
			Buckets:   []float64{.0005, .001, .002, .005, .01, .02, .05, .1, .25},
		}),
		queueDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "session_queue_drops_total",
			Help:      "Sessions dropped because their outbound queue was full.",
		}),
		rejects: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "handshake_rejects_total",
			Help:      "Rejected handshakes.",
		}),
		protoViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: sub,
			Name:      "protocol_violations_total",
			Help:      "Inbound messages discarded as protocol violations.",
		}),
	}
}

// SetSessions records the number of registered sessions.
func (m *CoordinatorMetrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// RoundMerged records one merge.
func (m *CoordinatorMetrics) RoundMerged(events, missing int) {
	if m == nil {
		return
	}
	m.merged.Inc()
	m.mergedEvents.Observe(float64(events))
	m.missing.Add(float64(missing))
}

// BarrierReleased records one barrier release.
func (m *CoordinatorMetrics) BarrierReleased(timedOut bool, wait time.Duration) {
	if m == nil {
		return
	}
	cause := "complete"
	if timedOut {
		cause = "timeout"
	}
	m.releases.WithLabelValues(cause).Inc()
	m.barrierWait.Observe(wait.Seconds())
}

// QueueDrop counts a session dropped for a full outbound queue.
func (m *CoordinatorMetrics) QueueDrop() {
	if m == nil {
		return
	}
	m.queueDrops.Inc()
}

// HandshakeRejected counts a rejected handshake.
func (m *CoordinatorMetrics) HandshakeRejected() {
	if m == nil {
		return
	}
	m.rejects.Inc()
}

// ProtocolViolation counts a discarded inbound message.
func (m *CoordinatorMetrics) ProtocolViolation() {
	if m == nil {
		return
	}
	m.protoViolations.Inc()
}
