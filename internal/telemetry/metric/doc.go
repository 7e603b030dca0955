// Package metric provides Prometheus metrics for framesync.
//
//   - prometheus.go: registry construction and the /metrics handler
//   - node.go: synchronizer metrics for a participating node
//   - coordinator.go: round merge and barrier metrics for the coordinator
//
// All metric sets are nil-safe so components can run without metrics.
package metric
