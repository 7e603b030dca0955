package benchmark

import (
	"fmt"

	"github.com/yndnr/framesync-go/internal/core/domain"
)

// NodeCounts defines the cluster sizes for benchmarking.
var NodeCounts = []int{2, 4, 8, 16, 32}

// EventCounts defines the per-submission event counts for benchmarking.
var EventCounts = []int{1, 8, 64, 256}

// createEvents builds n events shaped like typical input traffic.
func createEvents(n int) []domain.Event {
	events := make([]domain.Event, n)
	for i := range events {
		events[i] = domain.MustEvent("Brush_Move",
			domain.KV{Key: "pos", Value: []float64{float64(i), 0.5, 0.25}},
			domain.KV{Key: "pressure", Value: 0.8},
			domain.KV{Key: "tool", Value: "brush"},
			domain.KV{Key: "down", Value: true},
		)
	}
	return events
}

func nodeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("node-%03d", i)
	}
	return ids
}
