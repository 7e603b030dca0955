package logger

import (
	"context"
	"strconv"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// loggerKey is the context key for the logger.
	loggerKey contextKey = "framesync.logger"
	// nodeIDKey is the context key for the node ID.
	nodeIDKey contextKey = "framesync.node_id"
	// roundKey is the context key for the current round.
	roundKey contextKey = "framesync.round"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithNodeID adds a node ID to the context.
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, nodeIDKey, nodeID)
}

// NodeIDFromContext extracts the node ID from context.
func NodeIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(nodeIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRound adds a round number to the context.
func WithRound(ctx context.Context, round uint64) context.Context {
	return context.WithValue(ctx, roundKey, round)
}

// RoundFromContext extracts the round number from context.
func RoundFromContext(ctx context.Context) (uint64, bool) {
	r, ok := ctx.Value(roundKey).(uint64)
	return r, ok
}

// L is a shorthand for FromContext that also enriches the logger
// with node ID and round from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if nodeID := NodeIDFromContext(ctx); nodeID != "" {
		l = l.With("node_id", nodeID)
	}

	if r, ok := RoundFromContext(ctx); ok {
		l = l.With("round", strconv.FormatUint(r, 10))
	}

	return l
}
