// Package logger provides structured logging for framesync.
//
// It wraps log/slog with JSON output by default. Cluster keys are
// redacted and handshake MACs are masked before a record is written.
// L enriches a logger with the node ID and round carried in a context.
// The level is process-wide so a config reload can change it at runtime.
package logger
