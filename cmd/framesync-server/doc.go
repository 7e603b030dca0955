// Package main provides the entry point for framesync-server.
//
// framesync-server is the coordinator of a framesync cluster. It provides:
//
//   - The sync listener nodes connect to for event merging and the swap barrier
//   - An admin HTTP listener serving /metrics and the Status procedure
//   - An optional round journal and gossip-based discovery
//
// Usage:
//
//	framesync-server [flags]
//	framesync-server --config /path/to/config.yaml
//
// The server loads configuration, starts the coordinator and the configured
// listeners, then waits for a shutdown signal.
package main
