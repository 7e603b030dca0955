// Package main provides the entry point for framesync-cli.
//
// The CLI tool provides:
//
//   - Coordinator status over the admin API
//   - Inspection of a round journal directory
//   - A headless node for exercising a cluster from a terminal
//
// Usage:
//
//	framesync-cli [command] [flags]
//	framesync-cli status -o json
//	framesync-cli node --server 10.0.0.5:7450 --fps 60
package main
