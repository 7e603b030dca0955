// Package shutdown provides graceful shutdown for framesync processes.
//
// Hooks run in reverse registration order once SIGINT, SIGTERM or an
// explicit Trigger arrives, bounded by the handler timeout.
package shutdown
