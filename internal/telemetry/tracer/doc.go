// Package tracer provides OpenTelemetry spans for framesync.
//
// Spans are created from the global tracer provider. Without an SDK
// provider installed the spans are no-ops, so instrumented code paths
// cost almost nothing until an exporter is configured by the host.
package tracer
