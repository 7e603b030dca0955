// Package synchronizer implements the per-frame protocol of a node.
//
// Each frame runs two phases driven by host hooks:
//
//	OnFrameBegin      drain the outbox, submit, wait for the Authoritative
//	                  Event List, deliver it to subscribers
//	OnRenderComplete  signal ready, wait for go, advance the round
//
// Both waits are bounded. A timeout or a lost connection never fails a
// hook: the node falls back to its local events (phase 1) or proceeds
// as if go arrived (phase 2) and keeps rendering. Reconnection happens
// on a background goroutine, outside the frame-critical path.
package synchronizer
