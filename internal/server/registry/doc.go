// Package registry implements the coordinator's Node Registry.
//
// The registry tracks, per server round, which nodes submitted an event
// batch and which signaled ready for swap. It merges a round when every
// registered node has submitted or the submit timeout elapsed, and
// releases the swap barrier when every submitter readied or the barrier
// timeout elapsed.
//
// Nodes tag messages with their own Frame Round. Each submission lands
// in server round max(nextMerge, lastSubmitted+1); replies echo the
// node's tag. A node that lagged or reconnected therefore rejoins the
// open round on its next submission.
//
// Registry is not safe for concurrent use and never reads the clock:
// every mutating call takes the current time. The coordinator owns the
// lock and the ticker.
package registry
