// Package framesync is the host-facing API of a framesync node.
//
// A host render loop drives one Node per process:
//
//	node, err := framesync.Open("node.yaml", nil)
//	if err != nil { ... }
//	defer node.Close()
//	node.Start(ctx)
//
//	for {
//		events, _ := node.OnFrameBegin(ctx) // same list on every node
//		render(events)
//		node.OnRenderComplete(ctx)          // swap barrier
//		swapBuffers()
//	}
//
// Input produced locally is handed to Publish at any time and shows up
// in the next frame's list on every node. Listeners registered with
// Subscribe receive each delivered event during OnFrameBegin.
//
// Neither hook blocks longer than its configured timeout. When the
// coordinator is slow or unreachable the node falls back to its own
// events and proceeds without the barrier.
package framesync
