// Package coordinator is the framesync coordinating server.
//
// It accepts node connections over TCP, authenticates the Hello
// handshake, feeds submissions and ready signals into the Node
// Registry, and fans the resulting EventSync and SwapGo messages out to
// the right sessions. A ticker applies the registry's round deadlines.
//
// Each session has one reader goroutine and one writer goroutine with a
// bounded queue; a node that cannot keep up is disconnected rather than
// allowed to stall the others.
package coordinator
