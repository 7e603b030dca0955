// Package transport implements the node side of the sync connection.
//
// A Transport owns exactly one TCP connection to the coordinator. A
// reader goroutine decodes frames into a bounded inbox, and Receive is a
// bounded wait on that inbox. Read or write failures move the transport
// to Disconnected and fail the in-flight call; the transport never
// reconnects on its own.
package transport
