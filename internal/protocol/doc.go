// Package protocol implements the node <-> coordinator wire protocol.
//
// Every message travels in one frame over a persistent TCP stream:
//
//	[length:4][crc32:4][kind:1][round:8][payload...]
//
// length counts all bytes after itself; the CRC covers kind, round and
// payload. Payloads are structpb messages in deterministic proto
// encoding; SwapReady and SwapGo carry no payload.
//
// The round field is always the sending or receiving node's Frame
// Round. The coordinator translates node rounds to its own sequence
// and echoes the node's round in replies.
//
//   - message.go: message kinds and constructors
//   - codec.go: frame encoding and decoding
//   - payload.go: event list and handshake payloads
//   - digest.go: authoritative list digest
//   - auth.go: handshake MAC
package protocol
