// Package domain defines the core domain models for framesync.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling. This package contains:
//
//   - Event: immutable, named, ordered record of typed fields
//   - Round: the Frame Round counter shared by node and server
//   - ConnState / Phase: connection and frame-phase state enums
//   - Node IDs: generation and validation
//   - Errors: domain error kinds with structured codes
package domain
