// Package domain defines the core domain models for framesync.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a framesync error with a structured error code.
// Codes follow the format FS-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "FS-CONN-5031")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Connection Errors (CONN)
// ============================================================================

var (
	// ErrNotConnected indicates a send was attempted without a live connection.
	ErrNotConnected = NewDomainError("FS-CONN-5030", "not connected")

	// ErrConnectionLost indicates the transport dropped mid-operation.
	ErrConnectionLost = NewDomainError("FS-CONN-5031", "connection lost")

	// ErrServerUnavailable indicates the coordinator could not be reached.
	ErrServerUnavailable = NewDomainError("FS-CONN-5032", "server unavailable")

	// ErrAuthRejected indicates the coordinator refused the handshake.
	ErrAuthRejected = NewDomainError("FS-CONN-4010", "handshake rejected")
)

// ============================================================================
// Synchronization Errors (SYNC)
// ============================================================================

var (
	// ErrPhaseTimeout indicates the coordinator did not answer a phase in time.
	// It is never surfaced to the host; the synchronizer falls back instead.
	ErrPhaseTimeout = NewDomainError("FS-SYNC-5040", "phase timeout")

	// ErrHookOutOfOrder indicates a frame hook was invoked in the wrong phase.
	ErrHookOutOfOrder = NewDomainError("FS-SYNC-4090", "frame hook invoked out of order")

	// ErrShutdown indicates the synchronizer has been shut down.
	ErrShutdown = NewDomainError("FS-SYNC-5033", "synchronizer shut down")
)

// ============================================================================
// Protocol Errors (PROT)
// ============================================================================

var (
	// ErrProtocolViolation indicates a malformed or out-of-round message.
	ErrProtocolViolation = NewDomainError("FS-PROT-4000", "protocol violation")
)

// ============================================================================
// Argument Errors (EVNT, CONF)
// ============================================================================

var (
	// ErrInvalidEvent indicates an event could not be constructed.
	ErrInvalidEvent = NewDomainError("FS-EVNT-4001", "invalid event")

	// ErrInvalidConfig indicates a configuration value is unusable.
	// This is the only error kind that is fatal at startup.
	ErrInvalidConfig = NewDomainError("FS-CONF-4000", "invalid configuration")
)
