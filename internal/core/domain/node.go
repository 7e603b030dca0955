// Package domain defines the core domain models for framesync.
package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NodeIDPrefix is the prefix of generated node IDs.
const NodeIDPrefix = "fsn-"

// MaxNodeIDLen bounds operator-assigned node IDs.
const MaxNodeIDLen = 64

// GenerateNodeID generates a node ID using ULID.
// Format: fsn-{ulid_lowercase}, 30 characters total.
func GenerateNodeID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return NodeIDPrefix + strings.ToLower(id.String()), nil
}

// IsGeneratedNodeID reports whether id has the generated fsn-{ulid} shape.
func IsGeneratedNodeID(id string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, NodeIDPrefix) || len(id) != len(NodeIDPrefix)+26 {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(NodeIDPrefix):]))
	return err == nil
}

// ValidateNodeID checks an operator-assigned node ID such as "projector-left".
// Allowed characters are ASCII letters, digits, '-', '_' and '.'.
func ValidateNodeID(id string) error {
	if id == "" {
		return ErrInvalidConfig.WithDetails("node id is empty")
	}
	if len(id) > MaxNodeIDLen {
		return ErrInvalidConfig.WithDetails("node id too long")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return ErrInvalidConfig.WithDetails("node id contains invalid character " + string(r))
		}
	}
	return nil
}
