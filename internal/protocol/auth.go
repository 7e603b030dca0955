package protocol

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// MaxClusterKeyLen is the largest key blake2b accepts for keyed hashing.
const MaxClusterKeyLen = blake2b.Size

// MAC computes the handshake MAC a node presents in Hello: keyed
// BLAKE2b-256 over the node ID. An empty key yields an empty MAC.
func MAC(key []byte, nodeID string) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return "", fmt.Errorf("protocol: mac key: %w", err)
	}
	_, _ = h.Write([]byte(nodeID))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyMAC checks a Hello MAC against the cluster key. With no key
// configured every node is accepted.
func VerifyMAC(key []byte, nodeID, mac string) bool {
	if len(key) == 0 {
		return true
	}
	want, err := MAC(key, nodeID)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(mac)) == 1
}
