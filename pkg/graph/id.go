package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NodeID is a content-addressed identifier: the SHA-256 of the form that
// created the node.
type NodeID [32]byte

// NewNodeID hashes content into a NodeID.
func NewNodeID(content string) NodeID {
	return NodeID(sha256.Sum256([]byte(content)))
}

// IsZero reports whether id is the zero value.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// String returns the full hex encoding.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex digits, for messages.
func (id NodeID) Short() string {
	return id.String()[:8]
}

// MarshalText encodes the id as hex so it can key JSON objects.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex id.
func (id *NodeID) UnmarshalText(b []byte) error {
	if len(b) != hex.EncodedLen(len(id)) {
		return fmt.Errorf("graph: node id must be %d hex digits, got %d", hex.EncodedLen(len(id)), len(b))
	}
	_, err := hex.Decode(id[:], b)
	return err
}

// SourceRef points back at the script form that produced a node.
type SourceRef struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}
