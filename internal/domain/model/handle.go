package model

import (
	"strings"

	"github.com/google/uuid"
)

const handleSeparator = "/"

// Handle addresses one live connection cluster-wide: "<nodeID>/<connectionID>".
// The node prefix lets every node decide locally whether it owns the connection.
type Handle string

func NewHandle(nodeID string, connID uuid.UUID) Handle {
	return Handle(nodeID + handleSeparator + connID.String())
}

// NodeID returns the owning node, or "" for a malformed handle.
func (h Handle) NodeID() string {
	node, _, ok := strings.Cut(string(h), handleSeparator)
	if !ok {
		return ""
	}
	return node
}

func (h Handle) Valid() bool {
	node, conn, ok := strings.Cut(string(h), handleSeparator)
	return ok && node != "" && conn != ""
}

func (h Handle) String() string { return string(h) }

// PresenceEntry is one record of the presence directory.
type PresenceEntry struct {
	UserID string
	Handle Handle
}
