// Package presence implements the shared directory mapping a user to its live connection handle.
package presence

import (
	"context"

	"github.com/webitel/im-notification-service/internal/domain/model"
)

// Directory is the cluster-wide source of truth for presence. At most one entry
// exists per user; the last successful Put wins.
type Directory interface {
	Put(ctx context.Context, userID string, handle model.Handle) error
	// Get reports false when the user has no entry.
	Get(ctx context.Context, userID string) (model.Handle, bool, error)
	// DeleteIfMatches removes the entry only while it still points at handle.
	DeleteIfMatches(ctx context.Context, userID string, handle model.Handle) (bool, error)
	// ListAll returns every entry ordered by user id.
	ListAll(ctx context.Context) ([]model.PresenceEntry, error)
}
