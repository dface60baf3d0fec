package presence

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/webitel/im-notification-service/internal/domain/model"
)

var _ Directory = (*MemoryDirectory)(nil)

// MemoryDirectory keeps presence in process. It is only shared between nodes
// that live in the same process, which makes it suitable for a single node or tests.
type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[string]model.Handle
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{entries: make(map[string]model.Handle)}
}

func (d *MemoryDirectory) Put(_ context.Context, userID string, handle model.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[userID] = handle
	return nil
}

func (d *MemoryDirectory) Get(_ context.Context, userID string) (model.Handle, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.entries[userID]
	return h, ok, nil
}

func (d *MemoryDirectory) DeleteIfMatches(_ context.Context, userID string, handle model.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.entries[userID]; !ok || current != handle {
		return false, nil
	}
	delete(d.entries, userID)
	return true, nil
}

func (d *MemoryDirectory) ListAll(_ context.Context) ([]model.PresenceEntry, error) {
	d.mu.RLock()
	out := make([]model.PresenceEntry, 0, len(d.entries))
	for userID, h := range d.entries {
		out = append(out, model.PresenceEntry{UserID: userID, Handle: h})
	}
	d.mu.RUnlock()

	sortEntries(out)
	return out, nil
}

func sortEntries(entries []model.PresenceEntry) {
	slices.SortFunc(entries, func(a, b model.PresenceEntry) int {
		return strings.Compare(a.UserID, b.UserID)
	})
}
