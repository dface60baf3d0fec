package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-notification-service/internal/adapter/presence"
	"github.com/webitel/im-notification-service/internal/domain/model"
)

// blockingDirectory waits for ctx on every lookup, like a store that stopped answering.
type blockingDirectory struct {
	*presence.MemoryDirectory
}

func (blockingDirectory) Get(ctx context.Context, _ string) (model.Handle, bool, error) {
	<-ctx.Done()
	return "", false, ctx.Err()
}

func TestDirectoryMiddleware_BoundsCalls(t *testing.T) {
	mw := NewDirectoryMiddleware(blockingDirectory{presence.NewMemoryDirectory()}, discardLogger(), 20*time.Millisecond)

	start := time.Now()
	_, _, err := mw.Get(context.Background(), "u1")

	assert.ErrorIs(t, err, model.ErrDirectoryUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDirectoryMiddleware_PassesThrough(t *testing.T) {
	mw := NewDirectoryMiddleware(presence.NewMemoryDirectory(), discardLogger(), time.Second)
	ctx := context.Background()

	require.NoError(t, mw.Put(ctx, "u1", "n/1"))

	h, ok, err := mw.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.Handle("n/1"), h)

	entries, err := mw.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	deleted, err := mw.DeleteIfMatches(ctx, "u1", "n/1")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDirectoryMiddleware_CallerCancellationIsNotUnavailability(t *testing.T) {
	mw := NewDirectoryMiddleware(blockingDirectory{presence.NewMemoryDirectory()}, discardLogger(), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := mw.Get(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, model.ErrDirectoryUnavailable)
}
