package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/im-notification-service/internal/adapter/presence"
	"github.com/webitel/im-notification-service/internal/domain/model"
)

// DirectoryMiddleware implements [DECORATOR_PATTERN] over the presence directory:
// every call is bounded by a timeout and timed for observability.
type DirectoryMiddleware struct {
	next    presence.Directory
	logger  *slog.Logger
	timeout time.Duration
}

// NewDirectoryMiddleware wraps next. A non-positive timeout disables the bound.
func NewDirectoryMiddleware(next presence.Directory, logger *slog.Logger, timeout time.Duration) presence.Directory {
	return &DirectoryMiddleware{
		next:    next,
		logger:  logger.With("component", "presence"),
		timeout: timeout,
	}
}

func (m *DirectoryMiddleware) Put(ctx context.Context, userID string, handle model.Handle) error {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	start := time.Now()
	err := m.next.Put(ctx, userID, handle)
	m.observe("put", start, err, "user_id", userID)
	return m.classify(ctx, err)
}

func (m *DirectoryMiddleware) Get(ctx context.Context, userID string) (model.Handle, bool, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	start := time.Now()
	h, ok, err := m.next.Get(ctx, userID)
	m.observe("get", start, err, "user_id", userID, "found", ok)
	return h, ok, m.classify(ctx, err)
}

func (m *DirectoryMiddleware) DeleteIfMatches(ctx context.Context, userID string, handle model.Handle) (bool, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	start := time.Now()
	deleted, err := m.next.DeleteIfMatches(ctx, userID, handle)
	m.observe("delete_if_matches", start, err, "user_id", userID, "deleted", deleted)
	return deleted, m.classify(ctx, err)
}

func (m *DirectoryMiddleware) ListAll(ctx context.Context) ([]model.PresenceEntry, error) {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	start := time.Now()
	entries, err := m.next.ListAll(ctx)
	m.observe("list_all", start, err, "entries", len(entries))
	return entries, m.classify(ctx, err)
}

func (m *DirectoryMiddleware) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// classify maps an expired bound to model.ErrDirectoryUnavailable.
func (m *DirectoryMiddleware) classify(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, model.ErrDirectoryUnavailable) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("presence: %w: %w", model.ErrDirectoryUnavailable, err)
	}
	return err
}

func (m *DirectoryMiddleware) observe(op string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		m.logger.Debug("PRESENCE_CALL_FAILED", append(attrs, "err", err)...)
		return
	}
	m.logger.Debug("PRESENCE_CALL_COMPLETED", attrs...)
}
