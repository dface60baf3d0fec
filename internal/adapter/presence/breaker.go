package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/webitel/im-notification-service/internal/domain/model"
)

var _ Directory = (*BreakerDirectory)(nil)

// BreakerDirectory trips after consecutive store failures and fails fast with
// model.ErrDirectoryUnavailable until the store recovers.
type BreakerDirectory struct {
	next Directory
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerDirectory(next Directory, maxFailures uint32, openTimeout time.Duration, logger *slog.Logger) *BreakerDirectory {
	if maxFailures == 0 {
		maxFailures = 5
	}
	log := logger.With("component", "presence_breaker")

	return &BreakerDirectory{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "presence-directory",
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			// Cancellation on the caller side says nothing about store health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("PRESENCE_BREAKER_STATE_CHANGED", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *BreakerDirectory) State() gobreaker.State { return b.cb.State() }

func (b *BreakerDirectory) Put(ctx context.Context, userID string, handle model.Handle) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.Put(ctx, userID, handle)
	})
	return err
}

func (b *BreakerDirectory) Get(ctx context.Context, userID string) (model.Handle, bool, error) {
	type result struct {
		handle model.Handle
		ok     bool
	}
	res, err := b.execute(func() (any, error) {
		h, ok, err := b.next.Get(ctx, userID)
		return result{h, ok}, err
	})
	if err != nil {
		return "", false, err
	}
	r := res.(result)
	return r.handle, r.ok, nil
}

func (b *BreakerDirectory) DeleteIfMatches(ctx context.Context, userID string, handle model.Handle) (bool, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.DeleteIfMatches(ctx, userID, handle)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

func (b *BreakerDirectory) ListAll(ctx context.Context) ([]model.PresenceEntry, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.ListAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.PresenceEntry), nil
}

func (b *BreakerDirectory) execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("presence: %w: %w", model.ErrDirectoryUnavailable, err)
	}
	return res, err
}
