package presence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webitel/im-notification-service/config"
	infraredis "github.com/webitel/im-notification-service/infra/redis"
	"go.uber.org/fx"
)

var Module = fx.Module("presence",
	fx.Provide(NewDirectory),
)

// NewDirectory selects the store from configuration and wraps it in a circuit breaker.
func NewDirectory(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (Directory, error) {
	var store Directory

	switch cfg.Presence.Driver {
	case config.PresenceDriverMemory:
		store = NewMemoryDirectory()

	case config.PresenceDriverRedis:
		client := infraredis.New(cfg.Redis)
		lc.Append(fx.Hook{
			// An unreachable store degrades delivery but never blocks startup.
			OnStart: func(ctx context.Context) error {
				if err := infraredis.Ping(ctx, client); err != nil {
					logger.Warn("PRESENCE_STORE_UNREACHABLE", "err", err)
				}
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})

		rd, err := NewRedisDirectory(client, cfg.Redis.KeyPrefix, logger)
		if err != nil {
			return nil, err
		}
		store = rd

	default:
		return nil, fmt.Errorf("presence: unsupported driver %q", cfg.Presence.Driver)
	}

	logger.Info("PRESENCE_DIRECTORY_READY", "driver", cfg.Presence.Driver)
	return NewBreakerDirectory(store, cfg.Presence.Breaker.MaxFailures, cfg.Presence.Breaker.Timeout, logger), nil
}
