package service

import (
	"context"
	"log/slog"

	"github.com/webitel/im-notification-service/config"
	"github.com/webitel/im-notification-service/infra/auth"
	"github.com/webitel/im-notification-service/internal/adapter/presence"
	"github.com/webitel/im-notification-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			auth.NewFromConfig,
			fx.As(new(TokenVerifier)),
		),
		fx.Annotate(
			NewConnectionGateway,
			fx.As(new(Gateway)),
		),
		func(cfg *config.Config) DispatcherConfig {
			return DispatcherConfig{
				BatchSize:        cfg.Dispatch.BatchSize,
				OperationTimeout: cfg.Dispatch.OperationTimeout,
			}
		},
		NewNotificationDispatcher,
		func(d *NotificationDispatcher) Publisher { return d },
		func(d *NotificationDispatcher) Deliverer { return d },
	),

	// [DECORATION_LAYER] Bound and time every directory call made by this module
	fx.Decorate(func(orig presence.Directory, logger *slog.Logger, cfg *config.Config) presence.Directory {
		return NewDirectoryMiddleware(orig, logger, cfg.Dispatch.OperationTimeout)
	}),

	// [GRACEFUL_SHUTDOWN] Depending on the directory appends this hook after the store's
	// own, so fx stops the hub first and connections release presence before the store closes.
	fx.Invoke(func(lc fx.Lifecycle, hub registry.Hubber, _ presence.Directory) {
		lc.Append(fx.Hook{
			OnStop: hub.Shutdown,
		})
	}),
)
