package cmd

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/im-notification-service/config"
	infrapubsub "github.com/webitel/im-notification-service/infra/pubsub"
	httpsrv "github.com/webitel/im-notification-service/infra/server/http"
	"github.com/webitel/im-notification-service/internal/adapter/presence"
	pubsubadapter "github.com/webitel/im-notification-service/internal/adapter/pubsub"
	"github.com/webitel/im-notification-service/internal/domain/registry"
	"github.com/webitel/im-notification-service/internal/handler/bus"
	httphandler "github.com/webitel/im-notification-service/internal/handler/http"
	"github.com/webitel/im-notification-service/internal/handler/ws"
	"github.com/webitel/im-notification-service/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config, extra ...fx.Option) *fx.App {
	opts := []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		infrapubsub.Module,
		presence.Module,
		registry.Module,
		pubsubadapter.Module,
		service.Module,
		bus.Module,
		httpsrv.Module,
		ws.Module,
		httphandler.Module,
	}
	return fx.New(append(opts, extra...)...)
}

// ProvideLogger builds the root logger. The level follows log.level, including
// changes made to the configuration file while running.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	if lvl, err := config.ParseLevel(cfg.Log.Level); err == nil {
		level.Set(lvl)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		"service", ServiceName,
		"namespace", ServiceNamespace,
		"node_id", cfg.Service.NodeID,
		"version", version,
	)
	slog.SetDefault(logger)

	cfg.WatchLogLevel(level, logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}
