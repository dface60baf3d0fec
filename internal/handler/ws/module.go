package ws

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-notification-service/config"
	"github.com/webitel/im-notification-service/internal/service"
	"go.uber.org/fx"
)

func NewWSHandlerFromConfig(logger *slog.Logger, gateway service.Gateway, cfg *config.Config) *WSHandler {
	return NewWSHandler(logger, gateway, Options{
		WriteTimeout: cfg.WS.WriteTimeout,
		PingInterval: cfg.WS.PingInterval,
	})
}

var Module = fx.Module("ws-handler",
	fx.Provide(NewWSHandlerFromConfig),
	fx.Invoke(func(r chi.Router, h *WSHandler, cfg *config.Config) {
		r.Get(cfg.WS.Path, h.ServeHTTP)
	}),
)
