package httphandler

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
)

var Module = fx.Module("http-handler",
	fx.Provide(NewNotificationHandler),
	fx.Invoke(func(r chi.Router, h *NotificationHandler) {
		h.Register(r)
	}),
)
