package registry

import (
	"github.com/webitel/im-notification-service/config"
	"go.uber.org/fx"
)

// Module provides the hub. Its stop hook is registered by the service layer, which
// must drain connections while the presence store is still open.
var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config) *Hub {
			return NewHub(
				cfg.Service.NodeID,
				WithEmitTimeout(cfg.Dispatch.EmitTimeout),
				WithSendBuffer(cfg.WS.SendBuffer),
			)
		},
		func(h *Hub) Hubber { return h },
		func(h *Hub) Addresser { return h },
	),
)
