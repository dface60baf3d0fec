package bus

import "go.uber.org/fx"

var Module = fx.Module("bus-handler",
	fx.Provide(
		NewNotificationHandlerFromConfig,
		NewWatermillRouter,
	),

	fx.Invoke(registerRoutes),
)
