package pubsub

import (
	"github.com/webitel/im-notification-service/config"
	infrapubsub "github.com/webitel/im-notification-service/infra/pubsub"
	"go.uber.org/fx"
)

// NewPublisherFromProvider binds the notification publisher to the configured bus channel.
func NewPublisherFromProvider(p *infrapubsub.Provider, cfg *config.Config) NotificationPublisher {
	return NewNotificationPublisher(p.Publisher(), cfg.Bus.Channel)
}

var Module = fx.Module("pubsub-adapter",
	fx.Provide(NewPublisherFromProvider),
)
