// Package pubsub builds the watermill publisher/subscriber pair backing the notification bus.
package pubsub

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/im-notification-service/config"
	"go.uber.org/fx"
)

// Provider owns the transport-level publisher and subscriber.
type Provider struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

func (p *Provider) Publisher() message.Publisher   { return p.publisher }
func (p *Provider) Subscriber() message.Subscriber { return p.subscriber }

func (p *Provider) Close() error {
	errs := []error{p.publisher.Close()}
	// gochannel serves both roles and must be closed once.
	if any(p.subscriber) != any(p.publisher) {
		errs = append(errs, p.subscriber.Close())
	}
	return errors.Join(errs...)
}

// New builds the bus for the configured driver.
//
// With AMQP every topic is a fan-out exchange and every node consumes it through
// its own non-durable queue named "<topic>_<nodeID>", so each node receives every
// notification exactly once per publish.
func New(cfg *config.Config, logger watermill.LoggerAdapter) (*Provider, error) {
	switch cfg.Bus.Driver {
	case config.BusDriverMemory:
		ch := NewGoChannel(logger)
		return &Provider{publisher: ch, subscriber: ch}, nil

	case config.BusDriverAMQP:
		amqpCfg := amqp.NewNonDurablePubSubConfig(
			cfg.Bus.AMQPURI,
			amqp.GenerateQueueNameTopicNameWithSuffix(cfg.Service.NodeID),
		)

		pub, err := amqp.NewPublisher(amqpCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("pubsub: amqp publisher: %w", err)
		}
		sub, err := amqp.NewSubscriber(amqpCfg, logger)
		if err != nil {
			_ = pub.Close()
			return nil, fmt.Errorf("pubsub: amqp subscriber: %w", err)
		}
		return &Provider{publisher: pub, subscriber: sub}, nil
	}

	return nil, fmt.Errorf("pubsub: unsupported driver %q", cfg.Bus.Driver)
}

// NewGoChannel returns an in-process bus delivering every message to every subscriber.
func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1024}, logger)
}

var Module = fx.Module("pubsub",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, p *Provider) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return p.Close()
			},
		})
	}),
)
