package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/im-notification-service/config"
	infrapubsub "github.com/webitel/im-notification-service/infra/pubsub"
	"github.com/webitel/im-notification-service/internal/service"
	"go.uber.org/fx"
)

const HandlerName = "ON_NOTIFICATION"

type NotificationHandler struct {
	deliverer service.Deliverer
	logger    *slog.Logger
	seen      *lru.Cache[string, struct{}]
}

// NewNotificationHandler builds the consumer side of the bus. A non-positive
// dedupeSize disables duplicate suppression.
func NewNotificationHandler(deliverer service.Deliverer, logger *slog.Logger, dedupeSize int) (*NotificationHandler, error) {
	h := &NotificationHandler{
		deliverer: deliverer,
		logger:    logger.With("component", "bus"),
	}
	if dedupeSize > 0 {
		seen, err := lru.New[string, struct{}](dedupeSize)
		if err != nil {
			return nil, fmt.Errorf("bus: dedupe cache: %w", err)
		}
		h.seen = seen
	}
	return h, nil
}

func NewNotificationHandlerFromConfig(deliverer service.Deliverer, logger *slog.Logger, cfg *config.Config) (*NotificationHandler, error) {
	return NewNotificationHandler(deliverer, logger, cfg.Dispatch.DedupeSize)
}

// NewWatermillRouter builds the router with the process-wide middleware stack.
func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 15 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bus: router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	return router, nil
}

// RouteOptions tunes the per-handler middleware.
type RouteOptions struct {
	Timeout  time.Duration
	Throttle int64 // messages per second, 0 disables
}

// [REGISTRATION_PIPELINE]
func (h *NotificationHandler) RegisterHandlers(router *message.Router, sub message.Subscriber, topic string, opts RouteOptions) {
	handler := router.AddConsumerHandler(HandlerName, topic, sub, Bind(h))

	mws := []message.HandlerMiddleware{
		TraceIDMiddleware,
		LoggingMiddleware(h.logger),
	}
	if opts.Throttle > 0 {
		mws = append(mws, middleware.NewThrottle(opts.Throttle, time.Second).Middleware)
	}
	if opts.Timeout > 0 {
		mws = append(mws, middleware.Timeout(opts.Timeout))
	}
	handler.AddMiddleware(mws...)

	h.logger.Info("BUS_PIPELINE_READY", "topic", topic, "handler", HandlerName)
}

// RunRouter starts router in the background and waits until its handlers are subscribed.
func RunRouter(ctx context.Context, router *message.Router, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		err := router.Run(context.Background())
		if err != nil {
			logger.Error("BUS_ROUTER_STOPPED", "err", err)
		}
		errCh <- err
	}()

	select {
	case <-router.Running():
		return nil
	case err := <-errCh:
		return fmt.Errorf("bus: router start: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("bus: router start: %w", ctx.Err())
	}
}

func registerRoutes(lc fx.Lifecycle, router *message.Router, h *NotificationHandler, p *infrapubsub.Provider, cfg *config.Config, logger *slog.Logger) {
	h.RegisterHandlers(router, p.Subscriber(), cfg.Bus.Channel, RouteOptions{
		Timeout:  cfg.Bus.HandlerTimeout,
		Throttle: cfg.Bus.Throttle,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return RunRouter(ctx, router, logger)
		},
		OnStop: func(ctx context.Context) error {
			return router.Close()
		},
	})
}
