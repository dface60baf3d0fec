package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/im-notification-service/internal/adapter/presence"
	"github.com/webitel/im-notification-service/internal/adapter/pubsub"
	"github.com/webitel/im-notification-service/internal/domain/model"
	"github.com/webitel/im-notification-service/internal/domain/registry"
	"github.com/webitel/im-notification-service/internal/service/fanout"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/webitel/im-notification-service/internal/service"

// [PUBLISHER] ENTRY POINT FOR INGRESS
type Publisher interface {
	Publish(ctx context.Context, n *model.Notification) error
}

// [DELIVERER] INVOKED ONCE PER BUS MESSAGE ON EVERY NODE
type Deliverer interface {
	OnMessage(ctx context.Context, n *model.Notification) DeliveryReport
}

// DeliveryReport describes what this node did with one notification.
type DeliveryReport struct {
	Targets int // entries resolved from the directory
	Local   int // targets owned by this node
	Batches int
	Sent    int
	Failed  int
}

type DispatcherConfig struct {
	BatchSize int
	// OperationTimeout bounds a bus publish, 0 leaves it to the caller's context.
	OperationTimeout time.Duration
}

type NotificationDispatcher struct {
	directory presence.Directory
	publisher pubsub.NotificationPublisher
	addresser registry.Addresser
	logger    *slog.Logger
	batchSize int
	opTimeout time.Duration

	tracer    trace.Tracer
	delivered metric.Int64Counter
	failed    metric.Int64Counter
}

func NewNotificationDispatcher(
	directory presence.Directory,
	publisher pubsub.NotificationPublisher,
	addresser registry.Addresser,
	logger *slog.Logger,
	cfg DispatcherConfig,
) *NotificationDispatcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	d := &NotificationDispatcher{
		directory: directory,
		publisher: publisher,
		addresser: addresser,
		logger:    logger.With("component", "dispatcher"),
		batchSize: cfg.BatchSize,
		opTimeout: cfg.OperationTimeout,
		tracer:    otel.Tracer(instrumentationName),
	}
	d.initMetrics(otel.Meter(instrumentationName))
	return d
}

func (d *NotificationDispatcher) initMetrics(meter metric.Meter) {
	var err error
	if d.delivered, err = meter.Int64Counter("notifications.delivered",
		metric.WithDescription("Notifications accepted by a local connection")); err != nil {
		d.logger.Warn("METRIC_INIT_FAILED", "metric", "notifications.delivered", "err", err)
		d.delivered, _ = noop.NewMeterProvider().Meter("").Int64Counter("notifications.delivered")
	}
	if d.failed, err = meter.Int64Counter("notifications.failed",
		metric.WithDescription("Emits to a resolved handle that failed")); err != nil {
		d.logger.Warn("METRIC_INIT_FAILED", "metric", "notifications.failed", "err", err)
		d.failed, _ = noop.NewMeterProvider().Meter("").Int64Counter("notifications.failed")
	}
}

// Publish puts n on the bus. Delivery, including to this node, happens only via OnMessage.
func (d *NotificationDispatcher) Publish(ctx context.Context, n *model.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}

	if d.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opTimeout)
		defer cancel()
	}

	if err := d.publisher.Publish(ctx, n); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, model.ErrBusUnavailable) {
			err = fmt.Errorf("dispatcher: publish: %w: %w", model.ErrBusUnavailable, err)
		}
		d.logger.Error("NOTIFICATION_PUBLISH_FAILED",
			"notification_id", n.ID,
			"event_type", n.EventType,
			"err", err,
		)
		return err
	}

	d.logger.Debug("NOTIFICATION_PUBLISHED", "notification_id", n.ID, "event_type", n.EventType)
	return nil
}

// OnMessage resolves the targets of n and emits to those held by this node.
// Failures are logged and reported, never returned.
func (d *NotificationDispatcher) OnMessage(ctx context.Context, n *model.Notification) DeliveryReport {
	ctx, span := d.tracer.Start(ctx, "notification.dispatch", trace.WithAttributes(
		attribute.String("notification.id", n.ID),
		attribute.String("notification.event_type", string(n.EventType)),
	))
	defer span.End()

	var rep DeliveryReport
	switch n.EventType {
	case model.EventOneDirection:
		rep = d.deliverOne(ctx, n)
	case model.EventBroadcast:
		rep = d.broadcast(ctx, n)
	default:
		d.logger.Warn("UNKNOWN_EVENT_TYPE", "notification_id", n.ID, "event_type", n.EventType)
		span.SetStatus(codes.Error, "unknown event type")
		return rep
	}

	span.SetAttributes(
		attribute.Int("delivery.targets", rep.Targets),
		attribute.Int("delivery.sent", rep.Sent),
		attribute.Int("delivery.failed", rep.Failed),
	)
	if rep.Failed > 0 {
		span.SetStatus(codes.Error, "partial delivery")
	}
	return rep
}

func (d *NotificationDispatcher) deliverOne(ctx context.Context, n *model.Notification) DeliveryReport {
	var rep DeliveryReport
	log := d.logger.With("notification_id", n.ID, "user_id", n.UserID)

	handle, ok, err := d.directory.Get(ctx, n.UserID)
	if err != nil {
		log.Error("PRESENCE_LOOKUP_FAILED", "err", err)
		return rep
	}
	if !ok {
		log.Info("NO_ACTIVE_CONNECTION")
		return rep
	}
	rep.Targets = 1

	// [LOCALITY_FILTER] the owning node performs the emit, every other node stops here.
	if !d.addresser.Owns(handle) {
		log.Debug("HANDLE_NOT_LOCAL", "handle", handle)
		return rep
	}
	rep.Local = 1

	ev := model.NewEvent(n.ID, model.NotificationEventName, n.Data)
	if err := d.emit(ctx, handle, ev, n.EventType); err != nil {
		rep.Failed = 1
		return rep
	}
	rep.Sent = 1
	return rep
}

func (d *NotificationDispatcher) broadcast(ctx context.Context, n *model.Notification) DeliveryReport {
	var rep DeliveryReport
	log := d.logger.With("notification_id", n.ID)

	entries, err := d.directory.ListAll(ctx)
	if err != nil {
		log.Error("PRESENCE_LIST_FAILED", "err", err)
		return rep
	}
	if len(entries) == 0 {
		log.Info("NO_ACTIVE_USERS")
		return rep
	}
	rep.Targets = len(entries)

	handles := make([]model.Handle, 0, len(entries))
	for _, e := range entries {
		if d.addresser.Owns(e.Handle) {
			handles = append(handles, e.Handle)
		}
	}
	rep.Local = len(handles)
	if len(handles) == 0 {
		log.Debug("NO_LOCAL_CONNECTIONS", "targets", rep.Targets)
		return rep
	}

	// Broadcast clients receive the whole notification.
	payload, err := json.Marshal(n)
	if err != nil {
		log.Error("BROADCAST_MARSHAL_FAILED", "err", err)
		return rep
	}
	ev := model.NewEvent(n.ID, model.NotificationEventName, payload)

	start := time.Now()
	res, err := fanout.Batches(ctx, handles, d.batchSize, func(ctx context.Context, h model.Handle) error {
		return d.emit(ctx, h, ev, n.EventType)
	})
	rep.Batches, rep.Sent, rep.Failed = res.Batches, res.Sent, res.Failed

	if err != nil {
		log.Warn("BROADCAST_ABORTED", "err", err, "batches", res.Batches, "sent", res.Sent)
		return rep
	}

	log.Info("BROADCAST_COMPLETED",
		"targets", rep.Targets,
		"local", rep.Local,
		"batches", rep.Batches,
		"sent", rep.Sent,
		"failed", rep.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rep
}

func (d *NotificationDispatcher) emit(ctx context.Context, h model.Handle, ev *model.Event, et model.EventType) error {
	attrs := metric.WithAttributes(attribute.String("event_type", string(et)))

	if err := d.addresser.Emit(ctx, h, ev); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, model.ErrHandleNotFound) {
			// disconnect raced the delivery
			level = slog.LevelInfo
		}
		d.logger.Log(ctx, level, "DELIVERY_FAILED", "notification_id", ev.ID, "handle", h, "err", err)
		d.failed.Add(ctx, 1, attrs)
		return err
	}

	d.delivered.Add(ctx, 1, attrs)
	return nil
}
