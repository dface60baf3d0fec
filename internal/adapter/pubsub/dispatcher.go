package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-notification-service/internal/domain/model"
)

const (
	TraceIDKey   = "trace_id"
	EventTypeKey = "event_type"
)

type traceIDCtxKey struct{}

// ContextWithTraceID stores the id that is propagated in message metadata.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDCtxKey{}, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDCtxKey{}).(string)
	return id
}

// NotificationPublisher defines the high-level contract for putting notifications on the bus.
// This allows callers to stay agnostic of the transport implementation.
type NotificationPublisher interface {
	Publish(ctx context.Context, n *model.Notification) error
}

// notificationPublisher is the concrete implementation (private).
type notificationPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewNotificationPublisher returns the interface instead of the pointer to the struct.
func NewNotificationPublisher(pub message.Publisher, topic string) NotificationPublisher {
	return &notificationPublisher{
		publisher: pub,
		topic:     topic,
	}
}

func (d *notificationPublisher) Publish(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification publisher: cannot publish nil notification")
	}

	payload, err := json.Marshal(model.Envelope{Notification: n})
	if err != nil {
		return fmt.Errorf("notification publisher: marshal failure: %w", err)
	}

	id := n.ID
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		msg.Metadata.Set(TraceIDKey, traceID)
	}

	msg.Metadata.Set(EventTypeKey, string(n.EventType))

	// Broker clients may block on a dead connection; the wait is bounded by ctx.
	done := make(chan error, 1)
	go func() { done <- d.publisher.Publish(d.topic, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notification publisher: topic %s: %w: %w", d.topic, model.ErrBusUnavailable, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification publisher: topic %s: %w: %w", d.topic, model.ErrBusUnavailable, ctx.Err())
	}
}

// DecodeNotification extracts the notification from a bus message.
func DecodeNotification(msg *message.Message) (*model.Notification, error) {
	var env model.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return nil, fmt.Errorf("notification decode: %w", err)
	}
	if env.Notification == nil {
		return nil, fmt.Errorf("notification decode: envelope has no notification")
	}
	if env.Notification.ID == "" {
		env.Notification.ID = msg.UUID
	}
	return env.Notification, nil
}
