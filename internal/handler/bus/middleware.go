package bus

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/webitel/im-notification-service/internal/adapter/pubsub"
)

// TraceIDMiddleware carries the ingress trace id from message metadata into the
// handler context. Messages published without one get a fresh id.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get(pubsub.TraceIDKey)
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set(pubsub.TraceIDKey, traceID)
		}
		msg.SetContext(pubsub.ContextWithTraceID(msg.Context(), traceID))

		return h(msg)
	}
}

// LoggingMiddleware records one NOTIFICATION_CONSUMED line per bus delivery on this node.
// The message UUID is the notification id.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			produced, err := h(msg)

			attrs := []any{
				"notification_id", msg.UUID,
				"event_type", msg.Metadata.Get(pubsub.EventTypeKey),
				"trace_id", pubsub.TraceIDFromContext(msg.Context()),
				"topic", message.SubscribeTopicFromCtx(msg.Context()),
				"handler", message.HandlerNameFromCtx(msg.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.Warn("NOTIFICATION_CONSUME_FAILED", append(attrs, "err", err)...)
				return produced, err
			}
			logger.Debug("NOTIFICATION_CONSUMED", attrs...)
			return produced, nil
		}
	}
}
