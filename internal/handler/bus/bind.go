package bus

import (
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-notification-service/internal/adapter/pubsub"
)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to the dispatcher, handling panic recovery, decoding and
// duplicate suppression. Every outcome is ACKed: delivery is fire-and-forget and a
// redelivered notification would reach the same connections twice.
func Bind(h *NotificationHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		// [DECODING]
		n, err := pubsub.DecodeNotification(msg)
		if err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [DEDUPLICATION]
		// Brokers may redeliver after a lost ACK; each node handles an id once.
		if h.seen != nil {
			if found, _ := h.seen.ContainsOrAdd(n.ID, struct{}{}); found {
				h.logger.Debug("DUPLICATE_SKIPPED", "notification_id", n.ID)
				return nil
			}
		}

		// [EXECUTION]
		h.deliverer.OnMessage(msg.Context(), n)
		return nil
	}
}
