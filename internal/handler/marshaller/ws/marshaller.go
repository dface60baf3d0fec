package wsmarshaller

import (
	"encoding/json"

	"github.com/webitel/im-notification-service/internal/domain/model"
)

// WSEvent is a generic wrapper for WebSocket messages to provide consistent structure
type WSEvent struct {
	Event   string          `json:"event"` // e.g., "notification"
	ID      string          `json:"id"`    // notification id
	SentAt  int64           `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

// MarshallDeliveryEvent prepares data for WebSocket transmission.
func MarshallDeliveryEvent(ev *model.Event) ([]byte, error) {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	return json.Marshal(&WSEvent{
		Event:   ev.Name,
		ID:      ev.ID,
		SentAt:  ev.OccurredAt,
		Payload: payload,
	})
}
