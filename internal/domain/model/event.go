package model

import (
	"encoding/json"
	"time"
)

// NotificationEventName is the event name clients receive notifications under.
const NotificationEventName = "notification"

// Event is one packet pushed to a local connection.
type Event struct {
	ID         string
	Name       string
	Payload    json.RawMessage
	OccurredAt int64
}

func NewEvent(id, name string, payload json.RawMessage) *Event {
	return &Event{
		ID:         id,
		Name:       name,
		Payload:    payload,
		OccurredAt: time.Now().UnixMilli(),
	}
}
