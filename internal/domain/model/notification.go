package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventType selects the delivery strategy for a notification.
type EventType string

const (
	// EventOneDirection targets exactly one user.
	EventOneDirection EventType = "ONE_DIRECTION"
	// EventBroadcast targets every user currently holding a live connection.
	EventBroadcast EventType = "BROADCAST"
)

func (t EventType) Valid() bool {
	return t == EventOneDirection || t == EventBroadcast
}

// Notification is the unit published once on the bus and consumed by every node.
type Notification struct {
	ID        string          `json:"id,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	EventType EventType       `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// Validate checks the routing fields of a notification that is about to be published.
func (n *Notification) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: notification is nil", ErrValidation)
	}
	if !n.EventType.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, n.EventType)
	}
	if n.EventType == EventOneDirection && n.UserID == "" {
		return fmt.Errorf("%w: userId is required for %s", ErrValidation, EventOneDirection)
	}
	return nil
}

// Envelope is the bus wire format: {"notification": {...}}.
type Envelope struct {
	Notification *Notification `json:"notification"`
}

// NotificationRequest is the ingress shape. All three fields are mandatory.
type NotificationRequest struct {
	UserID    string          `json:"userId"`
	EventType EventType       `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// Validate rejects requests with a missing userId, eventType or data, or an unknown eventType.
// A data value of null, false, 0 or "" counts as missing.
func (r *NotificationRequest) Validate() error {
	switch {
	case r.UserID == "":
		return fmt.Errorf("%w: userId is required", ErrValidation)
	case r.EventType == "":
		return fmt.Errorf("%w: eventType is required", ErrValidation)
	case isEmptyJSON(r.Data):
		return fmt.Errorf("%w: data is required", ErrValidation)
	case !r.EventType.Valid():
		return fmt.Errorf("%w: eventType must be %s or %s", ErrValidation, EventOneDirection, EventBroadcast)
	}
	return nil
}

// ToNotification assigns a fresh id. Broadcasts carry no userId.
func (r *NotificationRequest) ToNotification() *Notification {
	n := &Notification{
		ID:        uuid.NewString(),
		EventType: r.EventType,
		Data:      r.Data,
	}
	if r.EventType == EventOneDirection {
		n.UserID = r.UserID
	}
	return n
}

func isEmptyJSON(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return true
	}
	switch string(v) {
	case "null", "false", "0", `""`:
		return true
	}
	return false
}
