package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRequest_Validate(t *testing.T) {
	data := json.RawMessage(`{"msg":"hi"}`)

	cases := []struct {
		name string
		req  NotificationRequest
		ok   bool
	}{
		{"valid one direction", NotificationRequest{"u1", EventOneDirection, data}, true},
		{"valid broadcast", NotificationRequest{"u1", EventBroadcast, data}, true},
		{"string data", NotificationRequest{"u1", EventBroadcast, json.RawMessage(`"text"`)}, true},
		{"missing user", NotificationRequest{"", EventOneDirection, data}, false},
		{"missing event type", NotificationRequest{"u1", "", data}, false},
		{"missing data", NotificationRequest{"u1", EventOneDirection, nil}, false},
		{"null data", NotificationRequest{"u1", EventOneDirection, json.RawMessage(`null`)}, false},
		{"false data", NotificationRequest{"u1", EventOneDirection, json.RawMessage(`false`)}, false},
		{"zero data", NotificationRequest{"u1", EventOneDirection, json.RawMessage(` 0 `)}, false},
		{"empty string data", NotificationRequest{"u1", EventOneDirection, json.RawMessage(`""`)}, false},
		{"unknown event type", NotificationRequest{"u1", "ALL", data}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestNotificationRequest_ToNotification(t *testing.T) {
	one := (&NotificationRequest{"u1", EventOneDirection, json.RawMessage(`1`)}).ToNotification()
	assert.Equal(t, "u1", one.UserID)
	_, err := uuid.Parse(one.ID)
	assert.NoError(t, err)

	all := (&NotificationRequest{"u1", EventBroadcast, json.RawMessage(`1`)}).ToNotification()
	assert.Empty(t, all.UserID)
	assert.NotEqual(t, one.ID, all.ID)
}

func TestNotification_Validate(t *testing.T) {
	assert.NoError(t, (&Notification{UserID: "u1", EventType: EventOneDirection}).Validate())
	assert.NoError(t, (&Notification{EventType: EventBroadcast}).Validate())

	var nilNotification *Notification
	assert.ErrorIs(t, nilNotification.Validate(), ErrValidation)
	assert.ErrorIs(t, (&Notification{EventType: EventOneDirection}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&Notification{EventType: "X"}).Validate(), ErrValidation)
}

func TestEnvelope_WireFormat(t *testing.T) {
	raw, err := json.Marshal(Envelope{Notification: &Notification{
		ID:        "n-1",
		UserID:    "u1",
		EventType: EventOneDirection,
		Data:      json.RawMessage(`{"msg":"hi"}`),
	}})
	require.NoError(t, err)

	assert.JSONEq(t, `{"notification":{"id":"n-1","userId":"u1","eventType":"ONE_DIRECTION","data":{"msg":"hi"}}}`, string(raw))
}

func TestHandle(t *testing.T) {
	id := uuid.New()
	h := NewHandle("node-a", id)

	assert.Equal(t, "node-a/"+id.String(), h.String())
	assert.Equal(t, "node-a", h.NodeID())
	assert.True(t, h.Valid())

	assert.Empty(t, Handle("no-separator").NodeID())
	assert.False(t, Handle("").Valid())
	assert.False(t, Handle("/x").Valid())
}
