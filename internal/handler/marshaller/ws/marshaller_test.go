package wsmarshaller

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-notification-service/internal/domain/model"
)

func TestMarshallDeliveryEvent(t *testing.T) {
	ev := &model.Event{ID: "n-1", Name: model.NotificationEventName, Payload: json.RawMessage(`{"msg":"hi"}`), OccurredAt: 1700000000000}

	data, err := MarshallDeliveryEvent(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"notification","id":"n-1","sent_at":1700000000000,"payload":{"msg":"hi"}}`, string(data))
}

func TestMarshallDeliveryEvent_EmptyPayload(t *testing.T) {
	data, err := MarshallDeliveryEvent(&model.Event{ID: "n-1", Name: "notification"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"notification","id":"n-1","sent_at":0,"payload":null}`, string(data))
}
