package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	infrapubsub "github.com/webitel/im-notification-service/infra/pubsub"
	"github.com/webitel/im-notification-service/internal/adapter/pubsub"
	"github.com/webitel/im-notification-service/internal/domain/model"
	"github.com/webitel/im-notification-service/internal/service"
)

const topic = "notifications"

type recordingDeliverer struct {
	mu       sync.Mutex
	received []*model.Notification
	traceIDs []string
	panicOn  string
}

func (d *recordingDeliverer) OnMessage(ctx context.Context, n *model.Notification) service.DeliveryReport {
	if n.ID == d.panicOn {
		panic("boom")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, n)
	d.traceIDs = append(d.traceIDs, pubsub.TraceIDFromContext(ctx))
	return service.DeliveryReport{}
}

func (d *recordingDeliverer) IDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.received))
	for _, n := range d.received {
		ids = append(ids, n.ID)
	}
	return ids
}

type busFixture struct {
	ctx       context.Context
	pub       message.Publisher
	publisher pubsub.NotificationPublisher
	deliverer *recordingDeliverer
}

func setupBus(t *testing.T, dedupeSize int) *busFixture {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wmLogger := watermill.NewSlogLogger(logger)
	ch := infrapubsub.NewGoChannel(wmLogger)

	deliverer := &recordingDeliverer{panicOn: "explode"}
	h, err := NewNotificationHandler(deliverer, logger, dedupeSize)
	require.NoError(t, err)

	router, err := NewWatermillRouter(wmLogger)
	require.NoError(t, err)
	h.RegisterHandlers(router, ch, topic, RouteOptions{Timeout: time.Second})
	require.NoError(t, RunRouter(ctx, router, logger))

	t.Cleanup(func() {
		_ = router.Close()
		_ = ch.Close()
	})

	return &busFixture{
		ctx:       ctx,
		pub:       ch,
		publisher: pubsub.NewNotificationPublisher(ch, topic),
		deliverer: deliverer,
	}
}

func notification(id string) *model.Notification {
	return &model.Notification{
		ID:        id,
		UserID:    "u1",
		EventType: model.EventOneDirection,
		Data:      json.RawMessage(`{"msg":"hi"}`),
	}
}

func (f *busFixture) waitFor(t *testing.T, ids ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.deliverer.IDs()) >= len(ids)
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, ids, f.deliverer.IDs())
}

func TestBind_DeliversDecodedNotification(t *testing.T) {
	f := setupBus(t, 16)

	require.NoError(t, f.publisher.Publish(pubsub.ContextWithTraceID(f.ctx, "trace-1"), notification("n-1")))

	f.waitFor(t, "n-1")
	got := f.deliverer.received[0]
	assert.Equal(t, "u1", got.UserID)
	assert.JSONEq(t, `{"msg":"hi"}`, string(got.Data))
	assert.Equal(t, []string{"trace-1"}, f.deliverer.traceIDs)
}

func TestBind_GeneratesTraceID(t *testing.T) {
	f := setupBus(t, 16)

	require.NoError(t, f.publisher.Publish(f.ctx, notification("n-1")))

	f.waitFor(t, "n-1")
	assert.NotEmpty(t, f.deliverer.traceIDs[0])
}

func TestBind_SkipsDuplicates(t *testing.T) {
	f := setupBus(t, 16)

	require.NoError(t, f.publisher.Publish(f.ctx, notification("n-1")))
	require.NoError(t, f.publisher.Publish(f.ctx, notification("n-1")))
	require.NoError(t, f.publisher.Publish(f.ctx, notification("n-2")))

	f.waitFor(t, "n-1", "n-2")
}

func TestBind_DedupeDisabled(t *testing.T) {
	f := setupBus(t, 0)

	require.NoError(t, f.publisher.Publish(f.ctx, notification("n-1")))
	require.NoError(t, f.publisher.Publish(f.ctx, notification("n-1")))

	f.waitFor(t, "n-1", "n-1")
}

func TestBind_PoisonMessageIsAcked(t *testing.T) {
	f := setupBus(t, 16)

	require.NoError(t, f.pub.Publish(topic, message.NewMessage(watermill.NewUUID(), []byte("not json"))))
	require.NoError(t, f.pub.Publish(topic, message.NewMessage(watermill.NewUUID(), []byte(`{"other":1}`))))
	require.NoError(t, f.publisher.Publish(f.ctx, notification("n-1")))

	f.waitFor(t, "n-1")
}

func TestBind_RecoversFromPanic(t *testing.T) {
	f := setupBus(t, 16)

	require.NoError(t, f.publisher.Publish(f.ctx, notification("explode")))
	require.NoError(t, f.publisher.Publish(f.ctx, notification("n-1")))

	f.waitFor(t, "n-1")
}

func TestLoggingMiddleware_RecordsNotificationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	msg := message.NewMessage("n-1", []byte(`{}`))
	msg.Metadata.Set(pubsub.EventTypeKey, string(model.EventBroadcast))
	msg.SetContext(pubsub.ContextWithTraceID(context.Background(), "trace-1"))

	handler := LoggingMiddleware(logger)(func(*message.Message) ([]*message.Message, error) {
		return nil, nil
	})
	_, err := handler(msg)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "NOTIFICATION_CONSUMED", line["msg"])
	assert.Equal(t, "n-1", line["notification_id"])
	assert.Equal(t, "BROADCAST", line["event_type"])
	assert.Equal(t, "trace-1", line["trace_id"])
}
