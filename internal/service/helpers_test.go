package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/im-notification-service/internal/adapter/presence"
	"github.com/webitel/im-notification-service/internal/domain/model"
	"github.com/webitel/im-notification-service/internal/domain/registry"
)

// stopHub closes whatever the test left open without waiting for a transport.
func stopHub(hub registry.Hubber) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_ = hub.Shutdown(ctx)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticVerifier accepts "valid:<userID>" tokens.
type staticVerifier struct{}

func (staticVerifier) Verify(raw string) (string, error) {
	const prefix = "valid:"
	if len(raw) > len(prefix) && raw[:len(prefix)] == prefix {
		return raw[len(prefix):], nil
	}
	return "", errors.New("signature is invalid")
}

// brokenDirectory fails every call.
type brokenDirectory struct{}

var errStoreDown = errors.New("store down")

func (brokenDirectory) Put(context.Context, string, model.Handle) error { return errStoreDown }
func (brokenDirectory) Get(context.Context, string) (model.Handle, bool, error) {
	return "", false, errStoreDown
}
func (brokenDirectory) DeleteIfMatches(context.Context, string, model.Handle) (bool, error) {
	return false, errStoreDown
}
func (brokenDirectory) ListAll(context.Context) ([]model.PresenceEntry, error) {
	return nil, errStoreDown
}

var _ presence.Directory = brokenDirectory{}

type emitCall struct {
	handle model.Handle
	event  *model.Event
	at     time.Time
}

// recordingAddresser owns every handle and records emits.
type recordingAddresser struct {
	mu      sync.Mutex
	calls   []emitCall
	fail    map[model.Handle]error
	notMine map[model.Handle]bool
	delay   time.Duration
}

func (r *recordingAddresser) Owns(h model.Handle) bool {
	return !r.notMine[h]
}

func (r *recordingAddresser) Emit(_ context.Context, h model.Handle, ev *model.Event) error {
	r.mu.Lock()
	r.calls = append(r.calls, emitCall{handle: h, event: ev, at: time.Now()})
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.fail[h]
}

func (r *recordingAddresser) Calls() []emitCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emitCall(nil), r.calls...)
}

// recordingPublisher captures published notifications.
type recordingPublisher struct {
	mu        sync.Mutex
	published []*model.Notification
	err       error
	block     bool
}

func (p *recordingPublisher) Publish(ctx context.Context, n *model.Notification) error {
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, n)
	return nil
}
