package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webitel/im-notification-service/internal/domain/model"
)

// Addresser is the transport addressing capability handed to the dispatcher.
type Addresser interface {
	// Owns reports whether handle was minted by this node. The connection itself may already be gone.
	Owns(handle model.Handle) bool
	// Emit pushes ev to the connection addressed by handle.
	Emit(ctx context.Context, handle model.Handle, ev *model.Event) error
}

// Hubber defines the node-local registry of live connections.
type Hubber interface {
	Addresser
	NodeID() string
	NewConnector(ctx context.Context, userID string) Connector
	Register(conn Connector)
	// Unregister removes the connection and reports whether it was still registered.
	Unregister(handle model.Handle) bool
	Stats() model.HubStats
	Shutdown(ctx context.Context) error
}

const drainPollInterval = 10 * time.Millisecond

type hubConfig struct {
	emitTimeout time.Duration
	sendBuffer  int
}

// Hub keeps the connections accepted by this node, keyed by handle.
type Hub struct {
	nodeID    string
	config    hubConfig
	conns     sync.Map // map[model.Handle]Connector
	count     atomic.Int64
	startedAt time.Time
}

func NewHub(nodeID string, opts ...Option) *Hub {
	h := &Hub{
		nodeID: nodeID,
		config: hubConfig{
			emitTimeout: 500 * time.Millisecond,
			sendBuffer:  256,
		},
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) NodeID() string { return h.nodeID }

func (h *Hub) NewConnector(ctx context.Context, userID string) Connector {
	return NewConnector(ctx, h.nodeID, userID, h.config.sendBuffer)
}

func (h *Hub) Register(conn Connector) {
	if _, loaded := h.conns.LoadOrStore(conn.GetHandle(), conn); !loaded {
		h.count.Add(1)
	}
}

func (h *Hub) Unregister(handle model.Handle) bool {
	val, ok := h.conns.LoadAndDelete(handle)
	if !ok {
		return false
	}
	h.count.Add(-1)
	val.(Connector).Close()
	return true
}

func (h *Hub) Owns(handle model.Handle) bool {
	return handle.NodeID() == h.nodeID
}

// Emit delivers to a connection held by this node. Handles of other nodes yield
// model.ErrNotOwned, handles of connections already gone yield model.ErrHandleNotFound.
func (h *Hub) Emit(ctx context.Context, handle model.Handle, ev *model.Event) error {
	if handle.NodeID() != h.nodeID {
		return fmt.Errorf("hub: emit %s: %w", handle, model.ErrNotOwned)
	}
	val, ok := h.conns.Load(handle)
	if !ok {
		return fmt.Errorf("hub: emit %s: %w", handle, model.ErrHandleNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.emitTimeout)
	defer cancel()

	if !val.(Connector).Send(ctx, ev) {
		return fmt.Errorf("hub: emit %s: %w", handle, model.ErrDelivery)
	}
	return nil
}

func (h *Hub) Stats() model.HubStats {
	return model.HubStats{
		NodeID:           h.nodeID,
		TotalConnections: int(h.count.Load()),
		Uptime:           time.Since(h.startedAt).Round(time.Second).String(),
	}
}

// Shutdown terminates every live connection and waits until the transport has
// unregistered all of them, or ctx expires. Entries stay registered meanwhile so
// that each connection still runs the regular disconnect path.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.conns.Range(func(_, val any) bool {
		val.(Connector).Close()
		return true
	})

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for h.count.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("hub: shutdown with %d connections left: %w", h.count.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
