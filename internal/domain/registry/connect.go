package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-notification-service/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR EXTERNAL LAYERS (HUB/GATEWAY/TRANSPORT)
type Connector interface {
	GetID() uuid.UUID
	GetUserID() string
	GetHandle() model.Handle
	Send(ctx context.Context, ev *model.Event) bool // Thread-safe send, gives up when ctx expires
	Recv() <-chan *model.Event
	Done() <-chan struct{} // Closed once the connection is terminated
	Dropped() uint64
	// Release reports true exactly once; the caller then owns the connection teardown.
	Release() bool
	Close()
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	userID    string
	handle    model.Handle
	createdAt time.Time

	ctx      context.Context
	cancelFn context.CancelFunc

	// sendCh is never closed: a concurrent Send must not panic, consumers watch Done instead.
	sendCh    chan *model.Event
	closeOnce sync.Once
	released  atomic.Bool

	lastActivityAt atomic.Int64
	droppedCount   atomic.Uint64
}

// NewConnector builds the connection state for an authenticated user on this node.
func NewConnector(ctx context.Context, nodeID, userID string, bufferSize int) Connector {
	if bufferSize < 1 {
		bufferSize = 1
	}
	// The connection outlives the handshake request that created it.
	childCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	id := uuid.New()
	c := &connect{
		id:        id,
		userID:    userID,
		handle:    model.NewHandle(nodeID, id),
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan *model.Event, bufferSize),
	}
	c.lastActivityAt.Store(c.createdAt.UnixNano())
	return c
}

func (c *connect) GetID() uuid.UUID        { return c.id }
func (c *connect) GetUserID() string       { return c.userID }
func (c *connect) GetHandle() model.Handle { return c.handle }
func (c *connect) Dropped() uint64         { return c.droppedCount.Load() }

// Send enqueues ev for the transport writer. It waits for buffer space until ctx
// expires and reports false if the event was not accepted.
func (c *connect) Send(ctx context.Context, ev *model.Event) bool {
	// [LIFECYCLE_GATE] A closed connection never accepts events, even if the buffer has room.
	select {
	case <-c.ctx.Done():
		c.droppedCount.Add(1)
		return false
	default:
	}

	select {
	case <-c.ctx.Done():
	case c.sendCh <- ev:
		c.lastActivityAt.Store(time.Now().UnixNano())
		return true
	case <-ctx.Done():
		// [BACKPRESSURE_THRESHOLD] buffer stayed saturated for the whole delivery window
	}

	c.droppedCount.Add(1)
	return false
}

func (c *connect) Recv() <-chan *model.Event { return c.sendCh }

func (c *connect) Done() <-chan struct{} { return c.ctx.Done() }

// Release closes the connection and claims its teardown for the first caller.
func (c *connect) Release() bool {
	c.Close()
	return c.released.CompareAndSwap(false, true)
}

// Close terminates the connection. Safe to call concurrently and more than once.
func (c *connect) Close() {
	c.closeOnce.Do(c.cancelFn)
}
