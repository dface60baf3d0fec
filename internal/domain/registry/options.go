package registry

import "time"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithEmitTimeout bounds how long a single emit may wait for a saturated connection buffer.
func WithEmitTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.emitTimeout = d
		}
	}
}

// WithSendBuffer sets the per-connection outbound buffer capacity.
func WithSendBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.sendBuffer = size
		}
	}
}
