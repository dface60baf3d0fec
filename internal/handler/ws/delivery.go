package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/im-notification-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/im-notification-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-notification-service/internal/service"
)

const (
	// TokenQueryParam carries the handshake credential on the upgrade request.
	TokenQueryParam = "token"
	maxInboundSize  = 64 << 10
)

// Options tunes the websocket pumps.
type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

type WSHandler struct {
	logger   *slog.Logger
	gateway  service.Gateway
	upgrader websocket.Upgrader
	opts     Options
}

func NewWSHandler(logger *slog.Logger, gateway service.Gateway, opts Options) *WSHandler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &WSHandler{
		logger:  logger.With("component", "ws"),
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Security: adjust for production
		},
		opts: opts,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. [PRE_AUTH] Validate identity before the upgrade; rejected clients never get a connection.
	conn, err := h.gateway.OnConnect(r.Context(), tokenFromRequest(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	// The connection outlives the request context once hijacked.
	ctx := context.WithoutCancel(r.Context())

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS_UPGRADE_FAILED", "err", err, "handle", conn.GetHandle())
		h.gateway.OnDisconnect(ctx, conn)
		return
	}
	defer ws.Close()

	h.logger.Debug("WS_OPENED", "user_id", conn.GetUserID(), "handle", conn.GetHandle())

	// 3. READ LOOP detects client disconnects
	readErr := make(chan error, 1)
	go func() { readErr <- h.readPump(ws, conn) }()

	// 4. MAIN WS PUMP LOOP
	if err := h.writePump(ws, conn, readErr); err != nil {
		h.gateway.OnTransportError(ctx, conn, err)
		return
	}
	h.gateway.OnDisconnect(ctx, conn)
}

// writePump owns every data write on ws. It returns nil on a regular close and the
// transport error otherwise.
func (h *WSHandler) writePump(ws *websocket.Conn, conn registry.Connector, readErr <-chan error) error {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-readErr:
			return transportError(err)

		case <-conn.Done():
			// Terminated by the node (shutdown); tell the client before dropping.
			deadline := time.Now().Add(h.opts.WriteTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
			return nil

		case ev := <-conn.Recv():
			data, err := wsmarshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				h.logger.Error("WS_MARSHAL_FAILED", "err", err, "event_id", ev.ID)
				continue
			}

			_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}

		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				return err
			}
		}
	}
}

// readPump keeps the read side alive. Client messages are not part of the protocol
// and are only logged.
func (h *WSHandler) readPump(ws *websocket.Conn, conn registry.Connector) error {
	ws.SetReadLimit(maxInboundSize)

	pongWait := 2 * h.opts.PingInterval
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		h.logger.Debug("WS_INBOUND_IGNORED", "handle", conn.GetHandle(), "size", len(data))
	}
}

// transportError drops the read errors of a regular client close.
func transportError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return nil
		}
	}
	return err
}

// tokenFromRequest reads the credential from the query, falling back to a bearer header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get(TokenQueryParam); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}
