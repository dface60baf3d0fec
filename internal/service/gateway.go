package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/webitel/im-notification-service/internal/adapter/presence"
	"github.com/webitel/im-notification-service/internal/domain/model"
	"github.com/webitel/im-notification-service/internal/domain/registry"
)

// TokenVerifier validates a handshake credential and returns the user it identifies.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// [GATEWAY] PRIMARY INTERFACE FOR TRANSPORT HANDLERS (Websocket)
type Gateway interface {
	OnConnect(ctx context.Context, rawToken string) (registry.Connector, error)
	OnDisconnect(ctx context.Context, conn registry.Connector)
	OnTransportError(ctx context.Context, conn registry.Connector, err error)
}

var errMissingToken = errors.New("token is missing")

type ConnectionGateway struct {
	verifier  TokenVerifier
	directory presence.Directory
	hub       registry.Hubber
	logger    *slog.Logger
}

func NewConnectionGateway(verifier TokenVerifier, directory presence.Directory, hub registry.Hubber, logger *slog.Logger) *ConnectionGateway {
	return &ConnectionGateway{
		verifier:  verifier,
		directory: directory,
		hub:       hub,
		logger:    logger.With("component", "gateway"),
	}
}

// OnConnect authenticates the handshake token and registers the connection.
// Authentication failures return model.ErrAuthentication and leave no state behind.
// A failed presence write is logged and the connection stays open.
func (g *ConnectionGateway) OnConnect(ctx context.Context, rawToken string) (registry.Connector, error) {
	if rawToken == "" {
		g.logger.Debug("TOKEN_MISSING")
		return nil, fmt.Errorf("gateway: %w: %w", model.ErrAuthentication, errMissingToken)
	}

	userID, err := g.verifier.Verify(rawToken)
	if err != nil {
		g.logger.Warn("TOKEN_REJECTED", "err", err)
		return nil, fmt.Errorf("gateway: %w: %w", model.ErrAuthentication, err)
	}

	conn := g.hub.NewConnector(ctx, userID)
	g.hub.Register(conn)

	log := g.logger.With("user_id", userID, "handle", conn.GetHandle())

	if err := g.directory.Put(ctx, userID, conn.GetHandle()); err != nil {
		log.Error("PRESENCE_PUT_FAILED", "err", err)
	} else {
		log.Info("CONNECTION_REGISTERED")
	}

	return conn, nil
}

// OnDisconnect releases the connection and removes the presence entry if it still
// points at this connection. Repeated calls for the same connection are no-ops.
// The hub entry is dropped last so that a draining hub waits for the presence cleanup.
func (g *ConnectionGateway) OnDisconnect(ctx context.Context, conn registry.Connector) {
	if !conn.Release() {
		return
	}
	defer g.hub.Unregister(conn.GetHandle())

	log := g.logger.With("user_id", conn.GetUserID(), "handle", conn.GetHandle())

	// The transport context is usually gone by now; cleanup must still run.
	ctx = context.WithoutCancel(ctx)

	deleted, err := g.directory.DeleteIfMatches(ctx, conn.GetUserID(), conn.GetHandle())
	switch {
	case err != nil:
		log.Error("PRESENCE_DELETE_FAILED", "err", err)
	case !deleted:
		log.Info("PRESENCE_SUPERSEDED")
	default:
		log.Info("CONNECTION_RELEASED", "dropped", conn.Dropped())
	}
}

// OnTransportError logs err and forces the disconnect path.
func (g *ConnectionGateway) OnTransportError(ctx context.Context, conn registry.Connector, err error) {
	g.logger.Warn("TRANSPORT_ERROR",
		"user_id", conn.GetUserID(),
		"handle", conn.GetHandle(),
		"err", err,
	)
	g.OnDisconnect(ctx, conn)
}
