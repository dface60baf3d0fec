// Package httpsrv runs the HTTP listener shared by the ingress API and the websocket endpoint.
package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/im-notification-service/config"
	"go.uber.org/fx"
)

// NewRouter returns the root router. Handler packages mount their routes on it.
func NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	return r
}

type Server struct {
	server *http.Server
	logger *slog.Logger
	addr   atomic.Value // string, set once listening
}

func NewServer(cfg *config.Config, router chi.Router, logger *slog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           router,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		},
		logger: logger.With("component", "http"),
	}
}

// Start binds the listener synchronously so that address errors fail the startup,
// then serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("http: listen %s: %w", s.server.Addr, err)
	}

	s.addr.Store(ln.Addr().String())
	s.logger.Info("HTTP_SERVER_STARTED", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVER_FAILED", "err", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, "" before Start.
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx expires.
// Hijacked websocket connections are not tracked here; the hub closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP_SERVER_STOPPING")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http: shutdown: %w", err)
	}
	return nil
}

var Module = fx.Module("http-server",
	fx.Provide(
		NewRouter,
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Shutdown,
		})
	}),
)
