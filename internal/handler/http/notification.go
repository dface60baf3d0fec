// Package httphandler exposes the ingress API that feeds notifications into the bus.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/im-notification-service/internal/adapter/pubsub"
	"github.com/webitel/im-notification-service/internal/domain/model"
	"github.com/webitel/im-notification-service/internal/domain/registry"
	"github.com/webitel/im-notification-service/internal/service"
)

const maxRequestBody = 1 << 20

type NotificationHandler struct {
	publisher service.Publisher
	hub       registry.Hubber
	logger    *slog.Logger
}

func NewNotificationHandler(publisher service.Publisher, hub registry.Hubber, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		publisher: publisher,
		hub:       hub,
		logger:    logger.With("component", "ingress"),
	}
}

// Register mounts the ingress routes on r.
func (h *NotificationHandler) Register(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/notifications", h.Trigger)
		r.Get("/presence/stats", h.Stats)
	})
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type triggerResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Trigger validates the request and publishes it to every node.
func (h *NotificationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req model.NotificationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid payload", Reason: "body is not a JSON object"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid payload", Reason: reason(err)})
		return
	}

	n := req.ToNotification()
	ctx := pubsub.ContextWithTraceID(r.Context(), middleware.GetReqID(r.Context()))

	if err := h.publisher.Publish(ctx, n); err != nil {
		if errors.Is(err, model.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid payload", Reason: reason(err)})
			return
		}
		// Accepted but not handed to the bus; the caller may retry.
		writeJSON(w, http.StatusAccepted, triggerResponse{
			Message: "Notification accepted",
			ID:      n.ID,
			Warning: "notification bus unavailable, delivery not guaranteed",
		})
		return
	}

	writeJSON(w, http.StatusOK, triggerResponse{Message: "Notification triggered", ID: n.ID})
}

func (h *NotificationHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

func (h *NotificationHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// reason strips the sentinel prefix from a validation error.
func reason(err error) string {
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, model.ErrValidation.Error()+": "); ok {
		return after
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
