// Package http assembles the chi router every HTTP-based transport
// (SSE, WS, long-poll) mounts onto, plus the plain POST action-submission
// endpoint non-streaming clients use.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/handler/lp"
	"github.com/riverpatch/uistream/internal/handler/sse"
	"github.com/riverpatch/uistream/internal/handler/ws"
	"github.com/riverpatch/uistream/internal/service"
)

// NewRouter wires health checks and every transport handler onto one
// chi.Mux, keyed by sessionID path segments.
func NewRouter(logger *slog.Logger, deliverer service.Deliverer, wsHandler *ws.WSHandler, lpHandler *lp.LPHandler, sseHandler *sse.SSEHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/events/sse", sseHandler.ServeHTTP)
		r.Get("/events/ws", wsHandler.ServeHTTP)
		r.Get("/events/poll", lpHandler.Poll)
		r.Post("/actions", submitAction(logger, deliverer))
	})

	return r
}

// submitActionRequest is the JSON body for POST .../actions, the
// non-streaming counterpart to the WS handler's inbound frame.
type submitActionRequest struct {
	Kind    string         `json:"kind"`
	Text    string         `json:"text,omitempty"`
	Model   string         `json:"model,omitempty"`
	Context []string       `json:"context,omitempty"`
	Name    string         `json:"name,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func submitAction(logger *slog.Logger, deliverer service.Deliverer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		var req submitActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		var action model.Action
		if req.Kind == "ui_action" {
			action = model.NewUiAction(req.Name, req.Data, req.Model)
		} else {
			action = model.NewPrompt(req.Text, req.Model, req.Context)
		}

		if err := deliverer.Submit(sessionID, action); err != nil {
			logger.Error("HTTP_SUBMIT_FAILED", "session_id", sessionID, "err", err)
			http.Error(w, "submit failed", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
