// Package ws is the bidirectional WebSocket transport adapter: one
// connection both submits Actions and receives the session's event stream,
// keyed by the (sessionID, fromOffsetExclusive) pair the client opens with.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/handler/marshaller"
	"github.com/riverpatch/uistream/internal/service"
)

// inboundMessage is the JSON frame a client sends to submit an Action.
type inboundMessage struct {
	Kind    string         `json:"kind"` // "prompt" | "ui_action"
	Text    string         `json:"text,omitempty"`
	Model   string         `json:"model,omitempty"`
	Context []string       `json:"context,omitempty"`
	Name    string         `json:"name,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func (m inboundMessage) toAction() model.Action {
	if m.Kind == "ui_action" {
		return model.NewUiAction(m.Name, m.Data, m.Model)
	}
	return model.NewPrompt(m.Text, m.Model, m.Context)
}

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	upgrader  websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, deliverer service.Deliverer) *WSHandler {
	return &WSHandler{
		logger:    logger,
		deliverer: deliverer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	fromOffset := parseFromOffset(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WS_UPGRADE_FAILED", "session_id", sessionID, "err", err)
		return
	}
	defer conn.Close()

	sub, err := h.deliverer.Subscribe(r.Context(), sessionID, fromOffset)
	if err != nil {
		h.logger.Error("WS_SUBSCRIBE_FAILED", "session_id", sessionID, "err", err)
		return
	}
	defer sub.Close()

	h.logger.Info("WS_OPENED", "session_id", sessionID, "from_offset", fromOffset)

	go h.pumpInbound(conn, sessionID)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := marshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				h.logger.Error("WS_MARSHAL_FAILED", "session_id", sessionID, "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("WS_WRITE_FAILED", "session_id", sessionID, "err", err)
				return
			}
		}
	}
}

// pumpInbound reads client-submitted Actions off the socket until it
// closes. Each one is submitted to the session's Processor via the same
// Deliverer the read side uses.
func (h *WSHandler) pumpInbound(conn *websocket.Conn, sessionID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("WS_DECODE_FAILED", "session_id", sessionID, "err", err)
			continue
		}

		if err := h.deliverer.Submit(sessionID, msg.toAction()); err != nil {
			h.logger.Error("WS_SUBMIT_FAILED", "session_id", sessionID, "err", err)
		}
	}
}

func parseFromOffset(r *http.Request) int64 {
	raw := r.URL.Query().Get("from_offset")
	if raw == "" {
		return -1
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
