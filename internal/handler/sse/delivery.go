// Package sse is the server-sent-events transport adapter: subscribe, then
// pump events until the client disconnects or the stream ends. Each
// delivered event's offset is sent as the SSE `id:` field so a reconnecting
// client's `Last-Event-ID` header is the natural resumption cursor.
package sse

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/riverpatch/uistream/internal/handler/marshaller"
	"github.com/riverpatch/uistream/internal/service"
)

type SSEHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
}

func NewSSEHandler(logger *slog.Logger, deliverer service.Deliverer) *SSEHandler {
	return &SSEHandler{logger: logger, deliverer: deliverer}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	fromOffset := resumeOffset(r)

	sub, err := h.deliverer.Subscribe(r.Context(), sessionID, fromOffset)
	if err != nil {
		h.logger.Error("SSE_SUBSCRIBE_FAILED", "session_id", sessionID, "err", err)
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Info("SSE_OPENED", "session_id", sessionID, "from_offset", fromOffset)

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
				h.logger.Error("SSE_MARSHAL_FAILED", "session_id", sessionID, "err", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ev.GetOffset(), data)
			flusher.Flush()
		}
	}
}

// resumeOffset prefers the standard SSE reconnection header over an
// explicit query parameter, since browsers' EventSource automatically
// resends Last-Event-ID on reconnect.
func resumeOffset(r *http.Request) int64 {
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return n
		}
	}
	if raw := r.URL.Query().Get("from_offset"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	}
	return -1
}
