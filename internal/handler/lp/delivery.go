// Package lp is the long-poll transport adapter: a GET request subscribes
// with a from_offset cursor, blocks until at least one event arrives (or a
// timeout elapses), drains whatever else is immediately available, and
// returns the batch as one JSON array — the client's next poll passes the
// last offset it received.
package lp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/handler/marshaller"
	"github.com/riverpatch/uistream/internal/service"
)

const (
	pollTimeout  = 30 * time.Second
	drainCeiling = 15
)

type LPHandler struct {
	deliverer service.Deliverer
}

func NewLPHandler(deliverer service.Deliverer) *LPHandler {
	return &LPHandler{deliverer: deliverer}
}

// batchResponse is the JSON body returned from one long-poll round trip;
// Events holds each event's already-marshalled wire bytes verbatim.
type batchResponse struct {
	Events     []json.RawMessage `json:"events"`
	NextOffset int64             `json:"next_offset"`
}

// Poll handles the long-polling request. It holds the connection until an
// event arrives or pollTimeout elapses.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	fromOffset := parseFromOffset(r)

	sub, err := h.deliverer.Subscribe(r.Context(), sessionID, fromOffset)
	if err != nil {
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	var events []model.Eventer
	lastOffset := fromOffset

	select {
	case <-r.Context().Done():
		return

	case <-time.After(pollTimeout):
		w.WriteHeader(http.StatusNoContent)
		return

	case ev, ok := <-sub.Events:
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		events = append(events, ev)
		lastOffset = ev.GetOffset()

	drainLoop:
		for range drainCeiling {
			select {
			case nextEv, ok := <-sub.Events:
				if !ok {
					break drainLoop
				}
				events = append(events, nextEv)
				lastOffset = nextEv.GetOffset()
			default:
				break drainLoop
			}
		}
	}

	data, err := marshalBatch(events, lastOffset)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func marshalBatch(events []model.Eventer, lastOffset int64) ([]byte, error) {
	out := batchResponse{Events: make([]json.RawMessage, 0, len(events)), NextOffset: lastOffset}
	for _, ev := range events {
		raw, err := marshaller.MarshallDeliveryEvent(ev)
		if err != nil {
			return nil, err
		}
		out.Events = append(out.Events, json.RawMessage(raw))
	}
	return json.Marshal(out)
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
