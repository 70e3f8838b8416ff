// Package marshaller converts a model.Eventer into the bytes sent over
// whichever transport (SSE, WebSocket, long-poll) is delivering it: a
// plain JSON envelope, computed at most once per event no matter how many
// subscribers ultimately receive the same offset, using Eventer's
// GetCached/SetCached pair to short-circuit repeat encodes.
package marshaller

import (
	"encoding/json"
	"fmt"

	"github.com/riverpatch/uistream/internal/domain/model"
)

// WireEvent is the JSON envelope delivered to every transport handler.
// Offset is always present so the client can use it as a resumption cursor
// on reconnect.
type WireEvent struct {
	Offset int64                 `json:"offset"`
	Type   model.StreamEventKind `json:"type"`

	SessionID string        `json:"session_id,omitempty"`
	Patches   []model.Patch `json:"patches,omitempty"`
	HTML      string        `json:"html,omitempty"`

	CacheRate       float64 `json:"cache_rate,omitempty"`
	TokensPerSecond float64 `json:"tokens_per_second,omitempty"`
	Mode            string  `json:"mode,omitempty"`
	PatchCount      int     `json:"patch_count,omitempty"`
}

// MarshallDeliveryEvent returns the JSON bytes for ev, computing them once
// and caching the result on the Eventer itself so repeated delivery to slow
// or reconnecting subscribers of the same offset never re-encodes it.
func MarshallDeliveryEvent(ev model.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		if b, ok := cached.([]byte); ok {
			return b, nil
		}
	}

	se := ev.GetEvent()
	wire := WireEvent{
		Offset:          ev.GetOffset(),
		Type:            se.Kind,
		SessionID:       se.SessionID,
		Patches:         se.Patches,
		HTML:            se.HTML,
		CacheRate:       se.CacheRate,
		TokensPerSecond: se.TokensPerSecond,
		Mode:            se.Mode,
		PatchCount:      se.PatchCount,
	}

	b, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshaller: encode offset %d: %w", ev.GetOffset(), err)
	}

	ev.SetCached(b)
	return b, nil
}
