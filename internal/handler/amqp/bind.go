// Package amqp is the external action-ingress adapter: it consumes
// UiAction/Prompt messages published by another internal service and
// submits them onto the target session's Action Queue via the Deliverer.
package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler is the business-logic signature Bind wraps: decode a typed
// payload, do whatever domain work it implies, and return an error to
// trigger Watermill's nack/retry policy.
type DomainHandler[T any] func(ctx context.Context, sessionID string, payload *T) error

// Bind connects a watermill message to domain logic: panic recovery,
// session-id extraction, JSON decode, and execution. There is no "this
// node owns the connection" locality filter here — a session's Processor
// can always be reconstructed from the durable log on whichever node
// receives the action.
func Bind[T any](h *IngressHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		sessionID, ok := resolveSessionID(msg)
		if !ok {
			h.logger.Warn("ROUTING_FAILED: session_id_missing", "msg_id", msg.UUID)
			return nil // ACK: invalid routing is a terminal state.
		}

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
			return nil // ACK: poison-pill protection.
		}

		if err := fn(msg.Context(), sessionID, payload); err != nil {
			return err // NACK: business failure triggers the retry policy.
		}
		return nil
	}
}

func resolveSessionID(msg *message.Message) (string, bool) {
	if id := msg.Metadata.Get("x-session-id"); id != "" {
		return id, true
	}
	if id := msg.Metadata.Get("session_id"); id != "" {
		return id, true
	}

	rk := msg.Metadata.Get("x-routing-key")
	if rk == "" {
		rk = msg.Metadata.Get("routing_key")
	}
	parts := strings.Split(rk, ".")
	if len(parts) < 2 {
		return "", false
	}
	// Convention: "genui.actions.{sessionID}.{kind}".
	return parts[len(parts)-2], true
}
