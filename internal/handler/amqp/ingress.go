package amqp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/service"
)

// ActionV1 is the wire payload another internal service publishes to
// submit an Action on a session's behalf. It mirrors model.Action's two
// variants directly: either a Prompt or a UiAction.
type ActionV1 struct {
	Kind    string         `json:"kind"` // "prompt" | "ui_action"
	Text    string         `json:"text,omitempty"`
	Model   string         `json:"model,omitempty"`
	Context []string       `json:"context,omitempty"`
	Name    string         `json:"name,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func (a ActionV1) toAction() model.Action {
	if a.Kind == "ui_action" {
		return model.NewUiAction(a.Name, a.Data, a.Model)
	}
	return model.NewPrompt(a.Text, a.Model, a.Context)
}

// IngressHandler is the AMQP-facing counterpart of the HTTP/WS submit
// path: it submits onto the same Deliverer, so an action arriving over
// the broker is indistinguishable from one arriving over a live
// connection once it reaches the Processor.
type IngressHandler struct {
	deliverer service.Deliverer
	logger    *slog.Logger
}

func NewIngressHandler(deliverer service.Deliverer, logger *slog.Logger) *IngressHandler {
	return &IngressHandler{deliverer: deliverer, logger: logger}
}

// OnActionV1 submits the decoded action onto sessionID's Processor.
func (h *IngressHandler) OnActionV1(ctx context.Context, sessionID string, raw *ActionV1) error {
	if err := h.deliverer.Submit(sessionID, raw.toAction()); err != nil {
		return fmt.Errorf("amqp ingress: submit session %s: %w", sessionID, err)
	}
	h.logger.Debug("AMQP_ACTION_INGESTED", "session_id", sessionID, "kind", raw.Kind)
	return nil
}
