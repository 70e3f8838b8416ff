package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverpatch/uistream/internal/composer"
	"github.com/riverpatch/uistream/internal/domain/model"
)

// delivererMiddleware decorates a Deliverer with outcome logging, keeping
// that cross-cutting concern out of the Deliverer implementation itself.
type delivererMiddleware struct {
	next   Deliverer
	logger *slog.Logger
}

func (m *delivererMiddleware) Subscribe(ctx context.Context, sessionID string, fromOffsetExclusive int64) (*composer.Subscription, error) {
	start := time.Now()
	sub, err := m.next.Subscribe(ctx, sessionID, fromOffsetExclusive)
	if err != nil {
		m.logger.Error("SUBSCRIBE_FAILED", "session_id", sessionID, "err", err, "duration", time.Since(start))
	} else {
		m.logger.Debug("SUBSCRIBE_OK", "session_id", sessionID, "duration", time.Since(start))
	}
	return sub, err
}

func (m *delivererMiddleware) Submit(sessionID string, action model.Action) error {
	err := m.next.Submit(sessionID, action)
	if err != nil {
		m.logger.Error("SUBMIT_FAILED", "session_id", sessionID, "err", err)
	}
	return err
}
