// Package service exposes the process-wide Deliverer: the single
// entrypoint every transport handler (SSE, WS, LP, and the AMQP ingress)
// uses to submit actions and subscribe to a session's stream. It is a thin
// façade in front of the Registry and Composer.
package service

import (
	"context"
	"fmt"

	"github.com/riverpatch/uistream/internal/composer"
	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/registry"
)

// Deliverer is the primary interface transport handlers depend on.
type Deliverer interface {
	Subscribe(ctx context.Context, sessionID string, fromOffsetExclusive int64) (*composer.Subscription, error)
	Submit(sessionID string, action model.Action) error
}

// DeliveryService implements Deliverer over a Composer (replay+live
// stitching) and a Registry (action ingress). service.Module provides it
// only as a Deliverer, so transport handlers depend on the interface.
type DeliveryService struct {
	composer *composer.Composer
	registry *registry.Registry
}

// NewDeliveryService returns a production-ready instance of the service.
func NewDeliveryService(comp *composer.Composer, reg *registry.Registry) *DeliveryService {
	return &DeliveryService{
		composer: comp,
		registry: reg,
	}
}

// Subscribe hands back a gap-free, duplicate-free event stream for
// sessionID starting just after fromOffsetExclusive.
func (s *DeliveryService) Subscribe(ctx context.Context, sessionID string, fromOffsetExclusive int64) (*composer.Subscription, error) {
	return s.composer.Subscribe(ctx, sessionID, fromOffsetExclusive)
}

// Submit enqueues action against sessionID's Processor, creating the
// Processor (and restoring its state from the Event Log) if this is the
// session's first action.
func (s *DeliveryService) Submit(sessionID string, action model.Action) error {
	proc, err := s.registry.GetOrCreate(sessionID)
	if err != nil {
		return err
	}
	if !proc.Enqueue(action) {
		return fmt.Errorf("session %s: action queue closed", sessionID)
	}
	return nil
}
