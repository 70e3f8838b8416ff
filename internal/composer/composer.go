// Package composer implements the Subscription Composer: it turns a
// (sessionID, fromOffsetExclusive) pair into a single ordered, gap-free,
// duplicate-free stream of events by concatenating a durable replay with a
// live bus tail.
package composer

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/registry"
	"github.com/riverpatch/uistream/internal/store"
)

var tracer = otel.Tracer("github.com/riverpatch/uistream/internal/composer")

// Composer wires a Registry (for getOrCreate/touch) to an Event Log (for
// durable replay). One Composer is shared across every transport handler
// (SSE, WS, LP) in the process.
type Composer struct {
	registry *registry.Registry
	log      store.EventLog
}

func New(reg *registry.Registry, eventLog store.EventLog) *Composer {
	return &Composer{registry: reg, log: eventLog}
}

// Subscription is the handle a transport handler holds for the lifetime of
// one client connection.
type Subscription struct {
	Events <-chan *model.EventWithOffset

	subID     uuid.UUID
	processor processorUnsubscriber
}

// processorUnsubscriber is the minimal surface Subscription needs from a
// *processor.Processor, named to avoid importing the processor package
// just for its concrete type in this struct's field.
type processorUnsubscriber interface {
	Unsubscribe(id uuid.UUID)
}

// Close detaches the underlying bus subscriber. Safe to call once; callers
// should defer it immediately after a successful Subscribe.
func (s *Subscription) Close() {
	if s.processor != nil {
		s.processor.Unsubscribe(s.subID)
	}
}

// Subscribe gets-or-creates the session's Processor, eagerly subscribes to
// its bus, reads the durable replay, then stitches replay and live tail
// into one channel filtered so no offset is ever delivered twice.
// fromOffsetExclusive defaults to -1, meaning "from the beginning".
func (c *Composer) Subscribe(ctx context.Context, sessionID string, fromOffsetExclusive int64) (*Subscription, error) {
	ctx, span := tracer.Start(ctx, "composer.attach", trace.WithAttributes(
		attribute.String("session_id", sessionID),
		attribute.Int64("from_offset_exclusive", fromOffsetExclusive),
	))
	defer span.End()

	// Step 1: getOrCreate, then touch. A pure subscribe carries no action,
	// so without an explicit touch here an idle session's processor could
	// be reaped by the eviction sweep out from under a reader that just
	// attached to it.
	proc, err := c.registry.GetOrCreate(sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	c.registry.Touch(sessionID)

	// Step 2: eager bus subscription, before the durable read, so any
	// event published after this point is already buffered for us.
	sub := proc.Subscribe()

	// Step 3: durable replay.
	rows, err := c.log.ReadFrom(sessionID, fromOffsetExclusive)
	if err != nil {
		span.RecordError(err)
		proc.Unsubscribe(sub.ID())
		return nil, err
	}

	// Step 4: dbMax.
	dbMax := fromOffsetExclusive
	if len(rows) > 0 {
		dbMax = rows[len(rows)-1].Offset
	}

	out := make(chan *model.EventWithOffset)
	go c.pump(ctx, rows, dbMax, sub, out)

	return &Subscription{Events: out, subID: sub.ID(), processor: proc}, nil
}

// pump implements step 5: emit the replayed rows in order, then the live
// tail filtered to offset > dbMax, until ctx is cancelled or the bus
// subscriber reaches end-of-stream (processor eviction or overflow).
func (c *Composer) pump(ctx context.Context, rows []model.LogRow, dbMax int64, sub subscriber, out chan<- *model.EventWithOffset) {
	defer close(out)

	for _, row := range rows {
		ev, err := rowToEvent(row)
		if err != nil {
			// A corrupt row should never happen in practice; skip it
			// rather than wedge the whole replay.
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.GetOffset() <= dbMax {
				// Already delivered as part of the replay (step 5b's
				// de-duplication filter).
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// subscriber is the minimal surface pump needs from *bus.Subscriber.
type subscriber interface {
	Events() <-chan *model.EventWithOffset
	ID() uuid.UUID
}

func rowToEvent(row model.LogRow) (*model.EventWithOffset, error) {
	ev, err := model.DecodeStreamEvent(row.Data)
	if err != nil {
		return nil, err
	}
	return model.NewEventWithOffset(ev, row.Offset), nil
}
