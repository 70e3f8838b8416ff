// Package processor implements the per-session Processor: an
// action-batching, stream-consuming loop that produces a monotonically
// offset-numbered event log. A single goroutine owns one session's mailbox
// (its Action Queue) and fans generated events out to its own subscribers
// (its Event Bus), dual-writing every event to the durable log as it goes.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riverpatch/uistream/internal/bus"
	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/domain/patch"
	"github.com/riverpatch/uistream/internal/generator"
	"github.com/riverpatch/uistream/internal/queue"
	"github.com/riverpatch/uistream/internal/retry"
	"github.com/riverpatch/uistream/internal/store"
)

// Processor owns a session's offset counter, Action Queue, Event Bus, and
// running task. It is exclusively owned by the Processor Registry;
// Subscription Composers only ever hold a borrowed Event Bus subscriber.
type Processor struct {
	sessionID string
	cfg       config

	queue *queue.ActionQueue
	bus   *bus.EventBus
	log   store.EventLog
	gen   generator.Generator

	validator *patch.Validator
	doc       *patch.Document

	offset       atomic.Int64
	lastAccessed atomic.Int64 // unix nanos

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Processor for sessionID: its offset counter is restored
// from eventLog.GetLatestOffset, and its scratch document is seeded from
// eventLog.GetLastFullEvent so a restarted processor picks up exactly where
// the durable log left off.
func New(sessionID string, eventLog store.EventLog, gen generator.Generator, opts ...Option) (*Processor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	latest, err := eventLog.GetLatestOffset(sessionID)
	if err != nil {
		return nil, err
	}

	html, err := restoreHTML(eventLog, sessionID)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		sessionID: sessionID,
		cfg:       cfg,
		queue:     queue.NewActionQueue(),
		bus:       bus.NewEventBus(cfg.bufferSize),
		log:       eventLog,
		gen:       gen,
		validator: patch.NewValidator(),
		doc:       patch.NewDocument(html),
		done:      make(chan struct{}),
	}
	p.offset.Store(latest)
	p.Touch()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)

	return p, nil
}

func restoreHTML(eventLog store.EventLog, sessionID string) (string, error) {
	row, err := eventLog.GetLastFullEvent(sessionID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}

	var ev model.StreamEvent
	if err := json.Unmarshal(row.Data, &ev); err != nil {
		return "", err
	}
	return ev.HTML, nil
}

// Enqueue offers an action to the Action Queue and touches the processor's
// liveness timestamp. It returns false only if the queue has been closed
// (the processor is shutting down).
func (p *Processor) Enqueue(a model.Action) bool {
	p.Touch()
	return p.queue.Offer(a)
}

// Subscribe returns a new Event Bus subscriber. Callers are expected to be
// a Subscription Composer, which is responsible for pairing this with a
// durable replay.
func (p *Processor) Subscribe() *bus.Subscriber {
	return p.bus.Subscribe()
}

// Unsubscribe detaches a subscriber by id (the Subscription Composer calls
// this when its caller disconnects).
func (p *Processor) Unsubscribe(id uuid.UUID) {
	p.bus.Unsubscribe(id)
}

// Touch bumps the processor's liveness timestamp to now, keeping it alive
// through the Registry's idle-eviction sweep.
func (p *Processor) Touch() {
	p.lastAccessed.Store(time.Now().UnixNano())
}

// LastAccessed returns the wall-clock time of the most recent touch.
func (p *Processor) LastAccessed() time.Time {
	return time.Unix(0, p.lastAccessed.Load())
}

// CurrentOffset returns the offset most recently allocated (not the next
// one), for the admin dashboard.
func (p *Processor) CurrentOffset() int64 {
	return p.offset.Load()
}

// SubscriberCount reports live Event Bus subscribers.
func (p *Processor) SubscriberCount() int {
	return p.bus.SubscriberCount()
}

// Stop cancels the processor's task and releases its queue and bus. The
// durable log is unaffected. Safe to call once; the Registry serializes
// eviction so double-Stop never happens in practice.
func (p *Processor) Stop() {
	p.cancel()
	p.queue.Close()
	<-p.done
	p.bus.Close()
}

var tracer = otel.Tracer("github.com/riverpatch/uistream/internal/processor")

// run is the Processor's single-threaded main loop: take a batch, invoke the
// generator, dual-write each validated event, repeat.
func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	for {
		batch, ok := p.queue.TakeBatch(ctx, p.cfg.maxBatchSize)
		if !ok {
			return
		}

		spanCtx, span := tracer.Start(ctx, "processor.batch", trace.WithAttributes(
			attribute.String("session_id", p.sessionID),
			attribute.Int("batch_size", len(batch)),
		))

		modelID := effectiveModel(batch, p.cfg.defaultModel)
		req := generator.StreamRequest{
			SessionID:   p.sessionID,
			Batch:       batch,
			Model:       modelID,
			CurrentHTML: p.doc.HTML(),
		}

		err := retry.Run(spanCtx, p.gen, p.validator, p.doc, req, p.cfg.maxAttempts, p.emit)
		if err != nil {
			span.RecordError(err)
			p.logBatchFailure(err)
		}
		span.End()
		// A failed batch is logged and the loop moves on to the next one —
		// one misbehaving batch never takes the session's processing down.
	}
}

// emit performs the dual-write for one validated StreamEvent: allocate the
// next offset, publish to the Event Bus, then append to the Event Log, in
// that order.
func (p *Processor) emit(ev model.StreamEvent) error {
	offset := p.offset.Add(1)

	p.bus.Publish(model.NewEventWithOffset(ev, offset))

	if err := p.log.Append(p.sessionID, offset, ev); err != nil {
		p.cfg.logger.Error("STORE_PERSIST_FAILED",
			"session_id", p.sessionID, "offset", offset, "err", err)
		// The offset is never reused; the event stays live-only for any
		// subscriber already attached, but a reconnecting one won't see it.
	}

	return nil
}

func (p *Processor) logBatchFailure(err error) {
	var maxAttempts *model.MaxAttemptsExceeded
	if errors.As(err, &maxAttempts) {
		p.cfg.logger.Warn("MAX_ATTEMPTS_EXCEEDED",
			"session_id", p.sessionID, "attempts", maxAttempts.Attempts, "cause", maxAttempts.Last)
		return
	}
	p.cfg.logger.Error("PROCESSOR_BATCH_FAILED", "session_id", p.sessionID, "err", err)
}

// effectiveModel returns the model field of the most recent action in
// batch that specifies one, else cfg's default.
func effectiveModel(batch []model.Action, defaultModel string) string {
	for i := len(batch) - 1; i >= 0; i-- {
		if batch[i].HasModel() {
			return batch[i].Model
		}
	}
	return defaultModel
}
