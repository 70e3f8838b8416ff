// Package bus implements the per-session Event Bus: an in-memory,
// multi-subscriber broadcast of EventWithOffset with bounded per-subscriber
// buffers. Its backpressure policy is to drop the slow subscriber rather
// than block the publisher, favoring a bounded delivery window over
// stalling the whole processing loop on one stuck consumer.
package bus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/riverpatch/uistream/internal/domain/model"
)

// Subscriber is an independent consumer endpoint returned by Subscribe.
// Only the owning consumer goroutine reads from Events(); the bus only ever
// writes to it.
type Subscriber struct {
	id uuid.UUID
	ch chan *model.EventWithOffset

	closeOnce sync.Once
}

func (s *Subscriber) ID() uuid.UUID { return s.id }

// Events yields every event published after Subscribe returned, in publish
// order. The channel is closed when the subscriber is dropped for
// overflowing its buffer, or when the bus itself is closed (Processor
// eviction) — both are "end of stream" from the consumer's point of view.
func (s *Subscriber) Events() <-chan *model.EventWithOffset { return s.ch }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// EventBus is the per-session broadcast primitive. It is created alongside
// a Processor and closed when the Processor is evicted.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[uuid.UUID]*Subscriber
	bufferSize int
	closed     bool
}

func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &EventBus{
		subs:       make(map[uuid.UUID]*Subscriber),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a new consumer endpoint. If the bus is already closed,
// the returned Subscriber's channel is pre-closed so the caller observes
// end-of-stream immediately rather than blocking forever.
func (b *EventBus) Subscribe() *Subscriber {
	sub := &Subscriber{id: uuid.New(), ch: make(chan *model.EventWithOffset, b.bufferSize)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub
}

// Unsubscribe detaches a consumer, e.g. when its Subscription Composer call
// returns (client disconnected, transport closed).
func (b *EventBus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish delivers ev to every current subscriber. A subscriber whose
// buffer is full is dropped instead of stalling publication for everyone
// else — the publisher never blocks beyond a single non-blocking channel
// send per subscriber.
func (b *EventBus) Publish(ev *model.EventWithOffset) {
	b.mu.RLock()
	var overflowed []uuid.UUID
	for id, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			overflowed = append(overflowed, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range overflowed {
		b.Unsubscribe(id)
	}
}

// Close shuts the bus down: every live subscriber observes end-of-stream,
// and any later Subscribe call also gets a pre-closed channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
}

// SubscriberCount reports the number of live subscribers, used by the
// admin dashboard's RegistryStats snapshot.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
