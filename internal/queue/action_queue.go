// Package queue implements the per-session Action Queue: a FIFO of pending
// user actions awaiting a Processor batch. TakeBatch blocks for the first
// item, then drains whatever else is already buffered in a tight loop
// instead of returning to select on every single action, so a burst of
// actions coalesces into one generator invocation.
package queue

import (
	"context"
	"sync"

	"github.com/riverpatch/uistream/internal/domain/model"
)

// ActionQueue is a FIFO of model.Action with effectively unbounded capacity;
// backpressure is handled upstream by rate-limiting ingress, not here.
type ActionQueue struct {
	ch        chan model.Action
	closeOnce sync.Once
}

// defaultCapacity is generous enough that a full queue only happens under a
// misbehaving ingress adapter; Offer still reports failure rather than
// blocking the caller in that case.
const defaultCapacity = 4096

func NewActionQueue() *ActionQueue {
	return &ActionQueue{ch: make(chan model.Action, defaultCapacity)}
}

// Offer enqueues an action without blocking. It returns false if the queue
// is closed or (pathologically) full.
func (q *ActionQueue) Offer(a model.Action) (ok bool) {
	// A send on the closed channel panics; report it as a refused offer.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case q.ch <- a:
		return true
	default:
		return false
	}
}

// TakeBatch blocks until at least one action is available, then drains
// already-buffered actions until the batch holds max, returning all of them
// in enqueue order. It returns ok=false if the queue was closed before any action
// arrived, or if ctx is done first.
func (q *ActionQueue) TakeBatch(ctx context.Context, max int) (batch []model.Action, ok bool) {
	if max < 1 {
		max = 1
	}

	select {
	case a, open := <-q.ch:
		if !open {
			return nil, false
		}
		batch = make([]model.Action, 0, max)
		batch = append(batch, a)
	case <-ctx.Done():
		return nil, false
	}

drain:
	for len(batch) < max {
		select {
		case next, open := <-q.ch:
			if !open {
				break drain
			}
			batch = append(batch, next)
		default:
			break drain
		}
	}

	return batch, true
}

// Close stops the queue; pending and future TakeBatch callers observe
// end-of-stream. Idempotent.
func (q *ActionQueue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}
