// Package registry implements the Processor Registry: a process-local,
// in-memory map of live sessionID -> *processor.Processor, with idle
// eviction on a janitor interval.
package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riverpatch/uistream/internal/generator"
	"github.com/riverpatch/uistream/internal/processor"
	"github.com/riverpatch/uistream/internal/store"
)

// Registry is the process-wide getOrCreate authority for Processors.
// Exactly one Registry exists per process; it owns the Event Log and
// Generator handed to every Processor it creates.
type Registry struct {
	cfg config

	log store.EventLog
	gen generator.Generator

	mu         sync.Mutex // serializes getOrCreate's load-or-construct decision
	processors map[string]*processor.Processor

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Registry and starts its background janitor.
func New(eventLog store.EventLog, gen generator.Generator, opts ...Option) *Registry {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Registry{
		cfg:        cfg,
		log:        eventLog,
		gen:        gen,
		processors: make(map[string]*processor.Processor),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	go r.runJanitor()
	return r
}

// GetOrCreate returns the live Processor for sessionID, constructing one
// (restoring its offset and scratch document from the Event Log) if none
// exists yet. Concurrent callers for the same sessionID never race: at most
// one Processor per sessionID exists at any time, enforced here by a single
// mutex guarding the map's load-or-construct decision, since Processor
// construction spawns a goroutine and restores state from the durable log —
// work we don't want to do twice and throw away. An existing Processor is
// touched before it's returned, under the same lock the eviction sweep
// uses, so a processor handed back to a caller can never be reaped by a
// sweep that raced the lookup.
func (r *Registry) GetOrCreate(sessionID string) (*processor.Processor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.processors[sessionID]; ok {
		p.Touch()
		return p, nil
	}

	p, err := processor.New(sessionID, r.log, r.gen, r.cfg.processorOptions...)
	if err != nil {
		return nil, err
	}
	r.processors[sessionID] = p
	return p, nil
}

// Touch refreshes sessionID's Processor liveness timestamp, if one is
// currently live. It never fails: an absent or already-evicted session is
// simply a no-op, since the next GetOrCreate will reconstruct it anyway.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.processors[sessionID]; ok {
		p.Touch()
	}
}

// Lookup returns the live Processor for sessionID without creating one.
func (r *Registry) Lookup(sessionID string) (*processor.Processor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.processors[sessionID]
	return p, ok
}

// Stats is a point-in-time snapshot of one session's Processor, consumed by
// the admin dashboard.
type Stats struct {
	SessionID    string
	Offset       int64
	Subscribers  int
	LastAccessed time.Time
}

// Snapshot returns Stats for every live Processor, for the admin dashboard.
func (r *Registry) Snapshot() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Stats, 0, len(r.processors))
	for sessionID, p := range r.processors {
		out = append(out, Stats{
			SessionID:    sessionID,
			Offset:       p.CurrentOffset(),
			Subscribers:  p.SubscriberCount(),
			LastAccessed: p.LastAccessed(),
		})
	}
	return out
}

func (r *Registry) runJanitor() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.performEviction(context.Background())
		}
	}
}

// performEviction reaps every Processor that has no live subscribers and
// has been idle longer than the configured idle TTL. Candidates are stopped
// concurrently since Processor.Stop blocks on its run loop draining.
func (r *Registry) performEviction(ctx context.Context) {
	r.mu.Lock()
	var idle []*processor.Processor
	for sessionID, p := range r.processors {
		if p.SubscriberCount() == 0 && time.Since(p.LastAccessed()) > r.cfg.idleTTL {
			idle = append(idle, p)
			delete(r.processors, sessionID)
		}
	}
	r.mu.Unlock()

	if len(idle) == 0 {
		return
	}

	g, _ := errgroup.WithContext(ctx)
	for _, p := range idle {
		p := p
		g.Go(func() error {
			p.Stop()
			return nil
		})
	}
	_ = g.Wait()

	r.cfg.logger.Info("REGISTRY_EVICTION", "reaped", len(idle))
}

// Shutdown stops the janitor and every live Processor.
func (r *Registry) Shutdown() {
	close(r.stopCh)
	<-r.doneCh

	r.mu.Lock()
	processors := make([]*processor.Processor, 0, len(r.processors))
	for sessionID, p := range r.processors {
		processors = append(processors, p)
		delete(r.processors, sessionID)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range processors {
		wg.Add(1)
		go func(p *processor.Processor) {
			defer wg.Done()
			p.Stop()
		}(p)
	}
	wg.Wait()
}
