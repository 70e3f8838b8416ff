package model

import (
	"encoding/json"
	"sync"
)

// StreamEventKind discriminates the variants of StreamEvent.
type StreamEventKind string

const (
	EventKindSession  StreamEventKind = "session"
	EventKindPatches  StreamEventKind = "patches"
	EventKindFull     StreamEventKind = "full"
	EventKindStats    StreamEventKind = "stats"
	EventKindDone     StreamEventKind = "done"
)

// StreamEvent is one record produced by the generator (after validation by
// the retry stream) and broadcast to every subscriber of a session.
type StreamEvent struct {
	Kind StreamEventKind

	// Session
	SessionID string

	// Patches
	Patches []Patch

	// Full, Done
	HTML string

	// Stats
	CacheRate       float64
	TokensPerSecond float64
	Mode            string
	PatchCount      int
}

func NewSessionEvent(sessionID string) StreamEvent {
	return StreamEvent{Kind: EventKindSession, SessionID: sessionID}
}

func NewPatchesEvent(patches []Patch) StreamEvent {
	return StreamEvent{Kind: EventKindPatches, Patches: patches}
}

func NewFullEvent(html string) StreamEvent {
	return StreamEvent{Kind: EventKindFull, HTML: html}
}

func NewStatsEvent(cacheRate, tokensPerSecond float64, mode string, patchCount int) StreamEvent {
	return StreamEvent{
		Kind:            EventKindStats,
		CacheRate:       cacheRate,
		TokensPerSecond: tokensPerSecond,
		Mode:            mode,
		PatchCount:      patchCount,
	}
}

func NewDoneEvent(html string) StreamEvent {
	return StreamEvent{Kind: EventKindDone, HTML: html}
}

// Eventer is the interface every transport marshaller consumes. A
// wire-format payload is computed at most once per EventWithOffset no
// matter how many subscribers (SSE, WS, LP) ultimately receive the same
// offset.
type Eventer interface {
	GetEvent() StreamEvent
	GetOffset() int64
	GetCached() any
	SetCached(v any)
}

// EventWithOffset pairs a StreamEvent with its per-session offset. A single
// instance is shared by the Event Bus across every live subscriber of a
// session, and by the Event Log replay path after being reconstructed from
// a LogRow.
type EventWithOffset struct {
	event  StreamEvent
	offset int64

	mu     sync.Mutex
	cached any
}

var _ Eventer = (*EventWithOffset)(nil)

func NewEventWithOffset(ev StreamEvent, offset int64) *EventWithOffset {
	return &EventWithOffset{event: ev, offset: offset}
}

func (e *EventWithOffset) GetEvent() StreamEvent { return e.event }
func (e *EventWithOffset) GetOffset() int64      { return e.offset }

func (e *EventWithOffset) GetCached() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cached
}

func (e *EventWithOffset) SetCached(v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cached = v
}

// DecodeStreamEvent unmarshals the JSON envelope a LogRow carries back into
// a StreamEvent, used by the Subscription Composer's durable replay path.
func DecodeStreamEvent(data []byte) (StreamEvent, error) {
	var ev StreamEvent
	err := json.Unmarshal(data, &ev)
	return ev, err
}
