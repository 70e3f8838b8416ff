package generator

import (
	"context"
	"io"
	"sync"
)

// ScriptedStream is a TokenStream that replays a fixed sequence of text
// chunks, then a finish-step carrying usage, then terminates with
// TokenFinish/io.EOF. It exists purely for tests exercising the Processor
// and Retry Stream without a real generator backend.
type ScriptedStream struct {
	mu     sync.Mutex
	chunks []string
	usage  Usage
	idx    int
	closed bool
}

func NewScriptedStream(chunks []string, usage Usage) *ScriptedStream {
	return &ScriptedStream{chunks: chunks, usage: usage}
}

func (s *ScriptedStream) Next(ctx context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Token{}, ErrStreamClosed
	}

	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	default:
	}

	switch {
	case s.idx < len(s.chunks):
		t := Token{Kind: TokenText, Text: s.chunks[s.idx]}
		s.idx++
		return t, nil
	case s.idx == len(s.chunks):
		s.idx++
		return Token{Kind: TokenFinishStep, Usage: s.usage}, nil
	default:
		return Token{Kind: TokenFinish}, io.EOF
	}
}

func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// MockGenerator replays one scripted TokenStream per OpenStream call,
// consumed in the order they were queued via Script. Every invocation is
// recorded so tests can assert batch coalescing (spec.md S2) and effective
// model selection.
type MockGenerator struct {
	mu       sync.Mutex
	scripts  map[string][][]string
	requests []StreamRequest
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{scripts: make(map[string][][]string)}
}

// Script enqueues the text chunks a future OpenStream(sessionID, ...) call
// should replay, one queued script per call.
func (g *MockGenerator) Script(sessionID string, chunks ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[sessionID] = append(g.scripts[sessionID], chunks)
}

func (g *MockGenerator) OpenStream(ctx context.Context, req StreamRequest) (TokenStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, req)

	queue := g.scripts[req.SessionID]
	if len(queue) == 0 {
		return NewScriptedStream(nil, Usage{}), nil
	}
	chunks := queue[0]
	g.scripts[req.SessionID] = queue[1:]
	return NewScriptedStream(chunks, Usage{TokensPerSecond: 42, CacheHitRatio: 0.5}), nil
}

// Requests returns every StreamRequest OpenStream has received, in call
// order.
func (g *MockGenerator) Requests() []StreamRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]StreamRequest, len(g.requests))
	copy(out, g.requests)
	return out
}
