// Package generator defines the thin contract the Processor and Retry
// Stream consume to invoke the external generator. The generator itself —
// the language-model invocation — lives outside this service; only the
// contract is specified here.
package generator

import (
	"context"
	"io"

	"github.com/riverpatch/uistream/internal/domain/model"
)

// StreamRequest is the input to OpenStream: a session id, the action batch
// to process, an optional model override and tool list, and the current
// HTML the generator is mutating.
type StreamRequest struct {
	SessionID   string
	Batch       []model.Action
	Model       string
	Tools       []string
	CurrentHTML string

	// Corrections accumulates one entry per failed attempt within a single
	// Retry Stream invocation: a structured description of the failure and
	// how many patches were already accepted, so the corrective
	// continuation never re-derives content the subscriber already saw.
	Corrections []string
}

// TokenKind discriminates the records a TokenStream yields.
type TokenKind string

const (
	TokenText       TokenKind = "text"
	TokenToolCall   TokenKind = "tool_call"
	TokenFinishStep TokenKind = "finish_step"
	TokenFinish     TokenKind = "finish"
)

// Usage carries token accounting and timing metadata, accumulated across
// Retry Stream attempts and surfaced as a terminal Stats event.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CacheHitRatio    float64
	TokensPerSecond  float64
}

// Token is one item produced by a TokenStream.
type Token struct {
	Kind TokenKind

	// TokenText
	Text string

	// TokenToolCall — forwarded to the tool adapter, out of scope here.
	ToolName string
	ToolArgs map[string]any

	// TokenFinishStep, TokenFinish
	Usage Usage
}

// TokenStream is a lazy, finite sequence of Tokens. Next returns io.EOF
// once the terminal TokenFinish record has been consumed.
type TokenStream interface {
	Next(ctx context.Context) (Token, error)
	Close() error
}

// ErrStreamClosed is returned by Next after Close has been called, letting
// the Retry Stream interrupt an in-flight generator call on cancellation.
var ErrStreamClosed = io.ErrClosedPipe

// Generator opens a token stream for one Processor batch invocation.
type Generator interface {
	OpenStream(ctx context.Context, req StreamRequest) (TokenStream, error)
}
