// Package telemetry wires the OpenTelemetry SDK's TracerProvider and the
// otelslog bridge that lets the same slog.Logger every package already
// depends on also emit OTel log records. Tracing spans cover Processor
// batches and Composer attaches; this package follows the SDK's own
// documented setup sequence (NewTracerProvider, otel.SetTracerProvider,
// defer Shutdown).
package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewTracerProvider builds a TracerProvider with the SDK's default
// sampler and no exporter wired (there is no tracing backend in scope for
// this repository), registers it as the process-wide provider via
// otel.SetTracerProvider, and returns it so the caller can Shutdown it on
// exit.
func NewTracerProvider() *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp
}

// NewLogger returns a slog.Logger that fans every record out to both a
// JSON handler on stdout (what an operator tails) and the otelslog bridge
// handler (what a future log-ingestion backend would consume), so neither
// consumer of log/slog loses records.
func NewLogger(serviceName string, level slog.Level) *slog.Logger {
	stdout := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	bridge := otelslog.NewHandler(serviceName)
	return slog.New(&fanOutHandler{handlers: []slog.Handler{stdout, bridge}})
}

// fanOutHandler implements slog.Handler by forwarding every call to each
// wrapped handler in turn.
type fanOutHandler struct {
	handlers []slog.Handler
}

func (f *fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanOutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanOutHandler{handlers: next}
}

func (f *fanOutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanOutHandler{handlers: next}
}
