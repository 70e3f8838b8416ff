package generator

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/riverpatch/uistream/internal/domain/model"
)

// BreakerGenerator wraps a Generator with a circuit breaker so a
// persistently failing backend fails fast instead of piling up blocked
// Processor batches; tripping counts every open-circuit rejection as a
// GeneratorTransportError, which the Retry Stream treats as recoverable
// toward MAX_ATTEMPTS exactly like a plain transport failure.
type BreakerGenerator struct {
	next Generator
	cb   *gobreaker.CircuitBreaker[TokenStream]
}

// NewBreakerGenerator builds a breaker-wrapped Generator. name identifies
// the breaker in logs/metrics (e.g. the model id).
func NewBreakerGenerator(next Generator, name string) *BreakerGenerator {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     0, // defaults to 60s half-open retry window
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerGenerator{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[TokenStream](settings),
	}
}

func (g *BreakerGenerator) OpenStream(ctx context.Context, req StreamRequest) (TokenStream, error) {
	stream, err := g.cb.Execute(func() (TokenStream, error) {
		return g.next.OpenStream(ctx, req)
	})
	if err != nil {
		return nil, &model.GeneratorTransportError{Cause: err}
	}
	return stream, nil
}
