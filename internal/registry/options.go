package registry

import (
	"log/slog"
	"time"

	"github.com/riverpatch/uistream/internal/processor"
)

// Option configures a Registry at construction time.
type Option func(*config)

type config struct {
	sweepInterval    time.Duration
	idleTTL          time.Duration
	processorOptions []processor.Option
	logger           *slog.Logger
}

func defaultConfig() config {
	return config{
		sweepInterval: time.Minute,
		idleTTL:       5 * time.Minute,
		logger:        slog.Default(),
	}
}

// WithSweepInterval sets SWEEP_INTERVAL, how often the janitor scans for
// idle processors.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}

// WithIdleTTL sets IDLE_TTL, the inactivity window after which a processor
// with no live subscribers becomes eligible for eviction.
func WithIdleTTL(d time.Duration) Option {
	return func(c *config) { c.idleTTL = d }
}

// WithProcessorOptions passes through options to every Processor the
// Registry constructs.
func WithProcessorOptions(opts ...processor.Option) Option {
	return func(c *config) { c.processorOptions = opts }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}
