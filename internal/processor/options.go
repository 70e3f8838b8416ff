package processor

import "log/slog"

// Option configures a Processor at construction time.
type Option func(*config)

type config struct {
	maxBatchSize int
	maxAttempts  int
	defaultModel string
	bufferSize   int
	logger       *slog.Logger
}

func defaultConfig() config {
	return config{
		maxBatchSize: 16,
		maxAttempts:  3,
		defaultModel: "default",
		bufferSize:   256,
		logger:       slog.Default(),
	}
}

// WithMaxBatchSize sets MAX_BATCH_SIZE, the action-coalescing ceiling.
func WithMaxBatchSize(n int) Option {
	return func(c *config) { c.maxBatchSize = n }
}

// WithMaxAttempts sets MAX_ATTEMPTS for the Retry Stream.
func WithMaxAttempts(n int) Option {
	return func(c *config) { c.maxAttempts = n }
}

// WithDefaultModel sets the model id used when no action in a batch pins
// one.
func WithDefaultModel(model string) Option {
	return func(c *config) { c.defaultModel = model }
}

// WithSubscriberBuffer sets SUBSCRIBER_BUFFER, the Event Bus's per-
// subscriber channel capacity.
func WithSubscriberBuffer(n int) Option {
	return func(c *config) { c.bufferSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}
