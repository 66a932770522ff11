package escalation

import "go.uber.org/zap"

const (
	defaultBatchSize = 200
	defaultWorkers   = 4
)

// Options holds configuration options for the [Scheduler].
type Options struct {
	BatchSize int
	Workers   int
	Logger    *zap.Logger
}

// Option is a function that configures [Options].
type Option func(*Options)

// WithBatchSize sets how many issues are fetched per page.
func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.BatchSize = n
	}
}

// WithWorkers sets how many issues of a page are classified concurrently.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithLogger sets the logger for the [Scheduler].
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
