package jobpool

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultWorkers is the worker count used when WithWorkers is not given.
const DefaultWorkers = 1

// DefaultName labels pools created without WithName.
const DefaultName = "default"

type config struct {
	logger       *slog.Logger
	registerer   prometheus.Registerer
	panicHandler func(*PanicError)
	name         string
	workers      int
}

func defaultConfig() config {
	return config{
		logger:  slog.New(slog.DiscardHandler),
		name:    DefaultName,
		workers: DefaultWorkers,
	}
}

// Option configures a WorkerPool.
type Option func(*config)

// WithWorkers sets the fixed number of workers. Values below one make
// NewWorkerPool fail with ErrNoWorkers.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithPanicHandler registers fn to be called, on the worker goroutine, for
// every job that panics. A panic inside fn is logged and contained.
func WithPanicHandler(fn func(*PanicError)) Option {
	return func(c *config) { c.panicHandler = fn }
}

// WithMetrics registers the pool collectors with r.
func WithMetrics(r prometheus.Registerer) Option {
	return func(c *config) { c.registerer = r }
}
