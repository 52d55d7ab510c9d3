package worker

import (
	"github.com/okian/scalefilter/pkg/logger"
)

// Option applies a configuration option to an InMemoryWorker. Options given
// to NewPool are applied to every worker in the pool.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithErrorHandler registers a callback for items whose ingest failed.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onError = fn
		}
	}
}
