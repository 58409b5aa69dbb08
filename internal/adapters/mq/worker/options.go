package worker

import (
	"time"

	"github.com/okian/ahp/internal/adapters/policystore"
	"github.com/okian/ahp/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
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

// WithPolicy sets the policy that commits are applied to.
func WithPolicy(ref policystore.Ref) Option {
	return func(w *InMemoryWorker) {
		if ref.Name != "" {
			w.policy = ref
		}
	}
}

// WithCommitTimeout bounds a single policy patch.
func WithCommitTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}
