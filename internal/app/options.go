package service

import (
	"time"

	"github.com/okian/ahp/internal/adapters/policystore"
	"github.com/okian/ahp/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the policy store commits are applied to.
func WithStore(store policystore.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPolicy sets the policy object patched by commits and read by health checks.
func WithPolicy(ref policystore.Ref) Option {
	return func(s *Service) {
		if ref.Name != "" {
			s.policy = ref
		}
	}
}

// WithStrategy selects the pairwise weighting strategy by name.
func WithStrategy(name string, ratioCap float64) Option {
	return func(s *Service) {
		s.strategyName = name
		s.ratioCap = ratioCap
	}
}

// WithExpectedEntities sets the entities the gate waits for.
func WithExpectedEntities(entities []string) Option {
	return func(s *Service) {
		if len(entities) > 0 {
			s.expected = entities
		}
	}
}

// WithUpdateThreshold sets the minimum interval between policy commits.
func WithUpdateThreshold(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.updateThreshold = d
		}
	}
}

// WithScoreTimeout sets the staleness window of a collection cycle.
func WithScoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.scoreTimeout = d
		}
	}
}

// WithCommitQueueSize sets the capacity of the commit queue.
func WithCommitQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCommitWorkers sets the number of commit workers.
func WithCommitWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithCommitTimeout bounds a single policy patch.
func WithCommitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.commitTimeout = d
		}
	}
}

// WithHealthCheckTimeout bounds the policy store read behind Health.
func WithHealthCheckTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.checkTimeout = d
		}
	}
}

// WithClock replaces time.Now for the collector and health ages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
