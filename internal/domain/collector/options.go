package collector

import (
	"time"

	"github.com/okian/ahp/pkg/logger"
)

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithExpectedEntities sets the entities that must report before a commit.
// Empty names are ignored.
func WithExpectedEntities(entities ...string) Option {
	return func(c *Collector) {
		expected := make(map[string]struct{}, len(entities))
		for _, e := range entities {
			if e != "" {
				expected[e] = struct{}{}
			}
		}
		if len(expected) > 0 {
			c.expected = expected
		}
	}
}

// WithUpdateThreshold sets the minimum interval between commits.
func WithUpdateThreshold(d time.Duration) Option {
	return func(c *Collector) {
		if d >= 0 {
			c.updateThreshold = d
		}
	}
}

// WithScoreTimeout sets the staleness window of a collection cycle.
func WithScoreTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.scoreTimeout = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger for the collector.
func WithLogger(l logger.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}
