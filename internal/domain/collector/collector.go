// Package collector accumulates per-entity scores for the current collection
// cycle and decides when the complete set is committed to the policy store.
//
// A cycle starts empty. Every submission records the entity's latest score.
// When the reported entities equal the expected set, the last commit is older
// than the update threshold and no commit is in flight, Submit returns a
// Commit snapshot for the caller to apply. A cycle whose start is older than
// the score timeout is discarded lazily by the next submission.
package collector

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/pkg/logger"
	"github.com/okian/ahp/pkg/metrics"
)

const (
	defaultUpdateThreshold = 30 * time.Second
	defaultScoreTimeout    = 60 * time.Second
)

// Reasons a complete cycle did not produce a commit.
const (
	suppressedThrottled = "throttled"
	suppressedInFlight  = "in_flight"
)

// Snapshot is a point-in-time view of the collector state.
type Snapshot struct {
	Scores         map[string]int64
	Expected       []string
	LastScoreTime  time.Time
	LastUpdateTime time.Time
	CommitInFlight bool
}

// Collector is the score collection gate. It is safe for concurrent use.
type Collector struct {
	mu             sync.Mutex
	scores         map[string]int64
	lastScoreTime  time.Time
	lastUpdateTime time.Time
	inFlight       string // ID of the commit being applied, empty when idle

	expected        map[string]struct{}
	updateThreshold time.Duration
	scoreTimeout    time.Duration
	now             func() time.Time
	logger          logger.Logger
}

// New creates a collector. The first cycle starts at construction time and
// the first complete cycle is never throttled.
func New(opts ...Option) *Collector {
	c := &Collector{
		scores:          make(map[string]int64),
		expected:        map[string]struct{}{"edge": {}, "fog": {}, "cloud": {}},
		updateThreshold: defaultUpdateThreshold,
		scoreTimeout:    defaultScoreTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("collector")
	}
	c.lastScoreTime = c.now()
	return c
}

// Submit records score for entity. It returns a non-nil Commit when this
// submission completed the cycle and a commit may be applied; the caller must
// report the outcome through CommitDone.
func (c *Collector) Submit(ctx context.Context, entity string, score int64) (*model.Commit, error) {
	if entity == "" {
		return nil, ErrMissingEntity
	}

	c.mu.Lock()
	now := c.now()
	reset := false
	if now.Sub(c.lastScoreTime) > c.scoreTimeout {
		clear(c.scores)
		c.lastScoreTime = now
		reset = true
	}
	c.scores[entity] = score
	_, known := c.expected[entity]
	reported := len(c.scores)

	var (
		commit     *model.Commit
		suppressed string
	)
	if c.completeLocked() {
		switch {
		case c.inFlight != "":
			suppressed = suppressedInFlight
		case !c.lastUpdateTime.IsZero() && now.Sub(c.lastUpdateTime) <= c.updateThreshold:
			suppressed = suppressedThrottled
		default:
			commit = &model.Commit{
				ID:          uuid.NewString(),
				Weights:     model.WeightsFromScores(c.scores),
				TriggeredAt: now,
			}
			c.inFlight = commit.ID
			c.lastUpdateTime = now
		}
	}
	c.mu.Unlock()

	metrics.RecordScoreSubmission(entity)
	metrics.UpdateReportedEntities(reported)
	if reset {
		metrics.RecordCycleReset()
		c.logger.Info(ctx, "stale collection cycle cleared", logger.Duration("scoreTimeout", c.scoreTimeout))
	}
	if !known {
		c.logger.Warn(ctx, "score from unexpected entity", logger.String("entity", entity))
	}
	c.logger.Info(ctx, "score received",
		logger.String("entity", entity),
		logger.Int64("score", score),
		logger.Int("reported", reported),
		logger.Int("expected", len(c.expected)),
	)

	switch {
	case commit != nil:
		metrics.RecordCommitTriggered()
		metrics.UpdateCommitInFlight(true)
		c.logger.Info(ctx, "collection cycle complete, committing weights",
			logger.String("commitID", commit.ID),
			logger.Any("weights", commit.Weights),
		)
	case suppressed != "":
		metrics.RecordCommitSuppressed(suppressed)
		c.logger.Debug(ctx, "collection cycle complete, commit suppressed", logger.String("reason", suppressed))
	}
	return commit, nil
}

// CommitDone reports the outcome of the commit with the given ID. Failures do
// not roll back the cycle; the next complete cycle past the update threshold
// tries again.
func (c *Collector) CommitDone(ctx context.Context, id string, err error) {
	c.mu.Lock()
	matched := c.inFlight == id && id != ""
	if matched {
		c.inFlight = ""
	}
	c.mu.Unlock()

	if !matched {
		c.logger.Warn(ctx, "completion for unknown commit ignored", logger.String("commitID", id))
		return
	}
	metrics.UpdateCommitInFlight(false)
	if err != nil {
		c.logger.Error(ctx, "policy commit failed", logger.String("commitID", id), logger.Error(err))
		return
	}
	c.logger.Info(ctx, "policy commit applied", logger.String("commitID", id))
}

// Read returns a copy of the current score map.
func (c *Collector) Read() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.scores)
}

// Snapshot returns the full collector state.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Scores:         maps.Clone(c.scores),
		Expected:       slices.Sorted(maps.Keys(c.expected)),
		LastScoreTime:  c.lastScoreTime,
		LastUpdateTime: c.lastUpdateTime,
		CommitInFlight: c.inFlight != "",
	}
}

// completeLocked reports whether the reported entities are exactly the
// expected set. c.mu must be held.
func (c *Collector) completeLocked() bool {
	if len(c.scores) != len(c.expected) {
		return false
	}
	for entity := range c.scores {
		if _, ok := c.expected[entity]; !ok {
			return false
		}
	}
	return true
}
