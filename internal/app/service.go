// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	commitqueue "github.com/okian/ahp/internal/adapters/mq/queue"
	commitworker "github.com/okian/ahp/internal/adapters/mq/worker"
	"github.com/okian/ahp/internal/adapters/policystore"
	"github.com/okian/ahp/internal/domain/collector"
	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/internal/domain/scoring"
	"github.com/okian/ahp/internal/domain/types"
	"github.com/okian/ahp/pkg/logger"
	"github.com/okian/ahp/pkg/metrics"
)

// Service implements the API dependencies for the scoring system.
type Service struct {
	mu sync.RWMutex

	// Core components
	engine        *scoring.Engine
	clusterEngine *scoring.Engine
	collector     *collector.Collector
	store         policystore.Store
	queue         *commitqueue.InMemoryQueue
	pool          *commitworker.Pool
	poolCancel    context.CancelFunc
	checks        singleflight.Group

	// Configuration
	policy          policystore.Ref
	strategyName    string
	ratioCap        float64
	expected        []string
	updateThreshold time.Duration
	scoreTimeout    time.Duration
	queueSize       int
	workerCount     int
	commitTimeout   time.Duration
	checkTimeout    time.Duration
	now             func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration. Without WithStore
// the service commits to an in-memory policy store.
func New(opts ...Option) *Service {
	s := &Service{
		policy:          policystore.Ref{Namespace: "default", Name: "nginx-propagation"},
		strategyName:    scoring.StrategyCapped,
		ratioCap:        scoring.DefaultRatioCap,
		expected:        []string{"edge", "fog", "cloud"},
		updateThreshold: 30 * time.Second,
		scoreTimeout:    60 * time.Second,
		queueSize:       16,
		workerCount:     1,
		commitTimeout:   10 * time.Second,
		checkTimeout:    3 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = policystore.NewMemoryStore(s.policy)
	}
	return s
}

// Start builds the scoring engine and collector, starts the commit workers
// and checks the policy store once. An unreachable store is logged but does
// not fail startup.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	strategy, err := scoring.StrategyByName(s.strategyName, s.ratioCap)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.engine = scoring.NewEngine(scoring.WithStrategy(strategy))
	s.clusterEngine = scoring.NewEngine(scoring.WithStrategy(scoring.RowSum{}))
	s.collector = collector.New(
		collector.WithExpectedEntities(s.expected...),
		collector.WithUpdateThreshold(s.updateThreshold),
		collector.WithScoreTimeout(s.scoreTimeout),
		collector.WithClock(s.now),
	)
	s.queue = commitqueue.NewInMemoryQueue(commitqueue.WithCapacity(s.queueSize))
	s.pool = commitworker.NewPool(s.workerCount, s.queue, s.store, s.collector,
		commitworker.WithPolicy(s.policy),
		commitworker.WithCommitTimeout(s.commitTimeout),
	)
	// Workers outlive the caller's context; Stop drains them before
	// cancelling.
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.poolCancel = cancel
	s.pool.Start(poolCtx)

	if _, err := s.check(ctx); err != nil {
		s.logger.Warn(ctx, "policy store not reachable at startup",
			logger.String("policy", s.policy.String()),
			logger.Error(err),
		)
	} else {
		s.logger.Info(ctx, "policy store reachable", logger.String("policy", s.policy.String()))
	}

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.String("strategy", strategy.Name()),
		logger.Strings("expectedEntities", s.expected),
		logger.Duration("updateThreshold", s.updateThreshold),
		logger.Duration("scoreTimeout", s.scoreTimeout),
		logger.Int("commitWorkers", s.workerCount),
	)
	return nil
}

// Stop closes the commit queue and waits for queued commits to be applied.
// Requests arriving during the drain are refused with ErrNotStarted.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	pool, cancel := s.pool, s.poolCancel
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping scoring service...")
	err := pool.Shutdown(ctx)
	cancel()
	s.logger.Info(ctx, "scoring service stopped")
	return err
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// ScoreDistributions ranks candidate distributions.
func (s *Service) ScoreDistributions(ctx context.Context, candidates []model.Candidate, criteria model.Criteria) ([]model.ScoreResult, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.engine.Score(ctx, candidates, criteria)
}

// ScoreClusters ranks member clusters on raw metrics with the row-sum
// strategy, whatever strategy distributions use.
func (s *Service) ScoreClusters(ctx context.Context, clusters []model.Candidate, criteria model.Criteria) ([]model.ScoreResult, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.clusterEngine.Score(ctx, clusters, criteria)
}

// SubmitScore records an entity score and queues a policy commit when the
// submission completes the cycle. Commit failures never reach the caller.
func (s *Service) SubmitScore(ctx context.Context, entity string, score int64) error {
	if !s.running() {
		return ErrNotStarted
	}
	commit, err := s.collector.Submit(ctx, entity, score)
	if err != nil || commit == nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, *commit); err != nil {
		s.logger.Error(ctx, "failed to queue policy commit",
			logger.String("commitID", commit.ID),
			logger.Error(err),
		)
		_ = metrics.RecordCommitResult(metrics.OutcomeDropped, 0)
		s.collector.CommitDone(ctx, commit.ID, err)
	}
	return nil
}

// ReadScores returns the scores of the current collection cycle.
func (s *Service) ReadScores(_ context.Context) map[string]int64 {
	if !s.running() {
		return map[string]int64{}
	}
	return s.collector.Read()
}

// Health reads the policy store. Concurrent callers share one read.
func (s *Service) Health(ctx context.Context) types.Health {
	if !s.running() {
		return types.Health{Status: types.StatusUnhealthy, Error: ErrNotStarted.Error()}
	}

	_, err, _ := s.checks.Do("policy", func() (any, error) {
		return s.check(context.WithoutCancel(ctx))
	})
	snap := s.collector.Snapshot()
	h := types.Health{
		Status:               types.StatusHealthy,
		PolicyStoreReachable: true,
		LastUpdateTime:       types.UnixSeconds(snap.LastUpdateTime),
		ScoresAge:            s.now().Sub(snap.LastScoreTime).Seconds(),
	}
	if err != nil {
		h.Status = types.StatusUnhealthy
		h.PolicyStoreReachable = false
		h.Error = err.Error()
	}
	return h
}

// check reads the policy with the health check timeout.
func (s *Service) check(ctx context.Context) (*policystore.Policy, error) {
	checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()
	p, err := s.store.Get(checkCtx, s.policy)
	metrics.RecordPolicyStoreCheck(err == nil)
	return p, err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		Started:          s.started,
		Strategy:         s.strategyName,
		ExpectedEntities: s.expected,
		Scores:           map[string]int64{},
		Policy:           s.policy.String(),
	}
	if !s.started {
		return stats
	}
	snap := s.collector.Snapshot()
	stats.Strategy = s.engine.Strategy().Name()
	stats.ExpectedEntities = snap.Expected
	stats.Scores = snap.Scores
	stats.CommitInFlight = snap.CommitInFlight
	stats.CommitQueueLen = s.queue.Len(context.Background())
	stats.LastScoreTime = types.UnixSeconds(snap.LastScoreTime)
	stats.LastUpdateTime = types.UnixSeconds(snap.LastUpdateTime)
	return stats
}
