// Package worker applies queued policy commits outside the collector lock.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/ahp/internal/adapters/policystore"
	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/pkg/logger"
	"github.com/okian/ahp/pkg/metrics"
)

const (
	defaultCommitTimeout = 10 * time.Second
	poolShutdownTimeout  = 30 * time.Second
)

// ErrEmptyCommit is reported for commits without weights. They are never
// sent to the policy store.
var ErrEmptyCommit = errors.New("empty commit")

// Publisher writes weights to the policy store.
type Publisher interface {
	PatchWeights(ctx context.Context, ref policystore.Ref, weights []model.Weight) error
}

// Completer is told how each commit ended.
type Completer interface {
	CommitDone(ctx context.Context, id string, err error)
}

// Queue defines how workers receive commits.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Commit
}

// Worker applies commits.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the commit it is applying.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	publisher Publisher
	completer Completer
	name      string
	policy    policystore.Ref
	timeout   time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, publisher Publisher, completer Completer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		publisher: publisher,
		completer: completer,
		name:      "worker",
		policy:    policystore.Ref{Namespace: "default", Name: "nginx-propagation"},
		timeout:   defaultCommitTimeout,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	commits := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case c, ok := <-commits:
			if !ok {
				return
			}
			w.processCommit(ctx, c)
		}
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

// processCommit patches the policy and reports the outcome. Failures are not
// retried.
func (w *InMemoryWorker) processCommit(ctx context.Context, c model.Commit) { //nolint:gocritic // hugeParam: commits travel by value over the channel
	if len(c.Weights) == 0 {
		w.logger.Warn(ctx, "skipping commit without weights", logger.String("commitID", c.ID))
		_ = metrics.RecordCommitResult(metrics.OutcomeDropped, 0)
		w.completer.CommitDone(ctx, c.ID, ErrEmptyCommit)
		return
	}

	patchCtx, cancel := context.WithTimeout(ctx, w.timeout)
	start := time.Now()
	err := w.publisher.PatchWeights(patchCtx, w.policy, c.Weights)
	latency := time.Since(start)
	cancel()

	_ = metrics.RecordCommitResult(policystore.Outcome(err), float64(latency.Microseconds())/1e3)

	fields := []logger.Field{
		logger.String("commitID", c.ID),
		logger.String("policy", w.policy.String()),
		logger.Duration("latency", latency),
	}
	switch {
	case err == nil:
		w.logger.Info(ctx, "policy weights updated", append(fields, logger.Any("weights", c.Weights))...)
	case errors.Is(err, policystore.ErrNotFound):
		metrics.RecordErrorByComponent("worker", "policy_not_found")
		w.logger.Error(ctx, "policy not found", append(fields, logger.Error(err))...)
	case errors.Is(err, policystore.ErrRejected):
		metrics.RecordErrorByComponent("worker", "policy_rejected")
		w.logger.Error(ctx, "policy update rejected", append(fields, logger.Error(err))...)
	default:
		metrics.RecordErrorByComponent("worker", "policy_store_error")
		w.logger.Error(ctx, "policy update failed", append(fields, logger.Error(err))...)
	}
	w.completer.CommitDone(ctx, c.ID, err)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	started bool
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers sharing opts. A count below
// one yields a single worker.
func NewPool(workerCount int, queue Queue, publisher Publisher, completer Completer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		workerOpts := append([]Option{WithName("commit-worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, publisher, completer, workerOpts...)
	}
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and lets the workers drain it. Workers still busy
// when ctx or the pool timeout expires are told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			w.stop()
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
