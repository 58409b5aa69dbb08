// Package queue hands policy commits from the request path to the commit
// workers.
//
// The queue is a bounded buffered channel. Enqueue never blocks: a full or
// closed queue is reported to the caller so the collector can be told the
// commit did not happen.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/pkg/metrics"
)

const defaultQueueCapacity = 16

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a commit. It returns ErrFull or ErrClosed when the commit
	// was not queued.
	Enqueue(ctx context.Context, c model.Commit) error

	// Dequeue returns the channel workers read from. It is closed by Close
	// once drained.
	Dequeue(ctx context.Context) <-chan model.Commit

	// Len returns the current number of queued commits.
	Len(ctx context.Context) int

	// Close stops accepting commits.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	commits  chan model.Commit
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.commits = make(chan model.Commit, q.capacity)

	metrics.UpdateCommitQueueCapacity(q.capacity)
	metrics.UpdateCommitQueueSize(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c model.Commit) error { //nolint:gocritic // hugeParam: commits travel by value over the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordCommitEnqueueError("closed")
		return ErrClosed
	}

	select {
	case q.commits <- c:
		metrics.UpdateCommitQueueSize(len(q.commits))
		return nil
	case <-ctx.Done():
		metrics.RecordCommitEnqueueError("context_cancelled")
		return fmt.Errorf("enqueue commit %s: %w", c.ID, ctx.Err())
	default:
		metrics.RecordCommitEnqueueError("full")
		return ErrFull
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan model.Commit {
	return q.commits
}

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.commits)
	metrics.UpdateCommitQueueSize(size)
	return size
}

// Close implements Queue. Queued commits remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.commits)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
