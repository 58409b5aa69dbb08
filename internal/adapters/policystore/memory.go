package policystore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/ahp/internal/domain/model"
)

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[Ref]*Policy
	version  int
}

// NewMemoryStore creates a store holding the given policies with no weights.
func NewMemoryStore(refs ...Ref) *MemoryStore {
	s := &MemoryStore{policies: make(map[Ref]*Policy, len(refs))}
	for _, ref := range refs {
		s.policies[ref] = &Policy{Ref: ref, ResourceVersion: "0"}
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, ref Ref) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[ref]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", ref, ErrNotFound)
	}
	out := *p
	out.Weights = slices.Clone(p.Weights)
	return &out, nil
}

// PatchWeights implements Store. Negative weights are rejected.
func (s *MemoryStore) PatchWeights(ctx context.Context, ref Ref, weights []model.Weight) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("patch %s: %w: %w", ref, ErrUnavailable, err)
	}
	for _, w := range weights {
		if w.Weight < 0 {
			return fmt.Errorf("patch %s: %w: negative weight for %q", ref, ErrRejected, w.Entity)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[ref]
	if !ok {
		return fmt.Errorf("patch %s: %w", ref, ErrNotFound)
	}
	s.version++
	p.Weights = slices.Clone(weights)
	p.ResourceVersion = fmt.Sprint(s.version)
	return nil
}
