// Package policystore reads and patches the placement policy whose weighted
// replica distribution is driven by collected entity scores.
package policystore

import (
	"context"

	"github.com/okian/ahp/internal/domain/model"
)

// Ref identifies a policy object.
type Ref struct {
	Namespace string
	Name      string
}

func (r Ref) String() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

// Policy is the part of a placement policy this service cares about.
type Policy struct {
	Ref             Ref
	ResourceVersion string
	Weights         []model.Weight
}

// Store is the policy store collaborator.
type Store interface {
	// Get reads the policy. It doubles as the liveness check.
	Get(ctx context.Context, ref Ref) (*Policy, error)
	// PatchWeights replaces the policy's weighted distribution preference.
	PatchWeights(ctx context.Context, ref Ref, weights []model.Weight) error
}
