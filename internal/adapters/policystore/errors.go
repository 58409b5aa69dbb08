package policystore

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/okian/ahp/pkg/metrics"
)

// Sentinel error kinds for this package.
var (
	ErrNotFound    = errors.New("policy not found")
	ErrRejected    = errors.New("policy update rejected")
	ErrUnavailable = errors.New("policy store unavailable")
)

// classify wraps an API server error with the matching sentinel.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err), apierrors.IsConflict(err):
		return fmt.Errorf("%s: %w: %w", op, ErrRejected, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}

// Outcome maps a commit error to its metrics outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrRejected):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
