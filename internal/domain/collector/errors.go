package collector

import "errors"

// Sentinel error kinds for this package.
var (
	ErrMissingEntity = errors.New("missing entity")
)
