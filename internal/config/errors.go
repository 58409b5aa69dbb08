package config

import (
	"errors"
)

// Errors returned by Load and Validate. Match them with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")

	// ErrInvalidEntity marks an expected entity that cannot be used as a
	// cluster name in a PropagationPolicy.
	ErrInvalidEntity = errors.New("invalid expected entity")
)
