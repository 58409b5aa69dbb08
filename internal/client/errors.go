package client

import (
	"errors"
	"fmt"
)

// Error constants.
var (
	ErrStatus          = errors.New("unexpected response status")
	ErrNoDistributions = errors.New("no distributions to evaluate")
	ErrBaseURL         = errors.New("invalid base url")
)

// APIError is a non-2xx response decoded from the service error body.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap lets callers match any APIError with errors.Is(err, ErrStatus).
func (e *APIError) Unwrap() error { return ErrStatus }
