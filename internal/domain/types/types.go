// Package types contains read models shared by the service and the HTTP layer.
package types

import "time"

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the result of a liveness check against the policy store.
type Health struct {
	Status               string  `json:"status"`
	PolicyStoreReachable bool    `json:"policy_store_reachable"`
	LastUpdateTime       float64 `json:"last_update_time"` // unix seconds, 0 before the first commit
	ScoresAge            float64 `json:"scores_age"`       // seconds since the current cycle started
	Error                string  `json:"error,omitempty"`
}

// Healthy reports whether the check succeeded.
func (h Health) Healthy() bool { return h.Status == StatusHealthy }

// UnixSeconds converts t to fractional unix seconds, mapping the zero time
// to 0.
func UnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

// Stats is a snapshot of the service state for operators.
type Stats struct {
	Started          bool             `json:"started"`
	Strategy         string           `json:"strategy"`
	ExpectedEntities []string         `json:"expected_entities"`
	Scores           map[string]int64 `json:"scores"`
	CommitInFlight   bool             `json:"commit_in_flight"`
	CommitQueueLen   int              `json:"commit_queue_length"`
	LastScoreTime    float64          `json:"last_score_time"`
	LastUpdateTime   float64          `json:"last_update_time"`
	Policy           string           `json:"policy"`
}
