// Package client is a typed HTTP client for the scorer API, used by the
// operator CLI and by scheduler-side callers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/internal/domain/types"
	"github.com/okian/ahp/pkg/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	requestIDHeader  = "X-Request-ID"
	maxResponseBytes = 1 << 20
)

// Distribution is one candidate sent for evaluation.
type Distribution struct {
	ID      string             `json:"id"`
	Metrics map[string]float64 `json:"metrics"`
}

// Criterion weighs one metric. HigherIsBetter is always sent explicitly.
type Criterion struct {
	Weight         float64 `json:"weight"`
	HigherIsBetter bool    `json:"higher_is_better"`
}

type evaluateRequest struct {
	Distributions []Distribution       `json:"distributions"`
	Criteria      map[string]Criterion `json:"criteria"`
}

type evaluateResponse struct {
	Scores []model.ScoreResult `json:"scores"`
}

// Cluster is one member cluster sent for ranking on raw metrics.
type Cluster struct {
	Name    string             `json:"name"`
	Metrics map[string]float64 `json:"metrics"`
}

// ClusterScore is the score of one member cluster.
type ClusterScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type clusterRequest struct {
	Clusters []Cluster            `json:"clusters"`
	Criteria map[string]Criterion `json:"criteria"`
}

type clusterResponse struct {
	Scores []ClusterScore `json:"scores"`
}

type scoreSubmission struct {
	Entity string `json:"entity"`
	Score  int64  `json:"score"`
}

// Client talks to one scorer instance.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// New creates a client for baseURL, e.g. "http://localhost:6000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, baseURL)
	}
	c := &Client{baseURL: u.String(), timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("client")
	}
	return c, nil
}

// EvaluateDistributions scores distributions. Results follow input order.
func (c *Client) EvaluateDistributions(ctx context.Context, distributions []Distribution, criteria map[string]Criterion) ([]model.ScoreResult, error) {
	if distributions == nil {
		distributions = []Distribution{}
	}
	if criteria == nil {
		criteria = map[string]Criterion{}
	}
	var resp evaluateResponse
	if err := c.do(ctx, http.MethodPost, "/distribution_score", evaluateRequest{Distributions: distributions, Criteria: criteria}, &resp); err != nil {
		return nil, fmt.Errorf("evaluate distributions: %w", err)
	}
	return resp.Scores, nil
}

// EvaluateClusters ranks member clusters. Results follow input order.
func (c *Client) EvaluateClusters(ctx context.Context, clusters []Cluster, criteria map[string]Criterion) ([]ClusterScore, error) {
	if clusters == nil {
		clusters = []Cluster{}
	}
	if criteria == nil {
		criteria = map[string]Criterion{}
	}
	var resp clusterResponse
	if err := c.do(ctx, http.MethodPost, "/cluster_score", clusterRequest{Clusters: clusters, Criteria: criteria}, &resp); err != nil {
		return nil, fmt.Errorf("evaluate clusters: %w", err)
	}
	return resp.Scores, nil
}

// BestDistribution evaluates distributions and returns the highest scoring
// one. The first of several equal scores wins.
func (c *Client) BestDistribution(ctx context.Context, distributions []Distribution, criteria map[string]Criterion) (model.ScoreResult, error) {
	if len(distributions) == 0 {
		return model.ScoreResult{}, ErrNoDistributions
	}
	scores, err := c.EvaluateDistributions(ctx, distributions, criteria)
	if err != nil {
		return model.ScoreResult{}, err
	}
	return Best(scores)
}

// Best picks the highest score, keeping the earliest on ties.
func Best(scores []model.ScoreResult) (model.ScoreResult, error) {
	if len(scores) == 0 {
		return model.ScoreResult{}, ErrNoDistributions
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best, nil
}

// SubmitScore reports one entity score.
func (c *Client) SubmitScore(ctx context.Context, entity string, score int64) error {
	if err := c.do(ctx, http.MethodPost, "/score", scoreSubmission{Entity: entity, Score: score}, nil); err != nil {
		return fmt.Errorf("submit score for %s: %w", entity, err)
	}
	return nil
}

// ReadScores returns the scores of the current collection cycle.
func (c *Client) ReadScores(ctx context.Context) (map[string]int64, error) {
	scores := map[string]int64{}
	if err := c.do(ctx, http.MethodGet, "/scores", nil, &scores); err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}
	return scores, nil
}

// Health returns the service health. An unhealthy service is reported in
// the returned value, not as an error.
func (c *Client) Health(ctx context.Context) (types.Health, error) {
	var h types.Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && h.Status != "" {
		return h, nil
	}
	if err != nil {
		return types.Health{}, fmt.Errorf("health: %w", err)
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug(ctx, "api call",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.String("requestId", requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		// Health reports its body on 503 too.
		if out != nil && resp.StatusCode == http.StatusServiceUnavailable {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
