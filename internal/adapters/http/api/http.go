// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/internal/domain/types"
	"github.com/okian/ahp/pkg/logger"
	"github.com/okian/ahp/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ScoreDistributions ranks candidates; results follow input order.
	ScoreDistributions(ctx context.Context, candidates []model.Candidate, criteria model.Criteria) ([]model.ScoreResult, error)

	// ScoreClusters ranks member clusters on raw metrics; results follow
	// input order.
	ScoreClusters(ctx context.Context, clusters []model.Candidate, criteria model.Criteria) ([]model.ScoreResult, error)

	// SubmitScore records one entity score. Commit outcomes are not reported.
	SubmitScore(ctx context.Context, entity string, score int64) error

	// ReadScores returns the current collection cycle.
	ReadScores(ctx context.Context) map[string]int64

	// Health checks the policy store.
	Health(ctx context.Context) types.Health
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() types.Stats
}

// Server wires HTTP routes for the business API.
type Server struct {
	distributionHandler *DistributionHandler
	clusterHandler      *ClusterHandler
	scoreHandler        *ScoreHandler
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler

	rateLimitRPS   float64
	rateLimitBurst int
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	v := validator.New()
	s.distributionHandler = NewDistributionHandler(deps, v, s.logger)
	s.clusterHandler = NewClusterHandler(deps, v, s.logger)
	s.scoreHandler = NewScoreHandler(deps, s.logger)
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(statsProvider)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	distribution := MetricsMiddleware(s.distributionHandler.HandleScoreDistributions, "distribution_score")
	cluster := MetricsMiddleware(s.clusterHandler.HandleScoreClusters, "cluster_score")
	if s.rateLimitRPS > 0 {
		distribution = RateLimitMiddleware(distribution, s.rateLimitRPS, s.rateLimitBurst)
		cluster = RateLimitMiddleware(cluster, s.rateLimitRPS, s.rateLimitBurst)
	}

	mux.HandleFunc("/distribution_score", RequestIDMiddleware(distribution))
	mux.HandleFunc("/cluster_score", RequestIDMiddleware(cluster))
	mux.HandleFunc("/score", RequestIDMiddleware(MetricsMiddleware(s.scoreHandler.HandleSubmitScore, "score")))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoreHandler.HandleReadScores, "scores"))
	mux.HandleFunc("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
