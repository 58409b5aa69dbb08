package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/pkg/logger"
)

// clusterRequest mirrors the OpenAPI schema for POST /cluster_score.
type clusterRequest struct {
	Clusters []clusterInput            `json:"clusters"`
	Criteria map[string]criterionInput `json:"criteria" validate:"dive,keys,required,endkeys"`
}

type clusterInput struct {
	Name    string             `json:"name"`
	Metrics map[string]float64 `json:"metrics"`
}

type clusterScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type clusterScoresResponse struct {
	Scores []clusterScore `json:"scores"`
}

// ClusterHandler handles member cluster scoring requests.
type ClusterHandler struct {
	deps     Dependencies
	validate *validator.Validate
	logger   logger.Logger
}

// NewClusterHandler creates a new cluster handler.
func NewClusterHandler(deps Dependencies, v *validator.Validate, l logger.Logger) *ClusterHandler {
	return &ClusterHandler{deps: deps, validate: v, logger: l}
}

// HandleScoreClusters handles POST /cluster_score requests. Cluster names
// are echoed as given, duplicates included.
func (h *ClusterHandler) HandleScoreClusters(w http.ResponseWriter, r *http.Request) {
	const op = "api.cluster_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req clusterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, describeValidation(err)))
		return
	}

	clusters := make([]model.Candidate, len(req.Clusters))
	for i, c := range req.Clusters {
		clusters[i] = model.Candidate{ID: c.Name, Metrics: c.Metrics}
	}
	results, err := h.deps.ScoreClusters(r.Context(), clusters, toCriteria(req.Criteria))
	if err != nil {
		h.logger.Error(r.Context(), "cluster scoring failed", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}

	resp := clusterScoresResponse{Scores: make([]clusterScore, len(results))}
	for i, res := range results {
		resp.Scores[i] = clusterScore{Name: res.ID, Score: res.Score}
	}
	writeJSON(w, http.StatusOK, resp)
}
