package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/ahp/pkg/logger"
)

var errMissingField = errors.New("missing entity or score") //nolint:gochecknoglobals // client-visible message

// scoreRequest mirrors the OpenAPI schema for POST /score. Cluster is the
// legacy name of Entity.
type scoreRequest struct {
	Entity  *string `json:"entity"`
	Cluster *string `json:"cluster"`
	Score   *int64  `json:"score"`
}

func (r scoreRequest) entity() string {
	for _, v := range []*string{r.Entity, r.Cluster} {
		if v != nil && strings.TrimSpace(*v) != "" {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}

type ackResponse struct {
	Status string `json:"status"`
}

// ScoreHandler handles entity score submissions and reads.
type ScoreHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps Dependencies, l logger.Logger) *ScoreHandler {
	return &ScoreHandler{deps: deps, logger: l}
}

// HandleSubmitScore handles POST /score requests. The submission is
// acknowledged whether or not it triggered a policy commit.
func (h *ScoreHandler) HandleSubmitScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req scoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entity := req.entity()
	if entity == "" || req.Score == nil {
		writeError(w, http.StatusBadRequest, "missing_field", WrapKind(op, ErrBadRequest, errMissingField))
		return
	}

	if err := h.deps.SubmitScore(r.Context(), entity, *req.Score); err != nil {
		h.logger.Error(r.Context(), "score submission failed", logger.String("entity", entity), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "success"})
}

// HandleReadScores handles GET /scores requests.
func (h *ScoreHandler) HandleReadScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ReadScores(r.Context()))
}
