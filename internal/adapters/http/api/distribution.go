package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/pkg/logger"
)

const maxRequestBytes = 1 << 20

// distributionRequest mirrors the OpenAPI schema for POST /distribution_score.
type distributionRequest struct {
	Distributions []distributionInput       `json:"distributions" validate:"unique=ID,dive"`
	Criteria      map[string]criterionInput `json:"criteria" validate:"dive,keys,required,endkeys"`
}

type distributionInput struct {
	ID      string             `json:"id"`
	Metrics map[string]float64 `json:"metrics"`
}

// criterionInput keeps HigherIsBetter as a pointer so an absent flag can
// default to true.
type criterionInput struct {
	Weight         float64 `json:"weight" validate:"gte=0"`
	HigherIsBetter *bool   `json:"higher_is_better"`
}

type scoresResponse struct {
	Scores []model.ScoreResult `json:"scores"`
}

func (r distributionRequest) candidates() []model.Candidate {
	out := make([]model.Candidate, len(r.Distributions))
	for i, d := range r.Distributions {
		out[i] = model.Candidate{ID: d.ID, Metrics: d.Metrics}
	}
	return out
}

func (r distributionRequest) criteria() model.Criteria {
	return toCriteria(r.Criteria)
}

// toCriteria applies the higher_is_better default.
func toCriteria(in map[string]criterionInput) model.Criteria {
	out := make(model.Criteria, len(in))
	for name, c := range in {
		higher := true
		if c.HigherIsBetter != nil {
			higher = *c.HigherIsBetter
		}
		out[name] = model.Criterion{Weight: c.Weight, HigherIsBetter: higher}
	}
	return out
}

// DistributionHandler handles distribution scoring requests.
type DistributionHandler struct {
	deps     Dependencies
	validate *validator.Validate
	logger   logger.Logger
}

// NewDistributionHandler creates a new distribution handler.
func NewDistributionHandler(deps Dependencies, v *validator.Validate, l logger.Logger) *DistributionHandler {
	return &DistributionHandler{deps: deps, validate: v, logger: l}
}

// HandleScoreDistributions handles POST /distribution_score requests.
func (h *DistributionHandler) HandleScoreDistributions(w http.ResponseWriter, r *http.Request) {
	const op = "api.distribution_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req distributionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, describeValidation(err)))
		return
	}

	results, err := h.deps.ScoreDistributions(r.Context(), req.candidates(), req.criteria())
	if err != nil {
		h.logger.Error(r.Context(), "distribution scoring failed", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, scoresResponse{Scores: results})
}

// describeValidation turns validator output into a short client message.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "unique":
		return errors.New("distribution ids must be unique")
	case "required":
		return errors.New(fe.Namespace() + " is required")
	case "gte":
		return errors.New(fe.Namespace() + " must not be negative")
	default:
		return errors.New(fe.Namespace() + " failed " + fe.Tag())
	}
}
