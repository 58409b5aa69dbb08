// Package scoring ranks placement candidates by combining weighted,
// possibly conflicting criteria into a single 0-100 score.
//
// Each criterion is min-max normalized across the candidates (unless the
// Strategy works on raw metrics), turned into a priority vector by a pairwise
// Strategy, scaled by the criterion weight and
// summed per candidate. The sums are rescaled so the best candidate gets 100.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/pkg/logger"
	"github.com/okian/ahp/pkg/metrics"
)

const maxScoreValue = 100

// Scorer ranks a set of candidates.
type Scorer interface {
	// Score returns one result per candidate in input order.
	Score(ctx context.Context, candidates []model.Candidate, criteria model.Criteria) ([]model.ScoreResult, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithStrategy sets the pairwise weighting strategy.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) {
		if s != nil {
			e.strategy = s
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine implements Scorer. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	strategy Strategy
	logger   logger.Logger
}

// NewEngine creates an engine using the capped ratio strategy by default.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		strategy: NewCappedRatio(DefaultRatioCap),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("scoring")
	}
	return e
}

// Strategy returns the configured pairwise strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Score implements Scorer. Degenerate input (no candidates, tied criteria,
// all-zero accumulator) produces defined fallbacks rather than errors; the
// only error is a cancelled context.
func (e *Engine) Score(ctx context.Context, candidates []model.Candidate, criteria model.Criteria) ([]model.ScoreResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()
	metrics.RecordScoringRequest(len(candidates), len(criteria))

	names := criteria.Names()
	var normalized []NormalizedCandidate
	if e.strategy.UsesNormalized() {
		normalized = Normalize(candidates, names)
	}

	acc := make([]float64, len(candidates))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scoring cancelled: %w", err)
		}
		crit := criteria[name]
		var values []float64
		if normalized != nil {
			values = criterionValues(normalized, name)
		} else {
			values = rawValues(candidates, name)
		}
		priorities := e.strategy.Priorities(values, crit.HigherIsBetter)
		floats.AddScaled(acc, crit.Weight, priorities)

		e.logger.Debug(ctx, "criterion processed",
			logger.String("criterion", name),
			logger.Float64s("values", values),
			logger.Bool("higherIsBetter", crit.HigherIsBetter),
			logger.Float64("weight", crit.Weight),
			logger.Float64s("priorities", priorities),
		)
	}

	scores := rescale(acc)
	results := make([]model.ScoreResult, len(candidates))
	for i, c := range candidates {
		results[i] = model.ScoreResult{ID: c.ID, Score: scores[i]}
	}

	e.logger.Info(ctx, "distributions scored",
		logger.String("strategy", e.strategy.Name()),
		logger.Int("candidates", len(candidates)),
		logger.Int("criteria", len(names)),
		logger.Any("ascending", SortedByScore(results)),
	)
	return results, nil
}

// criterionValues extracts one criterion's values across candidates, rounded
// to the normalization precision.
func criterionValues(candidates []NormalizedCandidate, criterion string) []float64 {
	values := make([]float64, len(candidates))
	for i, c := range candidates {
		values[i] = roundNormalized(c.Value(criterion))
	}
	return values
}

// rawValues extracts one criterion's unnormalized metrics. Missing metrics
// count as 0.
func rawValues(candidates []model.Candidate, criterion string) []float64 {
	values := make([]float64, len(candidates))
	for i, c := range candidates {
		values[i] = c.Metrics[criterion]
	}
	return values
}

// rescale maps the accumulator onto 0-100 relative to its maximum, truncating
// toward zero. A non-positive maximum means there is no signal and every
// score is 0.
func rescale(acc []float64) []int {
	scores := make([]int, len(acc))
	if len(acc) == 0 {
		return scores
	}
	maxScore := floats.Max(acc)
	if !(maxScore > 0) {
		return scores
	}
	for i, v := range acc {
		s := int((v / maxScore) * maxScoreValue)
		scores[i] = int(math.Max(0, math.Min(maxScoreValue, float64(s))))
	}
	return scores
}

// SortedByScore returns a copy of results ordered by ascending score. Ties
// keep their input order.
func SortedByScore(results []model.ScoreResult) []model.ScoreResult {
	sorted := make([]model.ScoreResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })
	return sorted
}
