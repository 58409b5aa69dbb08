package scoring

import (
	"math"

	"github.com/okian/ahp/internal/domain/model"
)

const (
	// tiedValue is assigned when every candidate shares the same raw value.
	tiedValue = 0.5
	// normalizedPrecision rounds normalized values to 6 decimal digits.
	normalizedPrecision = 1e6
)

// NormalizedCandidate pairs a candidate with its per-criterion values
// rescaled to [0,1]. The embedded Candidate is never modified.
type NormalizedCandidate struct {
	model.Candidate
	Normalized map[string]float64
}

// Value returns the normalized value for criterion, falling back to the raw
// metric and then to 0.
func (n NormalizedCandidate) Value(criterion string) float64 {
	if v, ok := n.Normalized[criterion]; ok {
		return v
	}
	return n.Metrics[criterion]
}

type valueRange struct {
	min, max float64
}

// Normalize rescales each named criterion across all candidates with min-max
// normalization. Missing metrics count as 0. When every candidate ties on a
// criterion the normalized value is 0.5 for all of them.
func Normalize(candidates []model.Candidate, criteria []string) []NormalizedCandidate {
	ranges := make(map[string]valueRange, len(criteria))
	if len(candidates) > 0 {
		for _, crit := range criteria {
			r := valueRange{min: math.Inf(1), max: math.Inf(-1)}
			for _, c := range candidates {
				v := c.Metrics[crit]
				r.min = math.Min(r.min, v)
				r.max = math.Max(r.max, v)
			}
			ranges[crit] = r
		}
	}

	out := make([]NormalizedCandidate, len(candidates))
	for i, c := range candidates {
		normalized := make(map[string]float64, len(ranges))
		for crit, r := range ranges {
			normalized[crit] = normalizeValue(c.Metrics[crit], r)
		}
		out[i] = NormalizedCandidate{Candidate: c, Normalized: normalized}
	}
	return out
}

func normalizeValue(v float64, r valueRange) float64 {
	if r.max == r.min {
		return tiedValue
	}
	return roundNormalized((v - r.min) / (r.max - r.min))
}

func roundNormalized(v float64) float64 {
	return math.Round(v*normalizedPrecision) / normalizedPrecision
}
