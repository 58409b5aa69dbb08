package scoring

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/okian/ahp/pkg/metrics"
)

// Pairwise strategy names accepted by StrategyByName.
const (
	StrategyCapped    = "capped"
	StrategyZeroAware = "zero_aware"
	StrategyRowSum    = "row_sum"
)

const (
	// DefaultRatioCap is the classical pairwise dominance bound.
	DefaultRatioCap = 9.0

	epsilon        = 1e-9
	equalTolerance = 1e-12
	// zeroDominance is the ratio used by ZeroAware when one side is zero.
	zeroDominance = 1e6
)

// PriorityVector holds one non-negative weight per candidate, aligned with
// the input order, summing to 1.
type PriorityVector []float64

// Strategy turns one criterion's values into a priority vector.
type Strategy interface {
	Name() string
	Priorities(values []float64, higherIsBetter bool) PriorityVector

	// UsesNormalized reports whether Priorities expects min-max normalized
	// values rather than raw metrics.
	UsesNormalized() bool
}

// StrategyByName returns the strategy registered under name. An empty name
// selects the capped strategy.
func StrategyByName(name string, ratioCap float64) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyCapped:
		return NewCappedRatio(ratioCap), nil
	case StrategyZeroAware:
		return ZeroAware{}, nil
	case StrategyRowSum:
		return RowSum{}, nil
	default:
		return nil, fmt.Errorf("unknown pairwise strategy %q", name)
	}
}

// CappedRatio builds the ratio matrix on epsilon-shifted values and clips
// every entry to [1/Cap, Cap].
type CappedRatio struct {
	Cap float64
}

// NewCappedRatio returns a CappedRatio; caps not greater than 1 fall back to
// DefaultRatioCap.
func NewCappedRatio(ratioCap float64) CappedRatio {
	if ratioCap <= 1 || math.IsNaN(ratioCap) || math.IsInf(ratioCap, 0) {
		ratioCap = DefaultRatioCap
	}
	return CappedRatio{Cap: ratioCap}
}

// Name implements Strategy.
func (c CappedRatio) Name() string { return StrategyCapped }

// UsesNormalized implements Strategy.
func (c CappedRatio) UsesNormalized() bool { return true }

// Priorities implements Strategy.
func (c CappedRatio) Priorities(values []float64, higherIsBetter bool) PriorityVector {
	n := len(values)
	if n == 0 {
		return PriorityVector{}
	}

	v := make([]float64, n)
	for i, x := range values {
		v[i] = x + epsilon
	}
	if allClose(v, equalTolerance) {
		metrics.RecordDegenerateCriterion()
		return uniform(n)
	}

	ratioCap := c.Cap
	if ratioCap <= 1 {
		ratioCap = DefaultRatioCap
	}
	lo, hi := 1/ratioCap, ratioCap

	m := mat.NewDense(n, n, nil)
	m.Apply(func(i, j int, _ float64) float64 {
		r := v[i] / v[j]
		if !higherIsBetter {
			r = v[j] / v[i]
		}
		return math.Min(math.Max(r, lo), hi)
	}, m)
	return priorityVector(m)
}

// ZeroAware compares raw metrics without shifting or capping. A zero against a
// positive value compares as zeroDominance (or its inverse, by direction) and
// two zeros compare as equal. Values are expected to be non-negative.
type ZeroAware struct{}

// Name implements Strategy.
func (ZeroAware) Name() string { return StrategyZeroAware }

// UsesNormalized implements Strategy. Normalizing would pin the smallest
// value to zero and hand it the zero dominance ratio.
func (ZeroAware) UsesNormalized() bool { return false }

// Priorities implements Strategy.
func (ZeroAware) Priorities(values []float64, higherIsBetter bool) PriorityVector {
	n := len(values)
	if n == 0 {
		return PriorityVector{}
	}
	if allClose(values, 0) {
		metrics.RecordDegenerateCriterion()
		return uniform(n)
	}

	m := mat.NewDense(n, n, nil)
	m.Apply(func(i, j int, _ float64) float64 {
		return zeroAwareRatio(values[i], values[j], higherIsBetter)
	}, m)
	return priorityVector(m)
}

func zeroAwareRatio(a, b float64, higherIsBetter bool) float64 {
	switch {
	case a == 0 && b == 0:
		return 1
	case a == 0 && b > 0:
		if higherIsBetter {
			return 1 / zeroDominance
		}
		return zeroDominance
	case b == 0 && a > 0:
		if higherIsBetter {
			return zeroDominance
		}
		return 1 / zeroDominance
	}
	if higherIsBetter {
		return a / b
	}
	return b / a
}

// RowSum is the cluster scoring variant. It compares raw metrics, treats any
// pair involving a zero as equal, and weighs each candidate by its ratio
// matrix row sum over the matrix total.
type RowSum struct{}

// Name implements Strategy.
func (RowSum) Name() string { return StrategyRowSum }

// UsesNormalized implements Strategy.
func (RowSum) UsesNormalized() bool { return false }

// Priorities implements Strategy.
func (RowSum) Priorities(values []float64, higherIsBetter bool) PriorityVector {
	n := len(values)
	if n == 0 {
		return PriorityVector{}
	}

	m := mat.NewDense(n, n, nil)
	m.Apply(func(i, j int, _ float64) float64 {
		a, b := values[i], values[j]
		if a == 0 || b == 0 {
			return 1
		}
		if higherIsBetter {
			return a / b
		}
		return b / a
	}, m)

	weights := make(PriorityVector, n)
	for i := 0; i < n; i++ {
		weights[i] = floats.Sum(m.RawRowView(i))
	}
	total := floats.Sum(weights)
	if !(total > 0) || allClose(weights, equalTolerance) {
		metrics.RecordDegenerateCriterion()
		return uniform(n)
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// priorityVector normalizes each column of the square ratio matrix by its
// sum, averages the rows and rescales the result to sum to 1.
func priorityVector(m *mat.Dense) PriorityVector {
	n, _ := m.Dims()

	norm := mat.NewDense(n, n, nil)
	col := make([]float64, n)
	for j := 0; j < n; j++ {
		mat.Col(col, j, m)
		sum := floats.Sum(col)
		if sum == 0 {
			sum = 1
		}
		for i := range col {
			col[i] /= sum
		}
		norm.SetCol(j, col)
	}

	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[i] = floats.Sum(norm.RawRowView(i)) / float64(n)
	}

	total := floats.Sum(weights)
	if !(total > 0) {
		return uniform(n)
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

func allClose(v []float64, tol float64) bool {
	for _, x := range v[1:] {
		if math.Abs(x-v[0]) > tol {
			return false
		}
	}
	return true
}

func uniform(n int) PriorityVector {
	out := make(PriorityVector, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}
