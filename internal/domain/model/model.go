// Package model contains domain records passed between layers.
package model

import (
	"sort"
	"time"
)

// Candidate is one placement option being ranked, e.g. one way to split
// replicas across sites. Metrics maps criterion name to its raw value.
type Candidate struct {
	ID      string             `json:"id"`
	Metrics map[string]float64 `json:"metrics"`
}

// Criterion configures one metric dimension. Weight is used as a direct
// multiplier and need not sum to 1 across criteria.
type Criterion struct {
	Weight         float64 `json:"weight"`
	HigherIsBetter bool    `json:"higher_is_better"`
}

// Criteria maps criterion name to its configuration.
type Criteria map[string]Criterion

// Names returns the criterion names in lexical order.
func (c Criteria) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScoreResult is the final 0-100 score of a candidate.
type ScoreResult struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// Weight is one entry of a weighted placement preference.
type Weight struct {
	Entity string `json:"entity"`
	Weight int64  `json:"weight"`
}

// WeightsFromScores builds a weight list from an entity score map, one entry
// per entity with weight equal to its score, ordered by entity name.
func WeightsFromScores(scores map[string]int64) []Weight {
	weights := make([]Weight, 0, len(scores))
	for entity, score := range scores {
		weights = append(weights, Weight{Entity: entity, Weight: score})
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i].Entity < weights[j].Entity })
	return weights
}

// Commit is a snapshot of a complete collection cycle handed to the policy
// publisher.
type Commit struct {
	ID          string
	Weights     []Weight
	TriggeredAt time.Time
}
