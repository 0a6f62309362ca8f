package domain

import "math"

// KeywordMatch records how often one keyword occurred in scored text.
type KeywordMatch struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Count   int    `json:"count" yaml:"count"`
}

// Matches groups keyword matches by severity tier.
type Matches struct {
	Explicit []KeywordMatch `json:"explicit"`
	Moderate []KeywordMatch `json:"moderate"`
}

// ScoreResult is the explainable outcome of scoring text.
// Explicit and Moderate lie in [0,1]; Safe is the complement signal and is 0
// whenever the raw total exceeded 1.
type ScoreResult struct {
	Explicit float64 `json:"explicit"`
	Moderate float64 `json:"moderate"`
	Safe     float64 `json:"safe"`
	Matches  Matches `json:"matches"`
}

// DefaultScore returns the conservative "nothing found" result {0,0,1,{}}.
func DefaultScore() ScoreResult {
	return ScoreResult{
		Safe:    1.0,
		Matches: Matches{Explicit: []KeywordMatch{}, Moderate: []KeywordMatch{}},
	}
}

// ShouldBlock applies the default thresholds.
func (s ScoreResult) ShouldBlock() bool { return DefaultWeights().ShouldBlock(s) }

// Weights holds the per-occurrence weights and the block thresholds.
type Weights struct {
	Explicit          float64 `json:"explicit_weight"`
	Moderate          float64 `json:"moderate_weight"`
	ExplicitThreshold float64 `json:"explicit_threshold"`
	ModerateThreshold float64 `json:"moderate_threshold"`
}

// DefaultWeights returns 0.3 / 0.15 per occurrence and 0.3 / 0.45 thresholds.
// One explicit hit blocks on its own; moderate needs three hits.
func DefaultWeights() Weights {
	return Weights{
		Explicit:          0.3,
		Moderate:          0.15,
		ExplicitThreshold: 0.3,
		ModerateThreshold: 0.45,
	}
}

// ShouldBlock evaluates the thresholds on the (possibly capped) tier scores.
func (w Weights) ShouldBlock(s ScoreResult) bool {
	return s.Explicit >= w.ExplicitThreshold || s.Moderate >= w.ModerateThreshold
}

// scorePrecision bounds accumulated float error so that 0.15*3 compares equal to 0.45.
const scorePrecision = 1e9

// RoundScore rounds v to the score precision.
func RoundScore(v float64) float64 {
	return math.Round(v*scorePrecision) / scorePrecision
}
