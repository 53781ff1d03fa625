// Package quality turns detector issues into unit, group and system scores.
package quality

import (
	"fmt"
	"math"

	"flowlint/internal/detect"
)

const (
	maxScore = 100.0

	criticalCap      = 40.0
	multiCriticalCap = 15.0

	sizeDivisor       = 150.0
	maxSizeMultiplier = 2.5

	defaultCriticalMultiplier = 1.5
)

// Weights is the per-kind deduction table.
type Weights map[detect.Kind]float64

// DefaultWeights keeps critical kinds well above the important ones, and those
// above the minor ones.
func DefaultWeights() Weights {
	return Weights{
		detect.KindTopLevelReturn:   15,
		detect.KindDebugger:         15,
		detect.KindConsoleOutput:    5,
		detect.KindHostWarn:         5,
		detect.KindTodo:             4,
		detect.KindUnused:           3,
		detect.KindCommentedCodeRun: 3,
		detect.KindSentinel:         2,
		detect.KindBlankRun:         1,
	}
}

// Validate rejects negative weights and unknown kinds.
func (w Weights) Validate() error {
	known := make(map[detect.Kind]bool, len(detect.Kinds))
	for _, k := range detect.Kinds {
		known[k] = true
	}
	for k, v := range w {
		if !known[k] {
			return fmt.Errorf("unknown issue kind %q", k)
		}
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight for %s must be non-negative, got %v", k, v)
		}
	}
	return nil
}

// Scorer computes scores with one weight table. The zero value is not usable;
// build one with NewScorer.
type Scorer struct {
	weights            Weights
	criticalMultiplier float64
}

// NewScorer returns a scorer. Kinds missing from w fall back to the default
// weight; a non-positive multiplier falls back to 1.5.
func NewScorer(w Weights, criticalMultiplier float64) *Scorer {
	merged := DefaultWeights()
	for k, v := range w {
		merged[k] = v
	}
	if criticalMultiplier <= 0 {
		criticalMultiplier = defaultCriticalMultiplier
	}
	return &Scorer{weights: merged, criticalMultiplier: criticalMultiplier}
}

var defaultScorer = NewScorer(nil, 0)

// ScoreUnit scores issues with the default weights.
func ScoreUnit(issues []detect.Issue, linesOfCode int) float64 {
	return defaultScorer.ScoreUnit(issues, linesOfCode)
}

// ScoreUnit returns the 0-100 quality score of a single unit.
//
// Critical issues weigh criticalMultiplier times their table weight and cap
// the starting score at 40, or 15 when there are two or more. The summed
// deduction grows with unit size up to 2.5 times.
func (s *Scorer) ScoreUnit(issues []detect.Issue, linesOfCode int) float64 {
	base := maxScore
	deduction := 0.0
	critical := 0
	for _, issue := range issues {
		w := s.weights[issue.Kind]
		if issue.Kind.Critical() {
			critical++
			w *= s.criticalMultiplier
		}
		deduction += w
	}
	switch {
	case critical >= 2:
		base = multiCriticalCap
	case critical == 1:
		base = criticalCap
	}
	return round2(math.Max(0, base-deduction*sizeMultiplier(linesOfCode)))
}

func sizeMultiplier(linesOfCode int) float64 {
	if linesOfCode < 0 {
		linesOfCode = 0
	}
	return math.Min(1+float64(linesOfCode)/sizeDivisor, maxSizeMultiplier)
}

// HasCritical reports whether any issue is of a critical kind.
func HasCritical(issues []detect.Issue) bool {
	for _, issue := range issues {
		if issue.Kind.Critical() {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
