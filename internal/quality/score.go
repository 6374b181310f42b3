// Package quality scores a single engine's full-page OCR result so the
// orchestrator can compare engines. Scores live on a 0-100 scale; the
// weights are heuristics tuned on scanned Arabic magazine pages and are
// deliberately configurable.
package quality

import (
	"unicode"
	"unicode/utf8"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

// DefaultConfidenceThreshold excludes results the engine itself barely
// believes in.
const DefaultConfidenceThreshold = 0.3

// Weights is the point budget for each scoring component.
type Weights struct {
	Confidence         float64 `mapstructure:"confidence_weight" yaml:"confidence_weight"`
	Length             float64 `mapstructure:"length_weight" yaml:"length_weight"`
	Script             float64 `mapstructure:"script_weight" yaml:"script_weight"`
	FragmentCount      float64 `mapstructure:"fragment_count_weight" yaml:"fragment_count_weight"`
	FragmentConfidence float64 `mapstructure:"fragment_confidence_weight" yaml:"fragment_confidence_weight"`
}

// DefaultWeights returns the tuned 40/20/20/10/10 budget.
func DefaultWeights() Weights {
	return Weights{
		Confidence:         40,
		Length:             20,
		Script:             20,
		FragmentCount:      10,
		FragmentConfidence: 10,
	}
}

// Scorer evaluates engine results against a fixed weight budget and
// confidence threshold.
type Scorer struct {
	weights   Weights
	threshold float64
}

// NewScorer creates a scorer. A negative threshold selects the default;
// zero is honored so callers can disable the exclusion entirely.
func NewScorer(w Weights, confidenceThreshold float64) *Scorer {
	if confidenceThreshold < 0 {
		confidenceThreshold = DefaultConfidenceThreshold
	}
	return &Scorer{weights: w, threshold: confidenceThreshold}
}

// Threshold reports the confidence floor below which results are excluded
// from ranking.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Eligible reports whether a result may participate in ranking: the
// engine must have succeeded and cleared the confidence threshold.
func (s *Scorer) Eligible(r ocr.EngineResult) bool {
	return !r.Failed() && r.OverallConfidence >= s.threshold
}

// Score computes the quality score for one result. Failed engines score
// zero. The score is monotonic in OverallConfidence for any non-negative
// weights.
func (s *Scorer) Score(r ocr.EngineResult) float64 {
	if r.Failed() {
		return 0
	}

	score := r.OverallConfidence * s.weights.Confidence

	length := utf8.RuneCountInString(r.FullText)
	if length > 100 {
		score += 0.5 * s.weights.Length
	}
	if length > 500 {
		score += 0.25 * s.weights.Length
	}
	if length > 1000 {
		score += 0.25 * s.weights.Length
	}

	score += arabicRatio(r.FullText) * s.weights.Script

	if len(r.Fragments) >= 3 {
		score += 0.5 * s.weights.FragmentCount
	}
	if len(r.Fragments) >= 10 {
		score += 0.5 * s.weights.FragmentCount
	}

	score += meanFragmentConfidence(r.Fragments) * s.weights.FragmentConfidence

	return score
}

// arabicRatio is the fraction of runes in the Arabic script, using the
// Unicode script table so presentation forms and extended blocks count.
func arabicRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total, arabic := 0, 0
	for _, r := range text {
		total++
		if unicode.Is(unicode.Arabic, r) {
			arabic++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(arabic) / float64(total)
}

func meanFragmentConfidence(frags []ocr.TextFragment) float64 {
	if len(frags) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range frags {
		sum += f.Confidence
	}
	return sum / float64(len(frags))
}
