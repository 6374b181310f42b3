package orchestrate

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/davidZakaria/cath-archives-sub000/internal/classify"
	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
	"github.com/davidZakaria/cath-archives-sub000/internal/quality"
)

const (
	// closeScoreMargin is the score gap under which the runner-up is
	// named in the selection rationale.
	closeScoreMargin = 5.0

	// highConfidenceFloor and lowConfidenceCeiling bucket fragments for
	// the review metrics: blocks the engine was sure about versus blocks
	// a reviewer should re-check.
	highConfidenceFloor  = 0.8
	lowConfidenceCeiling = 0.5
)

// scored pairs a result with its computed quality score.
type scored struct {
	result ocr.EngineResult
	score  float64
}

// selectResult picks the winning engine result and explains the pick. The
// reason string is for humans; callers must not parse it. results must be
// non-empty.
func selectResult(results []ocr.EngineResult, scorer *quality.Scorer, prefer string, logger *slog.Logger) (ocr.EngineResult, string) {
	eligible := make([]scored, 0, len(results))
	for _, r := range results {
		if scorer.Eligible(r) {
			eligible = append(eligible, scored{result: r, score: scorer.Score(r)})
		}
	}

	// Degradation: nothing cleared the bar, so hand back the least-bad
	// result and let the caller flag the page for manual review.
	if len(eligible) == 0 {
		best := results[0]
		for _, r := range results[1:] {
			if r.OverallConfidence > best.OverallConfidence {
				best = r
			}
		}
		if len(results) == 1 {
			return best, "Only available result (below threshold)"
		}
		return best, fmt.Sprintf("all engines failed or below threshold %.2f; using %s (confidence %.2f)",
			scorer.Threshold(), best.EngineID, best.OverallConfidence)
	}

	if prefer != "" && prefer != "best" {
		for _, e := range eligible {
			if e.result.EngineID == prefer {
				return e.result, fmt.Sprintf("explicit preference: %s (confidence %.2f, score %.1f)",
					prefer, e.result.OverallConfidence, e.score)
			}
		}
		logger.Debug("preferred engine unavailable or below threshold, ranking by score",
			"prefer", prefer)
	}

	if len(eligible) == 1 {
		e := eligible[0]
		if len(results) == 1 {
			return e.result, "Only available result"
		}
		return e.result, fmt.Sprintf("sole result above threshold: %s (score %.1f)",
			e.result.EngineID, e.score)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].score > eligible[j].score
	})
	winner, runnerUp := eligible[0], eligible[1]
	if winner.score-runnerUp.score < closeScoreMargin {
		return winner.result, fmt.Sprintf("highest score: %s (%.1f), narrowly ahead of %s (%.1f)",
			winner.result.EngineID, winner.score, runnerUp.result.EngineID, runnerUp.score)
	}
	return winner.result, fmt.Sprintf("highest score: %s (%.1f)", winner.result.EngineID, winner.score)
}

// metricsFor summarizes the winning result for the review surface.
// Block percentages are over classified fragments; a fragment-free result
// reports zeros.
func metricsFor(res ocr.EngineResult, cls classify.Result) ocr.AccuracyMetrics {
	m := ocr.AccuracyMetrics{
		OverallConfidencePct: res.OverallConfidence * 100,
		AverageFontSize:      cls.AverageFontSize,
		DetectedTitles:       cls.DetectedTitles,
	}
	if len(cls.Fragments) == 0 {
		return m
	}

	high, low := 0, 0
	for _, f := range cls.Fragments {
		switch {
		case f.Confidence >= highConfidenceFloor:
			high++
		case f.Confidence < lowConfidenceCeiling:
			low++
		}
	}
	n := float64(len(cls.Fragments))
	m.HighConfidenceBlocksPct = float64(high) / n * 100
	m.LowConfidenceBlocksPct = float64(low) / n * 100
	return m
}
