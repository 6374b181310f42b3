package ocr

import "time"

// PageRequest is the input handed to every engine adapter. Adapters must
// treat it as read-only; the image buffer is shared across concurrent
// engine calls.
type PageRequest struct {
	Image         []byte   // raw page image bytes (PNG/JPEG)
	LanguageHints []string // e.g. ["ar", "en"]; adapters map to native codes
	PageNumber    int      // 1-based page number, for logging only
}

// EngineResult is the output of one OCR engine on one page. It is created
// once per engine invocation and never mutated or merged with another
// engine's fragments afterwards. Failure is encoded in Error rather than
// returned as a Go error so one engine's failure cannot abort the others.
type EngineResult struct {
	EngineID          string         `json:"engine_id"`
	FullText          string         `json:"full_text"`
	OverallConfidence float64        `json:"overall_confidence"` // 0..1, 0 when Error is set
	Fragments         []TextFragment `json:"fragments,omitempty"`
	ProcessingTimeMs  int64          `json:"processing_time_ms"`
	Error             string         `json:"error,omitempty"`
}

// Failed reports whether the engine run failed.
func (r EngineResult) Failed() bool {
	return r.Error != ""
}

// ErrorResult builds the EngineResult for a failed engine run.
func ErrorResult(engineID, message string, elapsed time.Duration) EngineResult {
	return EngineResult{
		EngineID:         engineID,
		Error:            message,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

// ColumnDetectionResult describes the layout decision for one page. It is
// derived per page and recomputed on every call; a manual column count
// short-circuits detection with Confidence = 1.0.
type ColumnDetectionResult struct {
	HasColumns       bool    `json:"has_columns"`
	EstimatedColumns int     `json:"estimated_columns"` // >= 1
	Confidence       float64 `json:"confidence"`        // 0..1
	GapCenters       []int   `json:"gap_centers,omitempty"`
}

// AccuracyMetrics summarizes the winning result for review tooling.
type AccuracyMetrics struct {
	OverallConfidencePct    float64  `json:"overall_confidence_pct"`
	HighConfidenceBlocksPct float64  `json:"high_confidence_blocks_pct"`
	LowConfidenceBlocksPct  float64  `json:"low_confidence_blocks_pct"`
	AverageFontSize         float64  `json:"average_font_size"`
	DetectedTitles          []string `json:"detected_titles,omitempty"` // at most 5
}

// OrchestratedResult is the final decision artifact for a page: the winning
// engine's output plus everything needed to audit the decision. It is the
// orchestrator's single return value and is not mutated after construction.
type OrchestratedResult struct {
	SelectedEngine  string                `json:"selected_engine"`
	BestResult      EngineResult          `json:"best_result"`
	AllResults      []EngineResult        `json:"all_results"`
	SelectionReason string                `json:"selection_reason"`
	AccuracyMetrics AccuracyMetrics       `json:"accuracy_metrics"`
	StructuredText  string                `json:"structured_text"`
	Columns         ColumnDetectionResult `json:"columns"`
}
