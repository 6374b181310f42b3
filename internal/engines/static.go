package engines

import (
	"context"
	"strings"
	"time"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

const StaticType = "static"

// staticSampleText is returned by a default-configured static engine so the
// full pipeline can be exercised without network access or traineddata.
const staticSampleText = "صفحة تجريبية\nهذا نص ثابت للتجارب المحلية\nيُستخدم لاختبار خط الأنابيب"

// StaticConfig holds configuration for the static engine.
type StaticConfig struct {
	Name       string        // engine identifier (default: "static")
	Text       string        // canned page text, one fragment per line
	Confidence float64       // per-fragment confidence (default: 0.9)
	Delay      time.Duration // artificial latency before responding
	FailWith   string        // non-empty: every run fails with this message
}

// Static is a deterministic engine for tests, demos, and offline pipeline
// runs. It returns a canned transcription with stacked line geometry, or a
// canned failure.
type Static struct {
	name       string
	text       string
	confidence float64
	delay      time.Duration
	failWith   string
}

// NewStatic creates a new static engine.
func NewStatic(cfg StaticConfig) *Static {
	if cfg.Name == "" {
		cfg.Name = StaticType
	}
	if cfg.Text == "" {
		cfg.Text = staticSampleText
	}
	if cfg.Confidence == 0 {
		cfg.Confidence = 0.9
	}
	return &Static{
		name:       cfg.Name,
		text:       cfg.Text,
		confidence: cfg.Confidence,
		delay:      cfg.Delay,
		failWith:   cfg.FailWith,
	}
}

// Name returns the engine identifier.
func (s *Static) Name() string {
	return s.name
}

// RequestsPerSecond returns 0: the static engine is not rate limited.
func (s *Static) RequestsPerSecond() float64 {
	return 0
}

// MaxRetries returns the maximum retry attempts.
func (s *Static) MaxRetries() int {
	return 0
}

// RetryDelayBase returns the base delay for exponential backoff.
func (s *Static) RetryDelayBase() time.Duration {
	return 0
}

// Run returns the canned result after the configured delay.
func (s *Static) Run(ctx context.Context, req ocr.PageRequest) ocr.EngineResult {
	start := time.Now()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ocr.ErrorResult(s.name, ctx.Err().Error(), time.Since(start))
		case <-time.After(s.delay):
		}
	}

	if s.failWith != "" {
		return ocr.ErrorResult(s.name, s.failWith, time.Since(start))
	}

	lines := strings.Split(s.text, "\n")
	const lineH, lineW = 40, 800
	frags := make([]ocr.TextFragment, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		frags = append(frags, ocr.TextFragment{
			Text:       line,
			Confidence: s.confidence,
			BoundingBox: ocr.BoundingBox{
				X:      0,
				Y:      i * lineH,
				Width:  lineW,
				Height: lineH,
			},
		})
	}

	return ocr.EngineResult{
		EngineID:          s.name,
		FullText:          s.text,
		OverallConfidence: s.confidence,
		Fragments:         frags,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	}
}

// Verify interface
var _ Adapter = (*Static)(nil)
