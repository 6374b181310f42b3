//go:build cgo

// Package tesseract provides the local Tesseract OCR engine. It lives in
// its own package because gosseract needs cgo and the libtesseract headers
// at build time; programs opt in with a blank import, which registers the
// engine type with the config-driven registry.
package tesseract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/davidZakaria/cath-archives-sub000/internal/engines"
	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

const Type = "tesseract"

func init() {
	engines.RegisterType(Type, func(cfg engines.EngineConfig) engines.Adapter {
		return New(Config{
			Languages: cfg.Languages,
			DPI:       cfg.DPI,
		})
	})
}

// Config holds configuration for the Tesseract engine.
type Config struct {
	Languages []string // default hints when the request carries none
	DPI       int      // user_defined_dpi for scans with no density metadata
}

// Engine implements engines.Adapter using the gosseract client.
type Engine struct {
	languages     []string
	dpi           int
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New(cfg Config) *Engine {
	return &Engine{
		languages:     cfg.Languages,
		dpi:           cfg.DPI,
		clientFactory: gosseract.NewClient,
	}
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return Type }

// RequestsPerSecond returns 0: local engines are not rate limited.
func (e *Engine) RequestsPerSecond() float64 { return 0 }

// MaxRetries returns the maximum retry attempts.
func (e *Engine) MaxRetries() int { return 1 }

// RetryDelayBase returns the base delay for exponential backoff.
func (e *Engine) RetryDelayBase() time.Duration { return time.Second }

// Run performs OCR on a single page image. A fresh client is created per
// call; gosseract clients are not safe for concurrent use and the engine is
// invoked once per column from parallel goroutines.
func (e *Engine) Run(ctx context.Context, req ocr.PageRequest) ocr.EngineResult {
	start := time.Now()

	select {
	case <-ctx.Done():
		return ocr.ErrorResult(Type, ctx.Err().Error(), time.Since(start))
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	text, words, err := e.recognize(c, req)
	if err != nil {
		return ocr.ErrorResult(Type, err.Error(), time.Since(start))
	}

	frags := engines.LinesFromWords(words)
	return ocr.EngineResult{
		EngineID:          Type,
		FullText:          strings.TrimSpace(text),
		OverallConfidence: engines.MeanConfidence(frags),
		Fragments:         frags,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	}
}

func (e *Engine) recognize(c *gosseract.Client, req ocr.PageRequest) (string, []engines.Word, error) {
	if err := c.SetImageFromBytes(req.Image); err != nil {
		return "", nil, fmt.Errorf("set image: %w", err)
	}

	hints := req.LanguageHints
	if len(hints) == 0 {
		hints = e.languages
	}
	langs := engines.TesseractLanguages(hints)
	if err := c.SetLanguage(langs...); err != nil {
		return "", nil, fmt.Errorf("set languages: %w", err)
	}

	if e.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.dpi)); err != nil {
			return "", nil, fmt.Errorf("set dpi: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", nil, fmt.Errorf("recognize text: %w", err)
	}

	return text, extractWords(c), nil
}

// extractWords pulls word-level boxes from the current recognition. Box
// confidence comes back on a 0..100 scale.
func extractWords(c *gosseract.Client) []engines.Word {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	words := make([]engines.Word, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, engines.Word{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			Box: ocr.BoundingBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}
	return words
}

// Verify interface
var _ engines.Adapter = (*Engine)(nil)
