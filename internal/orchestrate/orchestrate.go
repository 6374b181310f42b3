// Package orchestrate runs a page image through every configured OCR
// engine, reconstructs each engine's reading order, and picks the best
// result by quality score. The orchestrator never retries and never
// fails a page outright once at least one engine ran; degradation rules
// keep low-quality pages flowing to review instead of dropping them.
package orchestrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/davidZakaria/cath-archives-sub000/internal/classify"
	"github.com/davidZakaria/cath-archives-sub000/internal/config"
	"github.com/davidZakaria/cath-archives-sub000/internal/engines"
	"github.com/davidZakaria/cath-archives-sub000/internal/imaging"
	"github.com/davidZakaria/cath-archives-sub000/internal/layout"
	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
	"github.com/davidZakaria/cath-archives-sub000/internal/quality"
	"github.com/davidZakaria/cath-archives-sub000/internal/reading"
	"github.com/davidZakaria/cath-archives-sub000/internal/structure"
)

// Phase is the orchestrator's current position in the page pipeline.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhasePreprocessing Phase = "preprocessing"
	PhaseRunning       Phase = "running"
	PhaseScoring       Phase = "scoring"
	PhaseSelected      Phase = "selected"
	PhaseFailed        Phase = "failed"
)

// Request describes one page to process. Zero-valued optional fields fall
// back to the orchestrator's configured defaults.
type Request struct {
	Image               []byte
	PageNumber          int      // 1-based, for logging and output naming
	Engines             []string // subset of registered engines; empty = all
	PreferEngine        string   // engine to favor; "" or "best" ranks by score
	ConfidenceThreshold float64  // > 0 overrides the configured threshold
	ManualColumnCount   int      // > 0 skips column detection entirely
	LanguageHints       []string
}

// Config assembles an Orchestrator. Registry is required; everything else
// has a working default.
type Config struct {
	Registry *engines.Registry
	Logger   *slog.Logger

	PreprocessEnabled bool
	Preprocess        imaging.Options
	Layout            layout.DetectorConfig
	Weights           quality.Weights

	// ConfidenceThreshold excludes results below it from ranking; zero
	// disables the exclusion, negative selects the tuned default.
	ConfidenceThreshold float64

	PreferEngine           string
	RunParallel            bool
	EngineTimeout          time.Duration // 0 = unbounded engine calls
	ColumnMergeThresholdPx int
	Languages              []string
}

// Orchestrator drives the per-page pipeline: preprocess once, detect and
// split columns, run every engine over the page, sort each engine's
// fragments into reading order, then score and select a winner with a
// recorded rationale. One Orchestrator is safe for concurrent Process
// calls; the batch runner shares a single instance across its workers.
type Orchestrator struct {
	registry *engines.Registry
	logger   *slog.Logger

	preprocessEnabled bool
	preprocess        imaging.Options
	detector          *layout.Detector
	sorter            *reading.Sorter
	weights           quality.Weights
	threshold         float64
	prefer            string
	runParallel       bool
	engineTimeout     time.Duration
	languages         []string

	mu    sync.Mutex
	phase Phase

	limMu    sync.Mutex
	limiters map[string]*engines.RateLimiter
}

// New creates an orchestrator from explicit settings.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.ConfidenceThreshold
	if threshold < 0 {
		threshold = quality.DefaultConfidenceThreshold
	}

	return &Orchestrator{
		registry:          cfg.Registry,
		logger:            logger,
		preprocessEnabled: cfg.PreprocessEnabled,
		preprocess:        cfg.Preprocess,
		detector:          layout.NewDetector(cfg.Layout),
		sorter:            reading.NewSorter(0, cfg.ColumnMergeThresholdPx),
		weights:           cfg.Weights,
		threshold:         threshold,
		prefer:            cfg.PreferEngine,
		runParallel:       cfg.RunParallel,
		engineTimeout:     cfg.EngineTimeout,
		languages:         cfg.Languages,
		phase:             PhaseIdle,
		limiters:          make(map[string]*engines.RateLimiter),
	}
}

// FromConfig maps file configuration onto an orchestrator.
func FromConfig(cfg *config.Config, reg *engines.Registry, logger *slog.Logger) *Orchestrator {
	return New(Config{
		Registry:          reg,
		Logger:            logger,
		PreprocessEnabled: cfg.Preprocess.Enabled,
		Preprocess: imaging.Options{
			AutoRotate: cfg.Preprocess.AutoRotate,
			Grayscale:  cfg.Preprocess.Grayscale,
			Contrast:   cfg.Preprocess.Contrast,
			Denoise:    cfg.Preprocess.Denoise,
		},
		Layout: layout.DetectorConfig{
			SampleStrips:        cfg.Layout.SampleStrips,
			BrightnessThreshold: uint8(cfg.Layout.BrightnessThreshold),
			MinGapWidthFrac:     cfg.Layout.MinGapWidthFrac,
			ClusterWidthFrac:    cfg.Layout.ClusterWidthFrac,
			StripSupportFrac:    cfg.Layout.StripSupportFrac,
		},
		Weights:                cfg.Scoring,
		ConfidenceThreshold:    cfg.Orchestrate.ConfidenceThreshold,
		PreferEngine:           cfg.Orchestrate.PreferEngine,
		RunParallel:            cfg.Orchestrate.RunParallel,
		EngineTimeout:          cfg.Orchestrate.EngineTimeout(),
		ColumnMergeThresholdPx: cfg.Orchestrate.ColumnMergeThresholdPx,
		Languages:              cfg.Languages,
	})
}

// Status reports the orchestrator's current phase.
func (o *Orchestrator) Status() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	o.logger.Debug("orchestrator phase", "phase", string(p))
}

// Process runs one page through the full pipeline. The returned error is
// non-nil only when no engine could be invoked at all; individual engine
// failures are carried inside the result per the never-throw boundary.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*ocr.OrchestratedResult, error) {
	start := time.Now()

	adapters, err := o.adaptersFor(req.Engines)
	if err != nil {
		o.setPhase(PhaseFailed)
		return nil, err
	}
	names := make([]string, len(adapters))
	for i, ad := range adapters {
		names[i] = ad.Name()
	}

	o.setPhase(PhasePreprocessing)
	page := req.Image
	if o.preprocessEnabled {
		processed, err := imaging.Preprocess(req.Image, o.preprocess)
		if err != nil {
			o.logger.Warn("preprocessing failed, OCR will see the original image",
				"page", req.PageNumber, "error", err)
		}
		page = processed
	}

	cols, columns := o.splitColumns(page, req.ManualColumnCount)

	o.setPhase(PhaseRunning)
	o.logger.Debug("running OCR engines",
		"page", req.PageNumber,
		"engines", names,
		"columns", cols.EstimatedColumns,
		"parallel", o.runParallel)

	hints := req.LanguageHints
	if len(hints) == 0 {
		hints = o.languages
	}

	results := make([]ocr.EngineResult, len(adapters))
	if o.runParallel {
		var wg sync.WaitGroup
		for i, ad := range adapters {
			wg.Add(1)
			go func(i int, ad engines.Adapter) {
				defer wg.Done()
				results[i] = o.runEngine(ctx, ad, page, columns, hints, req.PageNumber)
			}(i, ad)
		}
		wg.Wait()
	} else {
		for i, ad := range adapters {
			results[i] = o.runEngine(ctx, ad, page, columns, hints, req.PageNumber)
		}
	}

	o.setPhase(PhaseScoring)
	threshold := o.threshold
	if req.ConfidenceThreshold > 0 {
		threshold = req.ConfidenceThreshold
	}
	prefer := req.PreferEngine
	if prefer == "" {
		prefer = o.prefer
	}
	scorer := quality.NewScorer(o.weights, threshold)
	best, reason := selectResult(results, scorer, prefer, o.logger)

	classified := classify.Classify(best.Fragments)
	winner := best
	winner.Fragments = classified.Fragments

	res := &ocr.OrchestratedResult{
		SelectedEngine:  winner.EngineID,
		BestResult:      winner,
		AllResults:      results,
		SelectionReason: reason,
		AccuracyMetrics: metricsFor(winner, classified),
		StructuredText:  structure.Build(classified.Fragments),
		Columns:         cols,
	}

	o.setPhase(PhaseSelected)
	o.logger.Info("selected OCR engine",
		"page", req.PageNumber,
		"engine", res.SelectedEngine,
		"confidence", winner.OverallConfidence,
		"reason", reason,
		"elapsed_ms", time.Since(start).Milliseconds())
	return res, nil
}

// adaptersFor resolves the engine set for a request: the named subset in
// request order, or every registered engine in name order.
func (o *Orchestrator) adaptersFor(names []string) ([]engines.Adapter, error) {
	if len(names) == 0 {
		all := o.registry.Engines()
		if len(all) == 0 {
			return nil, fmt.Errorf("no OCR engines registered")
		}
		adapters := make([]engines.Adapter, 0, len(all))
		for _, name := range o.registry.List() {
			adapters = append(adapters, all[name])
		}
		return adapters, nil
	}

	adapters := make([]engines.Adapter, 0, len(names))
	for _, name := range names {
		ad, err := o.registry.Get(name)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, ad)
	}
	return adapters, nil
}
