// Package batch runs the OCR pipeline across whole issues: a bounded pool
// of workers feeds page images through the orchestrator, failed pages are
// retried with backoff, and per-page artifacts land next to an aggregate
// summary. Retry policy lives here, not in the orchestrator.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
	"github.com/davidZakaria/cath-archives-sub000/internal/orchestrate"
	"github.com/davidZakaria/cath-archives-sub000/internal/quality"
)

const (
	// DefaultPageRetries is the number of extra attempts for a failed page.
	DefaultPageRetries = 2

	// defaultRetryDelay is the base delay for the exponential backoff
	// between page attempts.
	defaultRetryDelay = time.Second

	// SummaryFileName is written to the output directory after every run.
	SummaryFileName = "summary.json"
)

// Config configures a batch runner.
type Config struct {
	Orchestrator *orchestrate.Orchestrator
	Logger       *slog.Logger
	Workers      int             // concurrent pages (default: runtime.NumCPU())
	PageRetries  int             // extra attempts per failed page (negative: default 2, zero: none)
	RetryDelay   time.Duration   // base backoff delay (default: 1s)
	Weights      quality.Weights // scoring weights for the summary statistics
}

// Runner processes lists of page images through a shared orchestrator.
type Runner struct {
	orch       *orchestrate.Orchestrator
	logger     *slog.Logger
	workers    int
	retries    int
	retryDelay time.Duration
	scorer     *quality.Scorer
}

// New creates a batch runner. cfg.Orchestrator must be set.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	retries := cfg.PageRetries
	if retries < 0 {
		retries = DefaultPageRetries
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	weights := cfg.Weights
	if weights == (quality.Weights{}) {
		weights = quality.DefaultWeights()
	}

	return &Runner{
		orch:       cfg.Orchestrator,
		logger:     logger,
		workers:    workers,
		retries:    retries,
		retryDelay: retryDelay,
		scorer:     quality.NewScorer(weights, quality.DefaultConfidenceThreshold),
	}
}

// Request describes one batch run.
type Request struct {
	IssueID           string   // recorded in the summary (optional)
	PagePaths         []string // page images in reading order
	OutDir            string   // destination for per-page artifacts and the summary
	Engines           []string // engine subset (empty = all registered)
	Prefer            string   // preferred engine override
	Languages         []string // language hints
	ManualColumnCount int      // manual column override for uniform layouts
}

// PageResult records the outcome of one page.
type PageResult struct {
	Page       int     `json:"page"` // 1-indexed position in the request
	Image      string  `json:"image"`
	Engine     string  `json:"engine,omitempty"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
	Attempts   int     `json:"attempts"`
	DurationMs int64   `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// Summary aggregates a finished batch run. Mean values cover succeeded
// pages only.
type Summary struct {
	JobID          string       `json:"job_id"`
	IssueID        string       `json:"issue_id,omitempty"`
	Pages          int          `json:"pages"`
	Succeeded      int          `json:"succeeded"`
	Failed         int          `json:"failed"`
	MeanConfidence float64      `json:"mean_confidence"`
	MeanScore      float64      `json:"mean_score"`
	StartedAt      time.Time    `json:"started_at"`
	WallTimeMs     int64        `json:"wall_time_ms"`
	Results        []PageResult `json:"results"`
}

// Run processes every page in the request and writes <page>.md,
// <page>.json, and summary.json into req.OutDir. Pages already in flight
// finish when the context is cancelled; unstarted pages are recorded as
// cancelled and the context error is returned alongside the summary.
func (r *Runner) Run(ctx context.Context, req Request) (*Summary, error) {
	if len(req.PagePaths) == 0 {
		return nil, fmt.Errorf("no pages to process")
	}
	if req.OutDir == "" {
		return nil, fmt.Errorf("no output directory provided")
	}
	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	jobID := uuid.New().String()
	log := r.logger.With("job_id", jobID)
	start := time.Now()

	log.Info("starting batch run",
		"issue_id", req.IssueID,
		"pages", len(req.PagePaths),
		"workers", r.workers,
		"retries", r.retries,
	)

	results := make([]PageResult, len(req.PagePaths))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	cancelled := false
	for i, path := range req.PagePaths {
		if ctx.Err() != nil {
			cancelled = true
		}
		if !cancelled {
			select {
			case <-ctx.Done():
				cancelled = true
			case sem <- struct{}{}: // acquire
			}
		}
		if cancelled {
			results[i] = PageResult{Page: i + 1, Image: path, Error: "cancelled"}
			continue
		}

		wg.Add(1)
		go func(idx int, imgPath string) {
			defer wg.Done()
			defer func() { <-sem }() // release
			results[idx] = r.processPage(ctx, log, req, idx+1, imgPath)
		}(i, path)
	}
	wg.Wait()

	summary := r.summarize(jobID, req.IssueID, start, results)
	if err := writeSummary(req.OutDir, summary); err != nil {
		return summary, err
	}

	log.Info("batch run complete",
		"pages", summary.Pages,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"wall_time_ms", summary.WallTimeMs,
	)

	if cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// processPage pushes one page through the orchestrator, retrying when the
// page produced no usable result at all. A degraded result that survives
// all attempts is still written out for review, but counts as a failure.
func (r *Runner) processPage(ctx context.Context, log *slog.Logger, req Request, pageNum int, imgPath string) PageResult {
	start := time.Now()
	pr := PageResult{Page: pageNum, Image: imgPath}

	data, err := os.ReadFile(imgPath)
	if err != nil {
		pr.Error = fmt.Sprintf("read page image: %v", err)
		pr.DurationMs = time.Since(start).Milliseconds()
		return pr
	}

	var result *ocr.OrchestratedResult
	attempts := 0
	err = retry.Do(
		func() error {
			attempts++
			res, perr := r.orch.Process(ctx, orchestrate.Request{
				Image:             data,
				PageNumber:        pageNum,
				Engines:           req.Engines,
				PreferEngine:      req.Prefer,
				LanguageHints:     req.Languages,
				ManualColumnCount: req.ManualColumnCount,
			})
			if perr != nil {
				return perr
			}
			result = res
			if res.BestResult.Failed() {
				return fmt.Errorf("all engines failed: %s", res.BestResult.Error)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.retries+1)),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retrying page", "page", pageNum, "attempt", n+1, "error", err)
		}),
	)

	pr.Attempts = attempts
	pr.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		pr.Error = err.Error()
	}
	if result == nil {
		return pr
	}

	// Even a degraded result is worth keeping: reviewers can often
	// salvage a partial transcription.
	pr.Engine = result.SelectedEngine
	pr.Confidence = result.BestResult.OverallConfidence
	pr.Score = r.scorer.Score(result.BestResult)
	if werr := WriteArtifacts(req.OutDir, imgPath, result); werr != nil && pr.Error == "" {
		pr.Error = werr.Error()
	}

	log.Debug("page processed",
		"page", pageNum,
		"engine", pr.Engine,
		"confidence", pr.Confidence,
		"attempts", pr.Attempts,
		"error", pr.Error,
	)
	return pr
}

// WriteArtifacts writes <page>.md with the structured text and <page>.json
// with the full decision artifact, named after the page image.
func WriteArtifacts(outDir, imgPath string, result *ocr.OrchestratedResult) error {
	base := strings.TrimSuffix(filepath.Base(imgPath), filepath.Ext(imgPath))

	mdPath := filepath.Join(outDir, base+".md")
	if err := os.WriteFile(mdPath, []byte(result.StructuredText), 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	jsonPath := filepath.Join(outDir, base+".json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}

// summarize folds page results into the aggregate record.
func (r *Runner) summarize(jobID, issueID string, start time.Time, results []PageResult) *Summary {
	s := &Summary{
		JobID:     jobID,
		IssueID:   issueID,
		Pages:     len(results),
		StartedAt: start.UTC(),
		Results:   results,
	}

	var confSum, scoreSum float64
	for _, pr := range results {
		if pr.Error == "" {
			s.Succeeded++
			confSum += pr.Confidence
			scoreSum += pr.Score
		} else {
			s.Failed++
		}
	}
	if s.Succeeded > 0 {
		s.MeanConfidence = confSum / float64(s.Succeeded)
		s.MeanScore = scoreSum / float64(s.Succeeded)
	}
	s.WallTimeMs = time.Since(start).Milliseconds()

	return s
}

func writeSummary(outDir string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	path := filepath.Join(outDir, SummaryFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
