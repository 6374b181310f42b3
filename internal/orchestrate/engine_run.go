package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davidZakaria/cath-archives-sub000/internal/engines"
	"github.com/davidZakaria/cath-archives-sub000/internal/imaging"
	"github.com/davidZakaria/cath-archives-sub000/internal/layout"
	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
	"github.com/davidZakaria/cath-archives-sub000/internal/reading"
)

// pageColumn is one pre-encoded column strip ready for adapter calls. The
// bytes are immutable and shared across all engines.
type pageColumn struct {
	index   int
	offsetX int
	png     []byte
}

// splitColumns decides the page layout and, for multi-column pages,
// prepares one PNG buffer per column strip. Any failure along the way
// degrades to whole-page processing; layout trouble is never fatal.
func (o *Orchestrator) splitColumns(page []byte, manual int) (ocr.ColumnDetectionResult, []pageColumn) {
	img, err := imaging.Decode(page)
	if err != nil {
		o.logger.Warn("page not decodable for layout detection, assuming single column", "error", err)
		res := ocr.ColumnDetectionResult{EstimatedColumns: 1}
		if manual > 0 {
			res = ocr.ColumnDetectionResult{
				HasColumns:       manual > 1,
				EstimatedColumns: manual,
				Confidence:       1.0,
			}
		}
		return res, nil
	}

	cols := o.detector.Detect(imaging.ToGray(img), manual)
	if cols.EstimatedColumns <= 1 {
		return cols, nil
	}

	strips, err := layout.Split(img, cols.EstimatedColumns)
	if err != nil {
		o.logger.Warn("column split failed, processing whole page",
			"columns", cols.EstimatedColumns, "error", err)
		return cols, nil
	}

	out := make([]pageColumn, 0, len(strips))
	for _, s := range strips {
		buf, err := imaging.EncodePNG(s.Image)
		if err != nil {
			o.logger.Warn("column encode failed, processing whole page",
				"column", s.Index, "error", err)
			return cols, nil
		}
		out = append(out, pageColumn{index: s.Index, offsetX: s.OffsetX, png: buf})
	}
	return cols, out
}

// runEngine produces one engine's full-page result: a single call for a
// one-column page, one call per column strip otherwise, with fragments
// translated back to page space and ordered for reading. A deadline hit
// anywhere inside the engine's window is reported as a plain "timeout".
func (o *Orchestrator) runEngine(ctx context.Context, ad engines.Adapter, page []byte, columns []pageColumn, hints []string, pageNum int) ocr.EngineResult {
	start := time.Now()

	runCtx := ctx
	if o.engineTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.engineTimeout)
		defer cancel()
	}

	var res ocr.EngineResult
	if len(columns) == 0 {
		res = o.callAdapter(runCtx, ad, ocr.PageRequest{
			Image:         page,
			LanguageHints: hints,
			PageNumber:    pageNum,
		})
		if !res.Failed() {
			res.Fragments = o.sorter.Sort(res.Fragments)
		}
	} else {
		res = o.runEngineColumns(runCtx, ad, columns, hints, pageNum)
	}

	if res.Failed() && runCtx.Err() == context.DeadlineExceeded {
		o.logger.Warn("engine timed out",
			"engine", ad.Name(), "page", pageNum, "timeout", o.engineTimeout)
		return ocr.ErrorResult(ad.Name(), "timeout", time.Since(start))
	}
	if res.Failed() {
		o.logger.Debug("engine failed",
			"engine", ad.Name(), "page", pageNum, "error", res.Error)
	} else {
		o.logger.Debug("engine completed",
			"engine", ad.Name(),
			"page", pageNum,
			"confidence", res.OverallConfidence,
			"fragments", len(res.Fragments),
			"elapsed_ms", res.ProcessingTimeMs)
	}
	return res
}

// runEngineColumns runs one engine over every column strip and merges the
// column results into a single page result. Fragment geometry comes back
// column-relative and is translated to page space here; the merged
// confidence is the mean over columns that produced a result.
func (o *Orchestrator) runEngineColumns(ctx context.Context, ad engines.Adapter, columns []pageColumn, hints []string, pageNum int) ocr.EngineResult {
	start := time.Now()

	colResults := make([]ocr.EngineResult, len(columns))
	call := func(i int, col pageColumn) {
		colResults[i] = o.callAdapter(ctx, ad, ocr.PageRequest{
			Image:         col.png,
			LanguageHints: hints,
			PageNumber:    pageNum,
		})
	}
	if o.runParallel {
		var wg sync.WaitGroup
		for i, col := range columns {
			wg.Add(1)
			go func(i int, col pageColumn) {
				defer wg.Done()
				call(i, col)
			}(i, col)
		}
		wg.Wait()
	} else {
		for i, col := range columns {
			call(i, col)
		}
	}

	perColumn := make([][]ocr.TextFragment, len(columns))
	var confSum float64
	succeeded := 0
	firstErr := ""
	for i, cr := range colResults {
		if cr.Failed() {
			if firstErr == "" {
				firstErr = cr.Error
			}
			o.logger.Debug("column OCR failed",
				"engine", ad.Name(), "column", columns[i].index, "error", cr.Error)
			continue
		}
		frags := make([]ocr.TextFragment, len(cr.Fragments))
		for j, f := range cr.Fragments {
			f.BoundingBox = f.BoundingBox.Translate(columns[i].offsetX, 0)
			f.Column = columns[i].index
			frags[j] = f
		}
		perColumn[columns[i].index] = frags
		confSum += cr.OverallConfidence
		succeeded++
	}

	if succeeded == 0 {
		if firstErr == "" {
			firstErr = "no column produced a result"
		}
		return ocr.ErrorResult(ad.Name(), firstErr, time.Since(start))
	}

	sorted := o.sorter.SortColumns(perColumn)
	return ocr.EngineResult{
		EngineID:          ad.Name(),
		FullText:          reading.JoinText(sorted),
		OverallConfidence: confSum / float64(succeeded),
		Fragments:         sorted,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	}
}

// callAdapter gates the call through the engine's rate limiter, when it
// declares one, then invokes it. Limiter waits honor ctx so a timed-out
// engine surfaces as a timeout rather than a stuck queue.
func (o *Orchestrator) callAdapter(ctx context.Context, ad engines.Adapter, req ocr.PageRequest) ocr.EngineResult {
	if lim := o.limiterFor(ad); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return ocr.ErrorResult(ad.Name(), fmt.Sprintf("rate limit wait: %v", err), 0)
		}
	}
	return ad.Run(ctx, req)
}

// limiterFor returns the shared token bucket for a rate-limited engine,
// creating it on first use. Local engines declare zero and run unlimited.
func (o *Orchestrator) limiterFor(ad engines.Adapter) *engines.RateLimiter {
	rps := ad.RequestsPerSecond()
	if rps <= 0 {
		return nil
	}

	o.limMu.Lock()
	defer o.limMu.Unlock()
	lim, ok := o.limiters[ad.Name()]
	if !ok {
		lim = engines.NewRateLimiter(rps)
		o.limiters[ad.Name()] = lim
	}
	return lim
}

// LimiterStatus reports live rate-limiter state keyed by engine name.
// Engines that have not made a rate-limited call yet are absent.
func (o *Orchestrator) LimiterStatus() map[string]engines.RateLimiterStatus {
	o.limMu.Lock()
	defer o.limMu.Unlock()
	out := make(map[string]engines.RateLimiterStatus, len(o.limiters))
	for name, lim := range o.limiters {
		out[name] = lim.Status()
	}
	return out
}
