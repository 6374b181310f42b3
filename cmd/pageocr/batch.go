package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidZakaria/cath-archives-sub000/internal/batch"
	"github.com/davidZakaria/cath-archives-sub000/internal/ingest"
	"github.com/davidZakaria/cath-archives-sub000/internal/orchestrate"
	"github.com/davidZakaria/cath-archives-sub000/internal/output"
	"github.com/davidZakaria/cath-archives-sub000/internal/svcctx"
)

var (
	batchWorkers int
	batchRetries int
	batchEngines []string
	batchPrefer  string
	batchLangs   []string
	batchColumns int
	batchOutDir  string
)

var batchCmd = &cobra.Command{
	Use:   "batch <path>...",
	Short: "Process whole issues: image directories or scanned PDFs",
	Long: `Process every page of one or more issues.

Each path may be a directory of page images, a scanned PDF, or a single
image. PDFs are ingested first: pages are rendered to PNG under the
pageocr home directory, then processed like any other issue. Results are
written as <page>.md and <page>.json next to a summary.json.

Examples:
  pageocr batch ./scans/issue-03/          # Directory of page images
  pageocr batch al-hilal-1903.pdf          # Scanned PDF
  pageocr batch a.pdf b.pdf --workers 8    # Several issues, more workers`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svcs := svcctx.ServicesFrom(ctx)
		if svcs == nil {
			return fmt.Errorf("services not initialized")
		}
		cfg := svcs.Config.Get()

		workers := batchWorkers
		if workers <= 0 {
			workers = cfg.Batch.Workers
		}
		retries := batchRetries
		if retries < 0 {
			retries = cfg.Batch.PageRetries
		}

		runner := batch.New(batch.Config{
			Orchestrator: orchestrate.FromConfig(cfg, svcs.Engines, svcs.Logger),
			Logger:       svcs.Logger,
			Workers:      workers,
			PageRetries:  retries,
			Weights:      cfg.Scoring,
		})

		summaries := make([]*batch.Summary, 0, len(args))
		for _, path := range args {
			summary, err := runBatchTarget(ctx, svcs, runner, path)
			if err != nil {
				return err
			}
			summaries = append(summaries, summary)
		}

		return output.Print(summaries)
	},
}

// runBatchTarget resolves one CLI argument into a page list and output
// directory, ingesting PDFs along the way, and runs it.
func runBatchTarget(ctx context.Context, svcs *svcctx.Services, runner *batch.Runner, path string) (*batch.Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}

	req := batch.Request{
		Engines:           batchEngines,
		Prefer:            batchPrefer,
		Languages:         batchLangs,
		ManualColumnCount: batchColumns,
	}

	switch {
	case !info.IsDir() && ingest.IsPDF(path):
		if err := svcs.Home.EnsureExists(); err != nil {
			return nil, err
		}
		res, err := ingest.Ingest(ctx, svcs.Home, ingest.Request{
			PDFPaths: []string{path},
			DPI:      svcs.Config.Get().Ingest.RenderDPI,
			Logger:   svcs.Logger,
		})
		if err != nil {
			return nil, err
		}
		req.IssueID = res.IssueID
		req.PagePaths = svcs.Home.PagePaths(res.IssueID, res.PageCount)
		req.OutDir = svcs.Home.IssueOutputDir(res.IssueID)

	case info.IsDir():
		pages, err := listPageImages(path)
		if err != nil {
			return nil, err
		}
		req.PagePaths = pages
		req.OutDir = filepath.Join(path, "ocr-output")

	default:
		req.PagePaths = []string{path}
		req.OutDir = filepath.Join(filepath.Dir(path), "ocr-output")
	}

	if batchOutDir != "" {
		req.OutDir = filepath.Join(batchOutDir, targetName(path))
	}

	return runner.Run(ctx, req)
}

// listPageImages collects the page images in a directory, sorted by name
// so page_0001.png style scans keep their order.
func listPageImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", dir, err)
	}

	var pages []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			pages = append(pages, filepath.Join(dir, e.Name()))
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page images in %s", dir)
	}
	sort.Strings(pages)

	return pages, nil
}

// targetName derives a stable output subdirectory name for a CLI argument.
func targetName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func init() {
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Concurrent pages (default from config, 0 = NumCPU)")
	batchCmd.Flags().IntVar(&batchRetries, "retries", -1, "Extra attempts per failed page (default from config)")
	batchCmd.Flags().StringSliceVar(&batchEngines, "engines", nil, "Engine subset to run (default: all enabled)")
	batchCmd.Flags().StringVar(&batchPrefer, "prefer", "", "Prefer this engine when it clears the confidence threshold")
	batchCmd.Flags().StringSliceVar(&batchLangs, "langs", nil, "Language hints (default from config)")
	batchCmd.Flags().IntVar(&batchColumns, "columns", 0, "Manual column count for every page (0 = auto-detect)")
	batchCmd.Flags().StringVar(&batchOutDir, "out", "", "Root directory for per-issue results")

	rootCmd.AddCommand(batchCmd)
}
