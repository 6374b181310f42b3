package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidZakaria/cath-archives-sub000/internal/batch"
	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
	"github.com/davidZakaria/cath-archives-sub000/internal/orchestrate"
	"github.com/davidZakaria/cath-archives-sub000/internal/output"
	"github.com/davidZakaria/cath-archives-sub000/internal/svcctx"
)

var (
	processEngines []string
	processPrefer  string
	processColumns int
	processLangs   []string
	processOutDir  string
)

// processSummary is what the process command prints; the full decision
// artifact goes to --out.
type processSummary struct {
	SelectedEngine  string              `json:"selected_engine" yaml:"selected_engine"`
	Confidence      float64             `json:"confidence" yaml:"confidence"`
	SelectionReason string              `json:"selection_reason" yaml:"selection_reason"`
	Columns         int                 `json:"columns" yaml:"columns"`
	EnginesRun      int                 `json:"engines_run" yaml:"engines_run"`
	Metrics         ocr.AccuracyMetrics `json:"metrics" yaml:"metrics"`
	StructuredText  string              `json:"structured_text" yaml:"structured_text"`
}

var processCmd = &cobra.Command{
	Use:   "process <image>",
	Short: "Run one page image through the OCR pipeline",
	Long: `Process a single scanned page.

The page is preprocessed, split into columns, raced across the configured
OCR engines, and the best transcription is reconstructed as markdown.

Examples:
  pageocr process page.png                       # All enabled engines
  pageocr process page.png --engines tesseract   # One engine only
  pageocr process page.png --prefer gvision      # Prefer an engine when it clears the bar
  pageocr process page.png --columns 3           # Skip detection, force 3 columns
  pageocr process page.png --out ./results       # Also write page.md + page.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svcs := svcctx.ServicesFrom(ctx)
		if svcs == nil {
			return fmt.Errorf("services not initialized")
		}

		imgPath := args[0]
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return fmt.Errorf("failed to read page image: %w", err)
		}

		orch := orchestrate.FromConfig(svcs.Config.Get(), svcs.Engines, svcs.Logger)
		result, err := orch.Process(ctx, orchestrate.Request{
			Image:             data,
			PageNumber:        1,
			Engines:           processEngines,
			PreferEngine:      processPrefer,
			ManualColumnCount: processColumns,
			LanguageHints:     processLangs,
		})
		if err != nil {
			return err
		}

		if processOutDir != "" {
			if err := os.MkdirAll(processOutDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := batch.WriteArtifacts(processOutDir, imgPath, result); err != nil {
				return err
			}
		}

		return output.Print(processSummary{
			SelectedEngine:  result.SelectedEngine,
			Confidence:      result.BestResult.OverallConfidence,
			SelectionReason: result.SelectionReason,
			Columns:         result.Columns.EstimatedColumns,
			EnginesRun:      len(result.AllResults),
			Metrics:         result.AccuracyMetrics,
			StructuredText:  result.StructuredText,
		})
	},
}

func init() {
	processCmd.Flags().StringSliceVar(&processEngines, "engines", nil, "Engine subset to run (default: all enabled)")
	processCmd.Flags().StringVar(&processPrefer, "prefer", "", "Prefer this engine when it clears the confidence threshold")
	processCmd.Flags().IntVar(&processColumns, "columns", 0, "Manual column count (0 = auto-detect)")
	processCmd.Flags().StringSliceVar(&processLangs, "langs", nil, "Language hints (default from config)")
	processCmd.Flags().StringVar(&processOutDir, "out", "", "Directory for <page>.md and <page>.json artifacts")

	rootCmd.AddCommand(processCmd)
}
