// Package ingest turns scanned magazine issues (PDF files) into the
// per-page PNG layout the rest of the pipeline reads from.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/davidZakaria/cath-archives-sub000/internal/home"
)

// DefaultDPI is the render resolution when a request does not specify one.
// 300 DPI keeps Arabic diacritics legible for OCR without producing
// unmanageably large page images.
const DefaultDPI = 300

// Request contains the parameters for ingesting a scanned issue.
type Request struct {
	PDFPaths []string     // PDF file paths (sorted by numeric suffix before rendering)
	Title    string       // issue title (optional, derived from filename if empty)
	DPI      int          // render resolution (default 300)
	Workers  int          // concurrent page renders (default NumCPU)
	Logger   *slog.Logger // optional logger for progress updates
}

// Result describes a successfully ingested issue.
type Result struct {
	IssueID   string
	Title     string
	PageCount int
}

// Ingest renders every page of the given PDFs into the issue's pages
// directory as page_NNNN.png, numbering sequentially across multi-part
// scans. On failure the partially written issue directory is removed.
func Ingest(ctx context.Context, homeDir *home.Dir, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	if len(req.PDFPaths) == 0 {
		return nil, fmt.Errorf("no PDF paths provided")
	}
	for _, p := range req.PDFPaths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("PDF not found: %s", p)
		}
	}

	dpi := req.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Multi-part scans arrive as issue-1.pdf, issue-2.pdf, ...
	sortedPaths := sortPDFsByNumber(req.PDFPaths)

	title := req.Title
	if title == "" {
		title = deriveTitle(sortedPaths[0])
	}

	issueID := uuid.New().String()
	if err := homeDir.EnsureIssuePagesDir(issueID); err != nil {
		return nil, fmt.Errorf("failed to create pages directory: %w", err)
	}
	outDir := homeDir.IssuePagesDir(issueID)

	cleanup := func() {
		os.RemoveAll(outDir)
		os.RemoveAll(homeDir.OriginalsDir(issueID))
	}

	// Keep the source scans with the issue so pages can be re-rendered
	// later (e.g. at a different DPI) without the upload paths.
	if err := homeDir.EnsureOriginalsDir(issueID); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create originals directory: %w", err)
	}
	for _, pdfPath := range sortedPaths {
		dst := filepath.Join(homeDir.OriginalsDir(issueID), filepath.Base(pdfPath))
		if err := copyFile(pdfPath, dst); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to preserve original %s: %w", filepath.Base(pdfPath), err)
		}
	}

	log.Info("starting ingest",
		"issue_id", issueID,
		"pdfs", len(sortedPaths),
		"title", title,
		"dpi", dpi,
	)

	pageCount := 0
	for i, pdfPath := range sortedPaths {
		log.Debug("rendering PDF", "file", filepath.Base(pdfPath), "part", i+1, "of", len(sortedPaths))
		count, err := extractPages(ctx, pdfPath, outDir, pageCount, dpi, workers)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to render %s: %w", pdfPath, err)
		}
		log.Debug("rendered pages", "count", count, "total", pageCount+count)
		pageCount += count
	}

	if pageCount == 0 {
		cleanup()
		return nil, fmt.Errorf("no pages rendered from PDFs")
	}

	log.Info("ingest complete", "issue_id", issueID, "pages", pageCount)

	return &Result{
		IssueID:   issueID,
		Title:     title,
		PageCount: pageCount,
	}, nil
}

// IsPDF reports whether the path looks like a PDF file.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}

// extractPages renders all pages of one PDF into outDir, numbering from
// pageOffset+1. Pages render concurrently, bounded by workers.
func extractPages(ctx context.Context, pdfPath, outDir string, pageOffset, dpi, workers int) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	// Library scans are often permission-restricted; render from a
	// decrypted copy when the original will not validate.
	workingPath, err := preparePDF(pdfPath, conf)
	if err != nil {
		return 0, err
	}
	if workingPath != pdfPath {
		defer os.Remove(workingPath)
	}

	f, err := os.Open(workingPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount, err := api.PageCount(f, conf)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, workers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageInPDF int) {
			defer func() { <-sem }() // release
			err := renderPage(ctx, workingPath, outDir, pageInPDF, pageOffset+pageInPDF, dpi)
			results <- result{pageNum: pageInPDF, err: err}
		}(page)
	}

	// Drain every result so no goroutine still holds the working copy
	// when the deferred cleanup runs.
	rendered := 0
	var firstErr error
	for i := 0; i < pageCount; i++ {
		r := <-results
		switch {
		case r.err != nil && firstErr == nil:
			firstErr = fmt.Errorf("failed to render page %d: %w", r.pageNum, r.err)
		case r.err == nil:
			rendered++
		}
	}
	if firstErr != nil {
		return 0, firstErr
	}

	return rendered, nil
}

// preparePDF returns a path to a renderable copy of the PDF. When the file
// fails relaxed validation it is decrypted into a temp file, which the
// caller must remove.
func preparePDF(pdfPath string, conf *model.Configuration) (string, error) {
	if err := api.ValidateFile(pdfPath, conf); err == nil {
		return pdfPath, nil
	}

	tmp, err := os.CreateTemp("", "pageocr-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := api.DecryptFile(pdfPath, tmpPath, conf); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to decrypt PDF: %w", err)
	}

	return tmpPath, nil
}

// renderPage renders a single page via pdftoppm (poppler-utils), which
// rasterizes the page as displayed. Extracting embedded image objects is
// not reliable here: their internal numbering may not match page order.
func renderPage(ctx context.Context, pdfPath, outDir string, pageInPDF, outputPageNum, dpi int) error {
	tmpDir, err := os.MkdirTemp("", "pageocr-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -singlefile drops pdftoppm's page number suffix; sequential naming
	// across multi-part scans is handled below.
	pageStr := strconv.Itoa(pageInPDF)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	if _, err := os.Stat(srcPath); err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read rendered page: %w", err)
	}

	dstPath := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", outputPageNum))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page image: %w", err)
	}

	return nil
}

// sortPDFsByNumber sorts PDF paths by their numeric suffix.
// e.g., ["issue-2.pdf", "issue-1.pdf", "issue-10.pdf"] -> ["issue-1.pdf", "issue-2.pdf", "issue-10.pdf"]
func sortPDFsByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	re := regexp.MustCompile(`-(\d+)\.pdf$`)

	sort.Slice(sorted, func(i, j int) bool {
		mi := re.FindStringSubmatch(sorted[i])
		mj := re.FindStringSubmatch(sorted[j])

		// If both have numbers, sort numerically
		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			return ni < nj
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		// Both without numbers: alphabetical
		return sorted[i] < sorted[j]
	})

	return sorted
}

// deriveTitle extracts a title from a PDF filename, dropping the part
// number carried by multi-part scans.
// e.g., "al-hilal.pdf" -> "al-hilal"
// e.g., "al-hilal-2.pdf" -> "al-hilal"
func deriveTitle(pdfPath string) string {
	base := filepath.Base(pdfPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	// Remove numeric suffix like "-1", "-2", etc.
	re := regexp.MustCompile(`-\d+$`)
	name = re.ReplaceAllString(name, "")

	return name
}
