// Package classify assigns structural roles to OCR fragments. Roles come
// from each fragment's estimated font size relative to the page average,
// since scanned pages carry no typographic metadata.
package classify

import (
	"math"
	"strings"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

const (
	// DefaultFontSize stands in for the page average on empty pages.
	DefaultFontSize = 16.0

	titleRatio    = 1.8
	subtitleRatio = 1.4
	headingRatio  = 1.2
	captionRatio  = 0.8

	titleMaxWords    = 10
	subtitleMaxWords = 15
	headingMaxWords  = 20

	// Fragments reported as page titles must start within this fraction of
	// the content-height span; mid-page display type stays out of the list.
	titleTopSpanFrac = 0.15

	maxDetectedTitles = 5
)

// Result is the classified page: fragments in their incoming order with
// roles and font sizes filled in, plus page-level aggregates.
type Result struct {
	Fragments       []ocr.TextFragment
	AverageFontSize float64
	DetectedTitles  []string // at most 5, in reading order
}

// LineCount counts the printed lines in a fragment's text.
func LineCount(text string) int {
	return strings.Count(text, "\n") + 1
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateFontSize derives a fragment's font size from its box height and
// line count. OCR boxes wrap their glyphs with leading, so roughly three
// quarters of the per-line height is type.
func EstimateFontSize(f ocr.TextFragment) float64 {
	lines := LineCount(f.Text)
	if lines < 1 {
		lines = 1
	}
	return math.Round(0.75 * float64(f.BoundingBox.Height) / float64(lines))
}

// Classify fills in font sizes and structural roles for a page's sorted
// fragments and collects the detected titles. The input slice is not
// modified; fragment order is preserved.
func Classify(frags []ocr.TextFragment) Result {
	out := make([]ocr.TextFragment, len(frags))
	copy(out, frags)

	if len(out) == 0 {
		return Result{Fragments: out, AverageFontSize: DefaultFontSize}
	}

	sum := 0.0
	for i := range out {
		out[i].EstimatedFontSize = EstimateFontSize(out[i])
		sum += out[i].EstimatedFontSize
	}
	avg := sum / float64(len(out))
	if avg <= 0 {
		avg = DefaultFontSize
	}

	for i := range out {
		out[i].Role = roleFor(out[i].EstimatedFontSize/avg, WordCount(out[i].Text))
	}

	return Result{
		Fragments:       out,
		AverageFontSize: avg,
		DetectedTitles:  detectTitles(out),
	}
}

// roleFor maps a size ratio and word count onto a structural role. Order
// matters: the largest thresholds are checked first.
func roleFor(sizeRatio float64, words int) ocr.Role {
	switch {
	case sizeRatio >= titleRatio && words <= titleMaxWords:
		return ocr.RoleTitle
	case sizeRatio >= subtitleRatio && words <= subtitleMaxWords:
		return ocr.RoleSubtitle
	case sizeRatio >= headingRatio && words <= headingMaxWords:
		return ocr.RoleHeading
	case sizeRatio <= captionRatio:
		return ocr.RoleCaption
	default:
		return ocr.RoleBody
	}
}

// detectTitles collects title and subtitle fragments that start within the
// top of the page's content-height span. The span is measured over the
// fragments themselves, not the raster, so wide margins do not shift it.
func detectTitles(frags []ocr.TextFragment) []string {
	minY, maxY := frags[0].BoundingBox.Y, frags[0].BoundingBox.Y
	for _, f := range frags[1:] {
		if f.BoundingBox.Y < minY {
			minY = f.BoundingBox.Y
		}
		if f.BoundingBox.Y > maxY {
			maxY = f.BoundingBox.Y
		}
	}
	cutoff := float64(minY) + titleTopSpanFrac*float64(maxY-minY)

	var titles []string
	for _, f := range frags {
		if f.Role != ocr.RoleTitle && f.Role != ocr.RoleSubtitle {
			continue
		}
		if float64(f.BoundingBox.Y) > cutoff {
			continue
		}
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		titles = append(titles, text)
		if len(titles) == maxDetectedTitles {
			break
		}
	}
	return titles
}
