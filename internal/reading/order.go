// Package reading orders OCR fragments into human reading sequence:
// top to bottom down the page, right to left within a line, matching how
// Arabic-script magazine columns are read.
package reading

import (
	"sort"
	"strings"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

const (
	// DefaultLineTolerancePx treats fragments whose Y positions differ by
	// at most this much as sitting on the same printed line.
	DefaultLineTolerancePx = 20

	// DefaultColumnMergeThresholdPx is how closely two columns' topmost
	// fragments must align for the columns to count as starting together.
	// Calibrate against real scans before trusting it.
	DefaultColumnMergeThresholdPx = 200
)

// Sorter arranges text fragments into reading order. The comparator is the
// single ordering mechanism; the post-sort inversion check exists only to
// catch engines reporting an upside-down coordinate system.
type Sorter struct {
	lineTolerance        int
	columnMergeThreshold int
}

// NewSorter creates a sorter. Non-positive arguments select the defaults.
func NewSorter(lineTolerancePx, columnMergeThresholdPx int) *Sorter {
	if lineTolerancePx <= 0 {
		lineTolerancePx = DefaultLineTolerancePx
	}
	if columnMergeThresholdPx <= 0 {
		columnMergeThresholdPx = DefaultColumnMergeThresholdPx
	}
	return &Sorter{
		lineTolerance:        lineTolerancePx,
		columnMergeThreshold: columnMergeThresholdPx,
	}
}

// Sort orders the fragments of one column (or a single-column page):
// lines top to bottom, fragments right to left within a line. The input
// slice is not modified.
func (s *Sorter) Sort(frags []ocr.TextFragment) []ocr.TextFragment {
	if len(frags) < 2 {
		return append([]ocr.TextFragment(nil), frags...)
	}

	out := make([]ocr.TextFragment, 0, len(frags))
	for _, line := range s.groupLines(frags) {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].BoundingBox.X > line[j].BoundingBox.X
		})
		out = append(out, line...)
	}

	s.reverseIfInverted(out)
	return out
}

// groupLines sorts fragments by Y and buckets together those whose Y falls
// within the line tolerance of the bucket's first member.
func (s *Sorter) groupLines(frags []ocr.TextFragment) [][]ocr.TextFragment {
	sorted := append([]ocr.TextFragment(nil), frags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BoundingBox.Y < sorted[j].BoundingBox.Y
	})

	var lines [][]ocr.TextFragment
	var cur []ocr.TextFragment
	anchor := 0
	for _, f := range sorted {
		if cur == nil || f.BoundingBox.Y-anchor > s.lineTolerance {
			if cur != nil {
				lines = append(lines, cur)
			}
			cur = []ocr.TextFragment{f}
			anchor = f.BoundingBox.Y
		} else {
			cur = append(cur, f)
		}
	}
	if cur != nil {
		lines = append(lines, cur)
	}
	return lines
}

// reverseIfInverted flips the whole sequence when the first fragment sits
// clearly below the last one. After the comparator has run this cannot
// happen; it guards against future engines feeding inverted Y axes through
// a different path.
func (s *Sorter) reverseIfInverted(frags []ocr.TextFragment) {
	if len(frags) < 2 {
		return
	}
	first := frags[0].BoundingBox.Y
	last := frags[len(frags)-1].BoundingBox.Y
	if first > last+s.lineTolerance {
		for i, j := 0, len(frags)-1; i < j; i, j = i+1, j-1 {
			frags[i], frags[j] = frags[j], frags[i]
		}
	}
}

// SortColumns sorts each column's fragments independently, then
// concatenates the columns. Columns whose topmost fragments start within
// the merge threshold of each other read in pure right-to-left index
// order; when the vertical spread exceeds the threshold, the visibly
// higher column reads first instead, so a slightly lower-starting column
// never jumps the queue but a far-lower one does not mask a banner that
// spans the top of its neighbor.
func (s *Sorter) SortColumns(columns [][]ocr.TextFragment) []ocr.TextFragment {
	type sortedColumn struct {
		index int
		frags []ocr.TextFragment
		topY  int
	}

	cols := make([]sortedColumn, 0, len(columns))
	total := 0
	for i, frags := range columns {
		if len(frags) == 0 {
			continue
		}
		sorted := s.Sort(frags)
		top := sorted[0].BoundingBox.Y
		for _, f := range sorted {
			if f.BoundingBox.Y < top {
				top = f.BoundingBox.Y
			}
		}
		cols = append(cols, sortedColumn{index: i, frags: sorted, topY: top})
		total += len(sorted)
	}
	if len(cols) == 0 {
		return nil
	}

	aligned := true
	minTop, maxTop := cols[0].topY, cols[0].topY
	for _, c := range cols[1:] {
		if c.topY < minTop {
			minTop = c.topY
		}
		if c.topY > maxTop {
			maxTop = c.topY
		}
	}
	if maxTop-minTop >= s.columnMergeThreshold {
		aligned = false
	}

	sort.SliceStable(cols, func(i, j int) bool {
		if aligned {
			return cols[i].index < cols[j].index
		}
		if cols[i].topY != cols[j].topY {
			return cols[i].topY < cols[j].topY
		}
		return cols[i].index < cols[j].index
	})

	out := make([]ocr.TextFragment, 0, total)
	for _, c := range cols {
		out = append(out, c.frags...)
	}
	return out
}

// JoinText assembles plain page text from sorted fragments. Fragments are
// separated by single line breaks; a column transition inserts a double
// break and nothing else.
func JoinText(frags []ocr.TextFragment) string {
	var b strings.Builder
	for i, f := range frags {
		if i > 0 {
			if frags[i-1].Column != f.Column {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(f.Text)
	}
	return b.String()
}
