package engines

import (
	"sort"
	"strings"

	"github.com/davidZakaria/cath-archives-sub000/internal/ocr"
)

// Word is a single recognized word with its box and confidence in the 0..1
// range. Engines that report word-level geometry (Tesseract, Vision APIs)
// convert their native boxes to Words and let LinesFromWords assemble the
// line-level fragments the downstream layout stages expect.
type Word struct {
	Text       string
	Box        ocr.BoundingBox
	Confidence float64
}

// LinesFromWords groups word boxes into visual lines and emits one text
// fragment per line. Words whose vertical centers fall within 60% of the
// taller box's height are considered the same line, which tolerates the
// baseline jitter of diacritics and mixed font sizes. Within a line, words
// are ordered right to left and joined with single spaces.
func LinesFromWords(words []Word) []ocr.TextFragment {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return centerY(sorted[i].Box) < centerY(sorted[j].Box)
	})

	var lines [][]Word
	current := []Word{sorted[0]}
	for _, w := range sorted[1:] {
		if sameLine(current, w) {
			current = append(current, w)
			continue
		}
		lines = append(lines, current)
		current = []Word{w}
	}
	lines = append(lines, current)

	frags := make([]ocr.TextFragment, 0, len(lines))
	for _, line := range lines {
		frags = append(frags, lineFragment(line))
	}
	return frags
}

// sameLine reports whether w belongs to the line accumulated so far.
func sameLine(line []Word, w Word) bool {
	anchor := line[len(line)-1]
	tall := anchor.Box.Height
	if w.Box.Height > tall {
		tall = w.Box.Height
	}
	if tall <= 0 {
		tall = 1
	}
	dist := centerY(w.Box) - centerY(anchor.Box)
	if dist < 0 {
		dist = -dist
	}
	return float64(dist) < 0.6*float64(tall)
}

func centerY(b ocr.BoundingBox) int {
	return b.Y + b.Height/2
}

// lineFragment merges one line of words into a single fragment. Word order
// is right to left to match the page's reading direction.
func lineFragment(line []Word) ocr.TextFragment {
	sort.SliceStable(line, func(i, j int) bool {
		return line[i].Box.X > line[j].Box.X
	})

	minX, minY := line[0].Box.X, line[0].Box.Y
	maxX := line[0].Box.X + line[0].Box.Width
	maxY := line[0].Box.Y + line[0].Box.Height
	var sum float64
	texts := make([]string, 0, len(line))
	for _, w := range line {
		if w.Box.X < minX {
			minX = w.Box.X
		}
		if w.Box.Y < minY {
			minY = w.Box.Y
		}
		if r := w.Box.X + w.Box.Width; r > maxX {
			maxX = r
		}
		if b := w.Box.Y + w.Box.Height; b > maxY {
			maxY = b
		}
		sum += w.Confidence
		if t := strings.TrimSpace(w.Text); t != "" {
			texts = append(texts, t)
		}
	}

	return ocr.TextFragment{
		Text:       strings.Join(texts, " "),
		Confidence: sum / float64(len(line)),
		BoundingBox: ocr.BoundingBox{
			X:      minX,
			Y:      minY,
			Width:  maxX - minX,
			Height: maxY - minY,
		},
	}
}

// MeanConfidence averages fragment confidences, returning 0 for no fragments.
func MeanConfidence(frags []ocr.TextFragment) float64 {
	if len(frags) == 0 {
		return 0
	}
	var sum float64
	for _, f := range frags {
		sum += f.Confidence
	}
	return sum / float64(len(frags))
}
