package layout

import (
	"fmt"
	"image"

	"github.com/davidZakaria/cath-archives-sub000/internal/imaging"
)

// Column is one vertical strip of a page. Strips are ordered right to
// left: index 0 is the rightmost strip, read first in RTL scripts.
type Column struct {
	Index   int         // 0 = rightmost
	Image   image.Image // independent pixel copy, safe for concurrent use
	OffsetX int         // strip's left edge in original page pixels
	Width   int
}

// Split cuts the page into count equal-width vertical strips. Integer
// division leaves a remainder of up to count-1 pixels, which is absorbed
// by the rightmost strip so strip widths always sum to the page width.
// Fragment geometry recognized inside a strip maps back to page space by
// adding the strip's OffsetX.
func Split(img image.Image, count int) ([]Column, error) {
	if count < 2 {
		return nil, fmt.Errorf("column split requires at least 2 columns, got %d", count)
	}
	b := img.Bounds()
	w := b.Dx()
	if w < count {
		return nil, fmt.Errorf("page width %dpx cannot be split into %d columns", w, count)
	}

	base := w / count
	cols := make([]Column, 0, count)
	for i := 0; i < count; i++ {
		var start, end int
		if i == 0 {
			start = base * (count - 1)
			end = w
		} else {
			start = base * (count - 1 - i)
			end = start + base
		}
		crop := imaging.Crop(img, image.Rect(b.Min.X+start, b.Min.Y, b.Min.X+end, b.Max.Y))
		cols = append(cols, Column{
			Index:   i,
			Image:   crop,
			OffsetX: start,
			Width:   end - start,
		})
	}
	return cols, nil
}
