// Package testutil builds synthetic page images for tests. All builders
// are deterministic: fixed inputs produce byte-identical rasters, so
// layout and pipeline assertions stay stable across runs.
package testutil

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

const (
	// PaperShade approximates scanned newsprint background.
	PaperShade uint8 = 245
	// InkShade approximates printed text pixels.
	InkShade uint8 = 40
)

// Band is one filled rectangle of "ink" on a synthetic page.
type Band struct {
	X, Y, W, H int
	Shade      uint8
}

// Page builds a grayscale page of the given size filled with background,
// then stamps each band over it.
func Page(w, h int, background uint8, bands ...Band) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = background
	}
	for _, b := range bands {
		stamp(g, b)
	}
	return g
}

func stamp(g *image.Gray, b Band) {
	maxX, maxY := g.Bounds().Dx(), g.Bounds().Dy()
	for y := b.Y; y < b.Y+b.H && y < maxY; y++ {
		for x := b.X; x < b.X+b.W && x < maxX; x++ {
			if x >= 0 && y >= 0 {
				g.Pix[y*g.Stride+x] = b.Shade
			}
		}
	}
}

// SolidPage builds a page of uniform shade. A dark solid page has no
// whitespace gaps at all.
func SolidPage(w, h int, shade uint8) *image.Gray {
	return Page(w, h, shade)
}

// TwoColumnPage builds a page with two full-height ink columns separated
// by a clear background gap of gapFrac page width, centered at x = w/2.
// The ink reaches both page edges so the gap is the only bright run.
func TwoColumnPage(w, h int, gapFrac float64) *image.Gray {
	gap := int(float64(w) * gapFrac)
	gapStart := (w - gap) / 2
	return Page(w, h, PaperShade,
		Band{X: 0, Y: 0, W: gapStart, H: h, Shade: InkShade},
		Band{X: gapStart + gap, Y: 0, W: w - gapStart - gap, H: h, Shade: InkShade},
	)
}

// ThreeColumnPage builds a page with three ink columns and two clear gaps.
func ThreeColumnPage(w, h int, gapFrac float64) *image.Gray {
	gap := int(float64(w) * gapFrac)
	colW := (w - 2*gap) / 3
	return Page(w, h, PaperShade,
		Band{X: 0, Y: 0, W: colW, H: h, Shade: InkShade},
		Band{X: colW + gap, Y: 0, W: colW, H: h, Shade: InkShade},
		Band{X: 2*(colW+gap), Y: 0, W: w - 2*(colW+gap), H: h, Shade: InkShade},
	)
}

// PNG encodes an image for code paths that take raw page bytes.
func PNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}
