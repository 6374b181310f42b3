package imaging

import (
	"image"
	"sort"
)

// normalizeGray rebases a grayscale image to zero origin with a packed
// stride, so filter loops can index Pix directly.
func normalizeGray(g *image.Gray) *image.Gray {
	b := g.Bounds()
	if b.Min.X == 0 && b.Min.Y == 0 && g.Stride == b.Dx() {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[off:off+b.Dx()])
	}
	return out
}

// StretchContrast linearly remaps gray levels so the 1st..99th percentile
// span covers the full 0..255 range. Faded newsprint scans benefit the
// most; already well-spread images pass through nearly unchanged.
func StretchContrast(g *image.Gray) *image.Gray {
	g = normalizeGray(g)
	b := g.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return g
	}

	var hist [256]int
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}

	clip := total / 100
	lo, hi := percentileBounds(hist[:], clip)
	if hi <= lo {
		return g
	}

	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	scale := 255.0 / float64(hi-lo)
	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for i, p := range src {
			v := int(p)
			switch {
			case v <= lo:
				dst[i] = 0
			case v >= hi:
				dst[i] = 255
			default:
				dst[i] = uint8(float64(v-lo) * scale)
			}
		}
	}
	return out
}

// percentileBounds finds the lowest and highest gray levels after clipping
// `clip` pixels from each end of the histogram.
func percentileBounds(hist []int, clip int) (lo, hi int) {
	seen := 0
	lo = 0
	for i, c := range hist {
		seen += c
		if seen > clip {
			lo = i
			break
		}
	}
	seen = 0
	hi = 255
	for i := len(hist) - 1; i >= 0; i-- {
		seen += hist[i]
		if seen > clip {
			hi = i
			break
		}
	}
	return lo, hi
}

// MedianDenoise applies a 3x3 median filter, removing salt-and-pepper
// speckle typical of old scans. Edges keep their original values.
func MedianDenoise(g *image.Gray) *image.Gray {
	g = normalizeGray(g)
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], g.Pix[y*g.Stride:y*g.Stride+w])
	}

	if w < 3 || h < 3 {
		return out
	}

	win := make([]byte, 0, 9)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			win = win[:0]
			for dy := -1; dy <= 1; dy++ {
				row := (y + dy) * g.Stride
				win = append(win, g.Pix[row+x-1], g.Pix[row+x], g.Pix[row+x+1])
			}
			sort.Slice(win, func(i, j int) bool { return win[i] < win[j] })
			out.Pix[y*out.Stride+x] = win[4]
		}
	}
	return out
}
