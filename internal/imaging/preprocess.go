package imaging

import "fmt"

// Options controls the preprocessing applied once per page before any
// engine call.
type Options struct {
	AutoRotate bool // normalize EXIF orientation
	Grayscale  bool // convert to 8-bit grayscale
	Contrast   bool // percentile contrast stretch
	Denoise    bool // 3x3 median filter
}

// Preprocess runs the configured enhancement chain over raw page bytes and
// returns PNG bytes for the engines to consume. The returned slice is
// always usable: on any failure the original input is returned unchanged
// together with the error, so callers can log the degradation and keep
// going (fail-open, preprocessing must never block OCR).
func Preprocess(data []byte, opts Options) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return data, err
	}

	if opts.AutoRotate {
		if o := Orientation(data); o != orientNormal {
			img = ApplyOrientation(img, o)
		}
	}

	if opts.Grayscale || opts.Contrast || opts.Denoise {
		g := ToGray(img)
		if opts.Contrast {
			g = StretchContrast(g)
		}
		if opts.Denoise {
			g = MedianDenoise(g)
		}
		img = g
	}

	out, err := EncodePNG(img)
	if err != nil {
		return data, fmt.Errorf("failed to re-encode preprocessed page: %w", err)
	}
	return out, nil
}
