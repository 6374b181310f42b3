package imaging

import (
	"bytes"
	"image"

	"github.com/rwcarlsen/goexif/exif"
)

// EXIF orientation values (EXIF 2.2, tag 0x0112).
const (
	orientNormal      = 1
	orientFlipH       = 2
	orientRotate180   = 3
	orientFlipV       = 4
	orientTranspose   = 5 // flip horizontal, then rotate 270 CW
	orientRotate90CW  = 6
	orientTransverse  = 7 // flip horizontal, then rotate 90 CW
	orientRotate270CW = 8
)

// Orientation reads the EXIF orientation tag from raw image bytes.
// Returns orientNormal when the image carries no EXIF data (PNG scans,
// stripped JPEGs), so callers can apply the result unconditionally.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return orientNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return orientNormal
	}
	o, err := tag.Int(0)
	if err != nil || o < orientNormal || o > orientRotate270CW {
		return orientNormal
	}
	return o
}

// ApplyOrientation returns img transformed so that a viewer sees it
// upright. This is the only rotation the pipeline performs; skew-angle
// detection is out of scope.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case orientFlipH:
		return flipH(img)
	case orientRotate180:
		return rotate180(img)
	case orientFlipV:
		return flipV(img)
	case orientTranspose:
		return rotate270(flipH(img))
	case orientRotate90CW:
		return rotate90(img)
	case orientTransverse:
		return rotate90(flipH(img))
	case orientRotate270CW:
		return rotate270(img)
	default:
		return img
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x-b.Min.X, img.At(x, y))
		}
	}
	return dst
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y-b.Min.Y, b.Max.X-1-x, img.At(x, y))
		}
	}
	return dst
}

func flipH(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, y-b.Min.Y, img.At(x, y))
		}
	}
	return dst
}

func flipV(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}
