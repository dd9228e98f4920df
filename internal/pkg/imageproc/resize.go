package imageproc

import (
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
)

// CoverResize scales img so it covers a width x height box and crops the
// overflow around the centre. The result is always exactly width x height;
// the aspect ratio is never distorted and nothing is letterboxed.
func CoverResize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if width <= 0 || height <= 0 || sw == 0 || sh == 0 {
		return img
	}

	scale := math.Max(float64(width)/float64(sw), float64(height)/float64(sh))
	rw := max(int(math.Ceil(float64(sw)*scale)), width)
	rh := max(int(math.Ceil(float64(sh)*scale)), height)

	scaled := resize.Resize(uint(rw), uint(rh), img, resize.Lanczos3)
	sb := scaled.Bounds()
	offset := image.Pt(sb.Min.X+(sb.Dx()-width)/2, sb.Min.Y+(sb.Dy()-height)/2)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), scaled, offset, draw.Src)
	return dst
}
