package imageproc

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
)

// Format is an output encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// ParseFormat accepts the names used in upload configuration. An empty
// string selects JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension written for f, including the dot.
func Extension(f Format) string {
	switch f {
	case PNG:
		return ".png"
	case WebP:
		return ".webp"
	default:
		return ".jpg"
	}
}

// ContentType returns the MIME type of f.
func ContentType(f Format) string {
	switch f {
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

type encodeFunc func(w io.Writer, img image.Image, quality int) error

// encoderFor returns the encoder for f. JPEG output is baseline and PNG
// output is non-interlaced; the standard encoders have no progressive mode.
func encoderFor(f Format) (encodeFunc, error) {
	switch f {
	case JPEG:
		return func(w io.Writer, img image.Image, quality int) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
		}, nil
	case PNG:
		return func(w io.Writer, img image.Image, quality int) error {
			enc := png.Encoder{CompressionLevel: pngCompression(quality)}
			return enc.Encode(w, img)
		}, nil
	case WebP:
		return func(w io.Writer, img image.Image, quality int) error {
			return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// PNG is lossless, so quality only trades size for speed.
func pngCompression(quality int) png.CompressionLevel {
	switch {
	case quality >= 90:
		return png.BestSpeed
	case quality >= 50:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// writeImage encodes into a sibling temp file and renames it into place,
// so a failed encode never leaves a truncated image at path.
func writeImage(path string, img image.Image, format Format, quality int) error {
	encode, err := encoderFor(format)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("imageproc: create output: %w", err)
	}
	if err := encode(f, img, quality); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("imageproc: encode %s: %w", format, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("imageproc: close output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("imageproc: move output: %w", err)
	}
	return nil
}
