// Package imageproc turns uploaded image files into web-ready assets:
// decode, optional cover-crop resize, re-encode and a square thumbnail.
package imageproc

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

const (
	DefaultQuality          = 80
	DefaultThumbnailSize    = 300
	DefaultThumbnailQuality = 70
	DefaultMaxPixels        = 50_000_000

	// ThumbnailDir is created next to every processed output.
	ThumbnailDir = "thumbnails"
)

// discarded runs after a late result has been removed. Tests replace it.
var discarded = func() {}

var (
	ErrDecode            = errors.New("imageproc: cannot decode image")
	ErrTooManyPixels     = errors.New("imageproc: image exceeds pixel limit")
	ErrUnsupportedFormat = errors.New("imageproc: unsupported output format")
)

// Options controls a single Process call. Zero values fall back to defaults,
// except Thumbnail which must be requested explicitly.
type Options struct {
	Width            int
	Height           int
	Format           Format
	Quality          int
	Thumbnail        bool
	ThumbnailSize    int
	ThumbnailQuality int
	MaxPixels        int

	// Inspect runs after the header is read and before the full decode.
	// A non-nil error aborts processing and is returned unchanged.
	Inspect func(width, height int) error
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = JPEG
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.ThumbnailSize <= 0 {
		o.ThumbnailSize = DefaultThumbnailSize
	}
	if o.ThumbnailQuality <= 0 || o.ThumbnailQuality > 100 {
		o.ThumbnailQuality = DefaultThumbnailQuality
	}
	if o.MaxPixels == 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// Metadata describes the decoded source image.
type Metadata struct {
	Width  int
	Height int
	Format string
	Size   int64
}

// Result lists the files written by Process. ThumbnailPath is empty when no
// thumbnail was requested.
type Result struct {
	OriginalPath  string
	ProcessedPath string
	ThumbnailPath string
	Metadata      Metadata
}

// Paths returns the files Process created.
func (r *Result) Paths() []string {
	if r == nil {
		return nil
	}
	paths := make([]string, 0, 2)
	if r.ProcessedPath != "" {
		paths = append(paths, r.ProcessedPath)
	}
	if r.ThumbnailPath != "" {
		paths = append(paths, r.ThumbnailPath)
	}
	return paths
}

// ThumbnailPath is where Process stores the thumbnail for outputPath.
func ThumbnailPath(outputPath string) string {
	base := filepath.Base(outputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(outputPath), ThumbnailDir, "thumb_"+stem+Extension(JPEG))
}

// Process reads inputPath and writes the transcoded image to outputPath,
// plus a thumbnail when requested. The source file is never removed.
//
// Decoding is not interruptible, so the work runs on its own goroutine and
// Process returns as soon as ctx is done. Outputs produced after that point
// are removed by the worker once it finishes.
func Process(ctx context.Context, inputPath, outputPath string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("imageproc: %w", err)
	}
	opts = opts.withDefaults()
	if _, err := encoderFor(opts.Format); err != nil {
		return nil, err
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				removePartial(inputPath, outputPath, opts)
				done <- outcome{err: fmt.Errorf("%w: panic: %v", ErrDecode, r)}
			}
		}()
		res, err := process(inputPath, outputPath, opts)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		go func() {
			o := <-done
			for _, p := range o.res.Paths() {
				_ = os.Remove(p)
			}
			discarded()
		}()
		return nil, fmt.Errorf("imageproc: %w", ctx.Err())
	}
}

// removePartial deletes whatever a crashed worker may have written. An
// in-place output is the source itself and is left alone.
func removePartial(inputPath, outputPath string, opts Options) {
	paths := []string{outputPath + ".tmp"}
	if outputPath != inputPath {
		paths = append(paths, outputPath)
	}
	if opts.Thumbnail {
		thumb := ThumbnailPath(outputPath)
		paths = append(paths, thumb, thumb+".tmp")
	}
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

func process(inputPath, outputPath string, opts Options) (*Result, error) {
	src, meta, err := load(inputPath, opts)
	if err != nil {
		return nil, err
	}

	out := src
	switch {
	case opts.Width > 0 && opts.Height > 0:
		out = CoverResize(src, opts.Width, opts.Height)
	case opts.Width > 0 || opts.Height > 0:
		// a single dimension keeps the aspect ratio
		out = resize.Resize(uint(opts.Width), uint(opts.Height), src, resize.Lanczos3)
	}

	if err := writeImage(outputPath, out, opts.Format, opts.Quality); err != nil {
		return nil, err
	}
	res := &Result{OriginalPath: inputPath, ProcessedPath: outputPath, Metadata: meta}

	if opts.Thumbnail {
		thumbPath := ThumbnailPath(outputPath)
		if err := os.MkdirAll(filepath.Dir(thumbPath), 0o755); err != nil {
			_ = os.Remove(outputPath)
			return nil, fmt.Errorf("imageproc: create thumbnail dir: %w", err)
		}
		thumb := CoverResize(src, opts.ThumbnailSize, opts.ThumbnailSize)
		if err := writeImage(thumbPath, thumb, JPEG, opts.ThumbnailQuality); err != nil {
			_ = os.Remove(outputPath)
			return nil, err
		}
		res.ThumbnailPath = thumbPath
	}
	return res, nil
}

func load(path string, opts Options) (image.Image, Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("imageproc: open source: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("imageproc: stat source: %w", err)
	}

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if opts.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(opts.MaxPixels) {
		return nil, Metadata{}, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	if opts.Inspect != nil {
		if err := opts.Inspect(cfg.Width, cfg.Height); err != nil {
			return nil, Metadata{}, err
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, Metadata{}, fmt.Errorf("imageproc: rewind source: %w", err)
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return img, Metadata{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Size:   st.Size(),
	}, nil
}
