package imageproc

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func decodeConfig(t *testing.T, path string) (image.Config, string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg, format
}

func TestCoverResize_ExactDimensions(t *testing.T) {
	cases := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
	}{
		{"wide strip to square", 4000, 100, 300, 300},
		{"tall strip to square", 100, 4000, 300, 300},
		{"landscape to portrait", 640, 480, 200, 400},
		{"upscale", 10, 10, 64, 32},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tc.srcW, tc.srcH))
			out := CoverResize(src, tc.dstW, tc.dstH)
			assert.Equal(t, tc.dstW, out.Bounds().Dx())
			assert.Equal(t, tc.dstH, out.Bounds().Dy())
		})
	}
}

func TestCoverResize_CropsAroundCentre(t *testing.T) {
	// left third red, middle third green, right third blue
	src := image.NewRGBA(image.Rect(0, 0, 300, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 300; x++ {
			c := color.RGBA{A: 255}
			switch {
			case x < 100:
				c.R = 255
			case x < 200:
				c.G = 255
			default:
				c.B = 255
			}
			src.Set(x, y, c)
		}
	}

	out := CoverResize(src, 50, 50)
	r, g, b, _ := out.At(25, 25).RGBA()
	assert.Greater(t, g, r)
	assert.Greater(t, g, b)
}

func TestProcess_TranscodesAndThumbnails(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "coverImage-1-abc.png")
	writePNG(t, in, 800, 600)
	out := filepath.Join(dir, "coverImage-1-abc.jpg")

	res, err := Process(context.Background(), in, out, Options{
		Width:     400,
		Height:    400,
		Thumbnail: true,
	})
	require.NoError(t, err)

	assert.Equal(t, in, res.OriginalPath)
	assert.Equal(t, out, res.ProcessedPath)
	assert.Equal(t, filepath.Join(dir, "thumbnails", "thumb_coverImage-1-abc.jpg"), res.ThumbnailPath)
	assert.Equal(t, 800, res.Metadata.Width)
	assert.Equal(t, 600, res.Metadata.Height)
	assert.Equal(t, "png", res.Metadata.Format)
	assert.Positive(t, res.Metadata.Size)

	cfg, format := decodeConfig(t, out)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 400, cfg.Height)

	thumb, format := decodeConfig(t, res.ThumbnailPath)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, DefaultThumbnailSize, thumb.Width)
	assert.Equal(t, DefaultThumbnailSize, thumb.Height)

	// source is left for the caller
	assert.FileExists(t, in)
	assert.NoFileExists(t, out+".tmp")
}

func TestProcess_ThumbnailFromStripIsSquare(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "strip.png")
	writePNG(t, in, 4000, 100)

	res, err := Process(context.Background(), in, filepath.Join(dir, "strip.jpg"), Options{Thumbnail: true})
	require.NoError(t, err)

	thumb, _ := decodeConfig(t, res.ThumbnailPath)
	assert.Equal(t, 300, thumb.Width)
	assert.Equal(t, 300, thumb.Height)

	// no resize requested: output keeps source dimensions
	cfg, _ := decodeConfig(t, res.ProcessedPath)
	assert.Equal(t, 4000, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestProcess_SingleDimensionKeepsAspect(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.png")
	writePNG(t, in, 400, 200)

	res, err := Process(context.Background(), in, filepath.Join(dir, "a.png.out.png"), Options{Width: 100, Format: PNG})
	require.NoError(t, err)
	assert.Empty(t, res.ThumbnailPath)

	cfg, format := decodeConfig(t, res.ProcessedPath)
	assert.Equal(t, "png", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestProcess_WebPOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.png")
	writePNG(t, in, 64, 64)

	res, err := Process(context.Background(), in, filepath.Join(dir, "a.webp"), Options{Format: WebP, Quality: 60})
	require.NoError(t, err)

	cfg, format := decodeConfig(t, res.ProcessedPath)
	assert.Equal(t, "webp", format)
	assert.Equal(t, 64, cfg.Width)
}

func TestProcess_CorruptSourceLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(in, []byte("definitely not an image"), 0o644))
	out := filepath.Join(dir, "broken-out.jpg")

	_, err := Process(context.Background(), in, out, Options{Thumbnail: true})
	require.ErrorIs(t, err, ErrDecode)
	assert.NoFileExists(t, out)
	assert.NoDirExists(t, filepath.Join(dir, "thumbnails"))
}

func TestProcess_PixelLimit(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "big.png")
	writePNG(t, in, 200, 200)

	_, err := Process(context.Background(), in, filepath.Join(dir, "big.jpg"), Options{MaxPixels: 100 * 100})
	require.ErrorIs(t, err, ErrTooManyPixels)
}

func TestProcess_InspectRejects(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "small.png")
	writePNG(t, in, 20, 10)
	errSmall := errors.New("too small")

	var seenW, seenH int
	_, err := Process(context.Background(), in, filepath.Join(dir, "small.jpg"), Options{
		Inspect: func(w, h int) error {
			seenW, seenH = w, h
			return errSmall
		},
	})
	require.ErrorIs(t, err, errSmall)
	assert.Equal(t, 20, seenW)
	assert.Equal(t, 10, seenH)
	assert.NoFileExists(t, filepath.Join(dir, "small.jpg"))
}

func TestProcess_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.png")
	writePNG(t, in, 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Process(ctx, in, filepath.Join(dir, "a.jpg"), Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcess_DeadlineRemovesLateOutputs(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "slow.png")
	writePNG(t, in, 2000, 2000)
	out := filepath.Join(dir, "slow.jpg")

	settled := make(chan struct{})
	discarded = func() { close(settled) }
	t.Cleanup(func() { discarded = func() {} })

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := Process(ctx, in, out, Options{Width: 1200, Height: 1200, Thumbnail: true})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-settled:
	case <-time.After(30 * time.Second):
		t.Fatal("worker did not finish")
	}
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, ThumbnailPath(out))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": JPEG, "jpg": JPEG, "JPEG": JPEG, "png": PNG, " webp ": WebP} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("tiff")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestProcess_PanicBecomesError(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.png")
	writePNG(t, in, 40, 30)
	out := filepath.Join(dir, "a.jpg")

	_, err := Process(context.Background(), in, out, Options{
		Thumbnail: true,
		Inspect:   func(int, int) error { panic("decoder bug") },
	})
	require.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "decoder bug")
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, ThumbnailPath(out))
	assert.FileExists(t, in)
}
