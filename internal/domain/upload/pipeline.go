package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"recipehub/internal/pkg/imageproc"
	"recipehub/internal/storage"
)

const (
	DefaultProcessTimeout = 30 * time.Second
	DefaultPublicPrefix   = "/uploads"

	discardedKey = "upload.discarded"
)

// PipelineConfig wires the pipeline to its environment.
type PipelineConfig struct {
	Root         string
	PublicPrefix string
	// Timeout bounds the transform of a single image.
	Timeout     time.Duration
	Concurrency int
	MaxPixels   int
	Mirror      storage.Storage
	Observer    Observer
	Logger      *slog.Logger
}

// Pipeline provides the gin stages that take a multipart request from raw
// bytes to processed, addressable images.
type Pipeline struct {
	cfg      PipelineConfig
	policy   *Policy
	receiver *Receiver
	observer Observer
	log      *slog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.PublicPrefix == "" {
		cfg.PublicPrefix = DefaultPublicPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProcessTimeout
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	policy := NewPolicy(cfg.Root)
	return &Pipeline{
		cfg:      cfg,
		policy:   policy,
		receiver: NewReceiver(policy),
		observer: cfg.Observer,
		log:      cfg.Logger,
	}
}

func (p *Pipeline) Policy() *Policy { return p.policy }

func (p *Pipeline) Mirror() storage.Storage { return p.cfg.Mirror }

// Accept receives the files of target t and attaches them to the request.
// If anything later in the chain fails, the files are removed once the
// chain returns.
func (p *Pipeline) Accept(t Target) gin.HandlerFunc {
	limit := t.MaxFileSize*int64(t.MaxCount) + DefaultMaxFormBytes + 64<<10

	return func(c *gin.Context) {
		c.Set(targetKey, t)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		rec, err := p.receiver.Receive(c.Request, t)
		if err != nil {
			kind := KindProcessingFailure
			var ue *UploadError
			if errors.As(err, &ue) {
				kind = ue.Kind
			}
			p.observer.ObserveRejected(t.Name, kind)
			p.log.Warn("upload rejected", "target", t.Name, "error", err)
			_ = c.Error(err)
			c.Abort()
			return
		}

		files := filesFor(t, rec.Files)
		SetFiles(c, files)
		c.Set(valuesKey, rec.Values)
		for _, f := range rec.Files {
			p.log.Info("upload accepted",
				"target", t.Name, "field", f.FieldName, "file", f.Filename,
				"size", f.Size, "type", f.DetectedType)
		}

		defer func() {
			if r := recover(); r != nil {
				p.discard(c, t.Name, files.All())
				panic(r)
			}
			if len(c.Errors) > 0 || c.Writer.Status() >= http.StatusBadRequest {
				p.discard(c, t.Name, files.All())
			}
		}()
		c.Next()
	}
}

// ProcessImages transforms every accepted file with opts. On success each
// file carries its processed path, thumbnail path, metadata and URLs, and the
// original is gone unless it was overwritten in place. On failure every file
// of the request is removed and the chain is aborted.
func (p *Pipeline) ProcessImages(opts ProcessingOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		files, ok := FilesFromContext(c)
		if !ok || files.Len() == 0 {
			return
		}
		t, _ := TargetFromContext(c)

		if err := p.processAll(c, t.Name, opts, files.All()); err != nil {
			p.observer.ObserveFailure(t.Name, "transform")
			p.log.Error("image processing failed", "target", t.Name, "error", err)
			p.discard(c, t.Name, files.All())
			_ = c.Error(err)
			c.Abort()
		}
	}
}

func (p *Pipeline) processAll(c *gin.Context, target string, opts ProcessingOptions, files []*IncomingFile) error {
	base := requestBase(c.Request)
	ctx := c.Request.Context()

	if p.cfg.Concurrency == 1 || len(files) == 1 {
		for _, f := range files {
			if err := p.processOne(ctx, target, base, opts, f); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, f := range files {
		g.Go(func() error {
			return p.processOne(gctx, target, base, opts, f)
		})
	}
	return g.Wait()
}

func (p *Pipeline) processOne(ctx context.Context, target, base string, opts ProcessingOptions, f *IncomingFile) error {
	start := time.Now()

	format, err := imageproc.ParseFormat(opts.Format)
	if err != nil {
		return errProcessing(err)
	}
	stem := strings.TrimSuffix(f.Filename, filepath.Ext(f.Filename))
	out := filepath.Join(f.Destination, stem+imageproc.Extension(format))

	// record the output paths first so a failure part way still cleans them
	f.ProcessedPath = out
	if opts.Thumbnail {
		f.ThumbnailPath = imageproc.ThumbnailPath(out)
	}

	pctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	res, err := imageproc.Process(pctx, f.Path, out, imageproc.Options{
		Width:            opts.Width,
		Height:           opts.Height,
		Format:           format,
		Quality:          opts.Quality,
		Thumbnail:        opts.Thumbnail,
		ThumbnailSize:    opts.ThumbnailSize,
		ThumbnailQuality: opts.ThumbnailQuality,
		MaxPixels:        p.cfg.MaxPixels,
		Inspect:          opts.Dimensions.Check,
	})
	if err != nil {
		return transformError(err)
	}

	f.ProcessedPath = res.ProcessedPath
	f.ThumbnailPath = res.ThumbnailPath
	f.Metadata = &Metadata{
		Width:  res.Metadata.Width,
		Height: res.Metadata.Height,
		Format: res.Metadata.Format,
		Size:   res.Metadata.Size,
	}

	if p.cfg.Mirror != nil {
		if err := p.mirror(ctx, f, format); err != nil {
			return errProcessing(err)
		}
	} else {
		if f.URL, err = p.publicURL(base, f.ProcessedPath); err != nil {
			return errProcessing(err)
		}
		if f.ThumbnailPath != "" {
			if f.ThumbnailURL, err = p.publicURL(base, f.ThumbnailPath); err != nil {
				return errProcessing(err)
			}
		}
	}

	if f.Path != f.ProcessedPath {
		if err := DeleteFiles(f.Path); err != nil {
			p.log.Warn("remove original upload", "file", f.Path, "error", err)
		}
	}

	p.observer.ObserveProcessed(target, time.Since(start), f.Size)
	p.log.Info("image processed",
		"target", target, "field", f.FieldName, "file", filepath.Base(f.ProcessedPath),
		"width", f.Metadata.Width, "height", f.Metadata.Height,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// mirror copies the processed image and thumbnail to object storage and
// takes the URLs from there.
func (p *Pipeline) mirror(ctx context.Context, f *IncomingFile, format imageproc.Format) error {
	put := func(path, contentType string) (string, error) {
		key, err := p.policy.Relative(path)
		if err != nil {
			return "", err
		}
		file, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer file.Close()
		st, err := file.Stat()
		if err != nil {
			return "", err
		}
		f.ObjectKeys = append(f.ObjectKeys, key)
		if err := p.cfg.Mirror.PutObject(ctx, key, file, contentType, st.Size()); err != nil {
			return "", err
		}
		return p.cfg.Mirror.GenerateURL(ctx, key)
	}

	var err error
	if f.URL, err = put(f.ProcessedPath, imageproc.ContentType(format)); err != nil {
		return fmt.Errorf("mirror processed image: %w", err)
	}
	if f.ThumbnailPath != "" {
		if f.ThumbnailURL, err = put(f.ThumbnailPath, imageproc.ContentType(imageproc.JPEG)); err != nil {
			return fmt.Errorf("mirror thumbnail: %w", err)
		}
	}
	return nil
}

// discard removes every file and mirrored object known for the request. It
// runs at most once per request.
func (p *Pipeline) discard(c *gin.Context, target string, files []*IncomingFile) {
	if c.GetBool(discardedKey) {
		return
	}
	c.Set(discardedKey, true)

	var paths, keys []string
	for _, f := range files {
		paths = append(paths, f.paths()...)
		keys = append(keys, f.ObjectKeys...)
	}
	err := errors.Join(
		DeleteFiles(paths...),
		DeleteObjects(context.WithoutCancel(c.Request.Context()), p.cfg.Mirror, keys...),
	)
	if err != nil {
		p.observer.ObserveFailure(target, "cleanup")
		p.log.Error("upload cleanup", "target", target, "files", len(paths), "error", err)
		return
	}
	p.log.Info("upload cleanup", "target", target, "files", len(paths), "objects", len(keys))
}

// DeleteObjects removes keys from the mirror. A nil mirror is a no-op.
func DeleteObjects(ctx context.Context, mirror storage.Storage, keys ...string) error {
	if mirror == nil || len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := mirror.DeleteObject(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) publicURL(base, path string) (string, error) {
	rel, err := p.policy.Relative(path)
	if err != nil {
		return "", err
	}
	return url.JoinPath(base, p.cfg.PublicPrefix, rel)
}

// requestBase returns scheme://host of the request as the client saw it.
func requestBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fp := r.Header.Get("X-Forwarded-Proto"); fp != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(fp, ",")[0]))
	}
	return scheme + "://" + r.Host
}

func transformError(err error) error {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue
	}
	if errors.Is(err, imageproc.ErrTooManyPixels) {
		return &UploadError{
			Kind:    KindInvalidDimensions,
			Message: "Image dimensions are too large",
			Code:    CodeDimensions,
			Status:  http.StatusBadRequest,
			Err:     err,
		}
	}
	return errProcessing(err)
}
