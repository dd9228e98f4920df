package upload

import (
	"fmt"
	"mime"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is how many leading bytes are read for content detection.
const SniffLen = 3072

// ValidationOptions is what the gate enforces for one target.
type ValidationOptions struct {
	AllowedTypes []string
	MaxFileSize  int64
	// Dimensions is checked after the header is decoded, not by the gate.
	Dimensions DimensionRule
}

// Gate accepts or rejects a file before any of its bytes reach the
// destination folder.
type Gate struct {
	opts    ValidationOptions
	allowed []string
}

func NewGate(opts ValidationOptions) *Gate {
	allowed := make([]string, 0, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		n := normalizeMime(t)
		if !slices.Contains(allowed, n) {
			allowed = append(allowed, n)
		}
	}
	return &Gate{opts: opts, allowed: allowed}
}

// Validate returns nil when f may be stored, or an *UploadError. Both the
// declared type and the sniffed type must be allowed; a zero Size is treated
// as not yet known.
func (g *Gate) Validate(f *IncomingFile) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errValidationFailed(fmt.Errorf("panic: %v", r))
		}
	}()

	if f == nil {
		return errValidationFailed(fmt.Errorf("no file"))
	}
	if !g.allows(f.MimeType) {
		return errUnsupportedType(f.MimeType, g.opts.AllowedTypes)
	}
	if f.DetectedType != "" && !g.allows(f.DetectedType) {
		return errUnsupportedType(f.DetectedType, g.opts.AllowedTypes)
	}
	if g.opts.MaxFileSize > 0 && f.Size > g.opts.MaxFileSize {
		return errFileTooLarge(g.opts.MaxFileSize)
	}
	return nil
}

// MaxFileSize is the per-file byte ceiling, zero for none.
func (g *Gate) MaxFileSize() int64 { return g.opts.MaxFileSize }

func (g *Gate) allows(contentType string) bool {
	return slices.Contains(g.allowed, normalizeMime(contentType))
}

// Sniff detects the content type from the leading bytes of a file.
func Sniff(head []byte) string {
	return normalizeMime(mimetype.Detect(head).String())
}

func normalizeMime(v string) string {
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		v = mt
	}
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "image/jpg" || v == "image/pjpeg" {
		return "image/jpeg"
	}
	return v
}
