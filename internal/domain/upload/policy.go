package upload

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known directories under the uploads root.
const (
	DirRecipes    = "recipes"
	DirGallery    = "recipes/gallery"
	DirProfiles   = "profiles"
	DirTemp       = "temp"
	DirThumbnails = "thumbnails"
)

// Policy decides where uploads are written and what they are called.
type Policy struct {
	root   string
	now    func() time.Time
	random func() string
}

func NewPolicy(root string) *Policy {
	return &Policy{root: filepath.Clean(root), now: time.Now, random: randomSuffix}
}

func (p *Policy) Root() string { return p.root }

// TempDir holds partial uploads until they pass every limit.
func (p *Policy) TempDir() string { return filepath.Join(p.root, DirTemp) }

// ResolveDestination returns the purpose folder for t.
func (p *Policy) ResolveDestination(t Target) string {
	return filepath.Join(p.root, filepath.FromSlash(t.Subdir))
}

// GenerateFilename builds <field>-<unix millis>-<random><ext>. The random part
// carries 48 bits, so collisions are unlikely but not impossible.
func (p *Policy) GenerateFilename(fieldName, originalName string) string {
	return fmt.Sprintf("%s-%d-%s%s", sanitizeName(fieldName), p.now().UnixMilli(), p.random(), safeExt(originalName))
}

// Relative returns path relative to the root with forward slashes, the form
// used in URLs and object keys.
func (p *Policy) Relative(path string) (string, error) {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return "", err
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%s is outside %s", path, p.root)
	}
	return filepath.ToSlash(rel), nil
}

// Abs turns a relative path produced by Relative back into a file path.
func (p *Policy) Abs(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

func randomSuffix() string {
	id := uuid.New()
	return hex.EncodeToString(id[:6])
}

func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" {
		return "file"
	}
	return name
}

func safeExt(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
