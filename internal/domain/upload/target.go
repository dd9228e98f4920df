package upload

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"recipehub/internal/pkg/validator"
)

// Upload purposes.
const (
	TargetRecipeCover   = "recipeCover"
	TargetRecipeGallery = "recipeGallery"
	TargetProfileImage  = "profileImage"
	TargetMultipleFiles = "multipleFiles"
)

const mb = 1 << 20

// DimensionRule bounds decoded image dimensions. Zero bounds are ignored.
// Checking needs a decode, so the rule only runs when Enforce is set.
type DimensionRule struct {
	Enforce   bool `yaml:"enforce" json:"enforce"`
	MinWidth  int  `yaml:"min_width" json:"min_width" validate:"gte=0"`
	MaxWidth  int  `yaml:"max_width" json:"max_width" validate:"gte=0"`
	MinHeight int  `yaml:"min_height" json:"min_height" validate:"gte=0"`
	MaxHeight int  `yaml:"max_height" json:"max_height" validate:"gte=0"`
}

// Check returns an InvalidDimensions error when width x height falls outside
// the rule.
func (r DimensionRule) Check(width, height int) error {
	if !r.Enforce {
		return nil
	}
	if (r.MinWidth > 0 && width < r.MinWidth) ||
		(r.MaxWidth > 0 && width > r.MaxWidth) ||
		(r.MinHeight > 0 && height < r.MinHeight) ||
		(r.MaxHeight > 0 && height > r.MaxHeight) {
		return errInvalidDimensions(width, height, r)
	}
	return nil
}

func (r DimensionRule) String() string {
	bound := func(v int) string {
		if v <= 0 {
			return "any"
		}
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("width %s..%s, height %s..%s",
		bound(r.MinWidth), bound(r.MaxWidth), bound(r.MinHeight), bound(r.MaxHeight))
}

// ProcessingOptions configures the transform stage for a target.
type ProcessingOptions struct {
	Width            int           `yaml:"width" json:"width" validate:"gte=0"`
	Height           int           `yaml:"height" json:"height" validate:"gte=0"`
	Format           string        `yaml:"format" json:"format" validate:"omitempty,oneof=jpeg jpg png webp"`
	Quality          int           `yaml:"quality" json:"quality" validate:"gte=0,lte=100"`
	Thumbnail        bool          `yaml:"thumbnail" json:"thumbnail"`
	ThumbnailSize    int           `yaml:"thumbnail_size" json:"thumbnail_size" validate:"gte=0"`
	ThumbnailQuality int           `yaml:"thumbnail_quality" json:"thumbnail_quality" validate:"gte=0,lte=100"`
	Dimensions       DimensionRule `yaml:"dimensions" json:"dimensions"`
}

// Target is a named upload purpose. Targets are built once at startup and
// never modified.
type Target struct {
	Name         string            `yaml:"-" validate:"required"`
	FieldName    string            `yaml:"field_name" validate:"required"`
	Subdir       string            `yaml:"subdir" validate:"required"`
	AllowedTypes []string          `yaml:"allowed_types" validate:"required,min=1,dive,required"`
	MaxFileSize  int64             `yaml:"max_file_size" validate:"gt=0"`
	MaxCount     int               `yaml:"max_count" validate:"gte=1"`
	Multiple     bool              `yaml:"multiple"`
	Processing   ProcessingOptions `yaml:"processing"`
}

// Validation returns the options the gate enforces for t.
func (t Target) Validation() ValidationOptions {
	return ValidationOptions{
		AllowedTypes: slices.Clone(t.AllowedTypes),
		MaxFileSize:  t.MaxFileSize,
		Dimensions:   t.Processing.Dimensions,
	}
}

func (t Target) clone() Target {
	t.AllowedTypes = slices.Clone(t.AllowedTypes)
	return t
}

var webImageTypes = []string{"image/jpeg", "image/png", "image/jpg", "image/webp"}

// DefaultTargets returns the built-in upload purposes.
func DefaultTargets() []Target {
	return []Target{
		{
			Name:         TargetRecipeCover,
			FieldName:    "coverImage",
			Subdir:       "recipes",
			AllowedTypes: slices.Clone(webImageTypes),
			MaxFileSize:  10 * mb,
			MaxCount:     1,
			Processing: ProcessingOptions{
				Width: 1200, Height: 800, Format: "jpeg", Quality: 80, Thumbnail: true,
				Dimensions: DimensionRule{MinWidth: 400, MinHeight: 300, MaxWidth: 8000, MaxHeight: 8000},
			},
		},
		{
			Name:         TargetRecipeGallery,
			FieldName:    "galleryImages",
			Subdir:       "recipes/gallery",
			AllowedTypes: slices.Clone(webImageTypes),
			MaxFileSize:  5 * mb,
			MaxCount:     10,
			Multiple:     true,
			Processing: ProcessingOptions{
				Width: 1024, Height: 768, Format: "jpeg", Quality: 80, Thumbnail: true,
				Dimensions: DimensionRule{MinWidth: 300, MinHeight: 200, MaxWidth: 8000, MaxHeight: 8000},
			},
		},
		{
			Name:         TargetProfileImage,
			FieldName:    "profileImage",
			Subdir:       "profiles",
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg"},
			MaxFileSize:  5 * mb,
			MaxCount:     1,
			Processing: ProcessingOptions{
				Width: 400, Height: 400, Format: "jpeg", Quality: 80, Thumbnail: true,
				Dimensions: DimensionRule{MinWidth: 100, MinHeight: 100, MaxWidth: 6000, MaxHeight: 6000},
			},
		},
		{
			Name:         TargetMultipleFiles,
			FieldName:    "files",
			Subdir:       "temp",
			AllowedTypes: slices.Clone(webImageTypes),
			MaxFileSize:  10 * mb,
			MaxCount:     20,
			Multiple:     true,
			Processing:   ProcessingOptions{Format: "jpeg", Quality: 80, Thumbnail: true},
		},
	}
}

// Registry holds the configured targets by name.
type Registry struct {
	targets map[string]Target
	order   []string
}

// NewRegistry validates targets and indexes them by name.
func NewRegistry(targets ...Target) (*Registry, error) {
	r := &Registry{targets: make(map[string]Target, len(targets))}
	for _, t := range targets {
		if err := validator.Check(t); err != nil {
			return nil, fmt.Errorf("upload target %q: %w", t.Name, err)
		}
		if !filepath.IsLocal(filepath.FromSlash(t.Subdir)) {
			return nil, fmt.Errorf("upload target %q: subdir %q must stay inside the uploads root", t.Name, t.Subdir)
		}
		if !t.Multiple && t.MaxCount > 1 {
			return nil, fmt.Errorf("upload target %q: single-file target cannot accept %d files", t.Name, t.MaxCount)
		}
		if _, dup := r.targets[t.Name]; dup {
			return nil, fmt.Errorf("upload target %q defined twice", t.Name)
		}
		r.targets[t.Name] = t.clone()
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

// DefaultRegistry returns a registry of DefaultTargets.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultTargets()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns a copy of the named target.
func (r *Registry) Get(name string) (Target, bool) {
	t, ok := r.targets[name]
	if !ok {
		return Target{}, false
	}
	return t.clone(), true
}

// MustGet is Get for names known at compile time.
func (r *Registry) MustGet(name string) Target {
	t, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("upload target %q is not registered", name))
	}
	return t
}

// Targets returns all targets in registration order.
func (r *Registry) Targets() []Target {
	out := make([]Target, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.targets[name].clone())
	}
	return out
}

// RegistryOptions adjusts the registry built by LoadRegistry.
type RegistryOptions struct {
	// EnforceDimensions switches on every target's DimensionRule.
	EnforceDimensions bool
}

// LoadRegistry builds the registry from the defaults, overlaid with the YAML
// file at path when path is not empty. The file maps target names to partial
// target definitions; unknown names add new targets.
//
//	recipeCover:
//	  max_file_size: 20971520
//	  processing:
//	    format: webp
func LoadRegistry(path string, opts RegistryOptions) (*Registry, error) {
	targets := DefaultTargets()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read upload targets: %w", err)
		}
		var overrides map[string]yaml.Node
		if err := yaml.Unmarshal(raw, &overrides); err != nil {
			return nil, fmt.Errorf("decode upload targets: %w", err)
		}

		for _, name := range slices.Sorted(maps.Keys(overrides)) {
			node := overrides[name]
			idx := slices.IndexFunc(targets, func(t Target) bool { return t.Name == name })
			if idx < 0 {
				targets = append(targets, Target{Name: name})
				idx = len(targets) - 1
			}
			if err := node.Decode(&targets[idx]); err != nil {
				return nil, fmt.Errorf("decode upload target %q: %w", name, err)
			}
			targets[idx].Name = name
		}
	}

	if opts.EnforceDimensions {
		for i := range targets {
			targets[i].Processing.Dimensions.Enforce = true
		}
	}

	reg, err := NewRegistry(targets...)
	if err != nil {
		return nil, errors.Join(errors.New("invalid upload targets"), err)
	}
	return reg, nil
}
