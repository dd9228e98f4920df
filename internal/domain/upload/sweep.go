package upload

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SweepOptions configures a sweep of the uploads root.
type SweepOptions struct {
	Root      string
	OlderThan time.Duration
	// Referenced reports whether a root-relative, slash-separated path is
	// still owned by an upload record. Nil means nothing is referenced.
	Referenced func(rel string) bool
	DryRun     bool
	Now        func() time.Time
}

// SweepReport lists what a sweep removed, or would remove on a dry run.
type SweepReport struct {
	Partials []string
	Orphans  []string
	Failed   []string
}

// Sweep removes leftovers that no request will come back for: partial
// uploads and temp files from interrupted writes, and files nobody
// references. Only files older than OlderThan are touched.
func Sweep(ctx context.Context, opts SweepOptions) (*SweepReport, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Referenced == nil {
		opts.Referenced = func(string) bool { return false }
	}
	cutoff := opts.Now().Add(-opts.OlderThan)
	report := &SweepReport{}

	err := filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		rel, err := filepath.Rel(opts.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case IsPartial(rel):
			report.Partials = append(report.Partials, rel)
		case !opts.Referenced(rel):
			report.Orphans = append(report.Orphans, rel)
		default:
			return nil
		}

		if !opts.DryRun {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				report.Failed = append(report.Failed, rel)
			}
		}
		return nil
	})
	return report, err
}

// IsPartial reports whether name is an upload or encode still being written.
func IsPartial(name string) bool {
	return strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".tmp")
}
