package upload

import (
	"errors"
	"fmt"
	"os"
)

// DeleteFiles removes every non-empty path. Missing files are not an error,
// so calling it again on the same paths is harmless.
func DeleteFiles(paths ...string) error {
	var errs []error
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
