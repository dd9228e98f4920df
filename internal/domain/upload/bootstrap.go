package upload

import (
	"fmt"
	"os"
	"path/filepath"
)

// StorageDirs are created under the uploads root before the server starts.
var StorageDirs = []string{"", DirRecipes, DirGallery, DirProfiles, DirTemp, DirThumbnails}

// EnsureDirectories creates root and the well-known subdirectories. It is
// safe to call on every start; the first failure is returned.
func EnsureDirectories(root string) ([]string, error) {
	created := make([]string, 0, len(StorageDirs))
	for _, d := range StorageDirs {
		dir := filepath.Join(root, filepath.FromSlash(d))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("create upload directory %s: %w", dir, err)
		}
		created = append(created, dir)
	}
	return created, nil
}
