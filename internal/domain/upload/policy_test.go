package upload

import (
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFilename_Format(t *testing.T) {
	p := NewPolicy("/srv/uploads")
	p.now = func() time.Time { return time.UnixMilli(1700000000123) }

	name := p.GenerateFilename("coverImage", "My Photo.PNG")
	assert.Regexp(t, regexp.MustCompile(`^coverImage-1700000000123-[0-9a-f]{12}\.png$`), name)

	assert.Regexp(t, `^file-1700000000123-[0-9a-f]{12}$`, p.GenerateFilename("", "noext"))
	assert.Regexp(t, `^gallery_images-\d+-[0-9a-f]{12}\.jpg$`, p.GenerateFilename("gallery images", "../../x.jpg"))
	assert.Regexp(t, `^files-\d+-[0-9a-f]{12}$`, p.GenerateFilename("files", "evil.j/pg"))
}

func TestGenerateFilename_UniqueWithinOneMillisecond(t *testing.T) {
	p := NewPolicy(t.TempDir())
	frozen := time.Now()
	p.now = func() time.Time { return frozen }

	const workers, perWorker = 16, 500
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		dups []string
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				name := p.GenerateFilename("coverImage", "a.jpg")
				mu.Lock()
				if _, dup := seen[name]; dup {
					dups = append(dups, name)
				}
				seen[name] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Empty(t, dups)
	assert.Len(t, seen, workers*perWorker)
}

func TestResolveDestination(t *testing.T) {
	p := NewPolicy("/srv/uploads/")
	reg := DefaultRegistry()

	assert.Equal(t, filepath.FromSlash("/srv/uploads/recipes"), p.ResolveDestination(reg.MustGet(TargetRecipeCover)))
	assert.Equal(t, filepath.FromSlash("/srv/uploads/recipes/gallery"), p.ResolveDestination(reg.MustGet(TargetRecipeGallery)))
	assert.Equal(t, filepath.FromSlash("/srv/uploads/profiles"), p.ResolveDestination(reg.MustGet(TargetProfileImage)))
	assert.Equal(t, filepath.FromSlash("/srv/uploads/temp"), p.ResolveDestination(reg.MustGet(TargetMultipleFiles)))
	assert.Equal(t, filepath.FromSlash("/srv/uploads/temp"), p.TempDir())
}

func TestRelative(t *testing.T) {
	p := NewPolicy("/srv/uploads")

	rel, err := p.Relative(filepath.FromSlash("/srv/uploads/recipes/thumbnails/thumb_a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "recipes/thumbnails/thumb_a.jpg", rel)
	assert.Equal(t, filepath.FromSlash("/srv/uploads/recipes/thumbnails/thumb_a.jpg"), p.Abs(rel))

	_, err = p.Relative(filepath.FromSlash("/etc/passwd"))
	assert.Error(t, err)
}
