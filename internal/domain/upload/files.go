package upload

import "github.com/gin-gonic/gin"

const (
	filesKey  = "upload.files"
	targetKey = "upload.target"
	valuesKey = "upload.values"
)

// Metadata is what the transform stage learned about a source image.
type Metadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// IncomingFile is one uploaded item as it moves through the pipeline.
type IncomingFile struct {
	FieldName    string
	OriginalName string
	// MimeType is what the client declared; DetectedType is sniffed from the bytes.
	MimeType     string
	DetectedType string
	Size         int64
	Checksum     string

	Filename    string // generated on-disk name
	Destination string
	Path        string

	ProcessedPath string
	ThumbnailPath string
	Metadata      *Metadata
	URL           string
	ThumbnailURL  string
	AltText       string

	// object keys written to the storage mirror
	ObjectKeys []string
}

// paths lists every local file the pipeline may have written for f.
func (f *IncomingFile) paths() []string {
	return []string{f.Path, f.ProcessedPath, f.ThumbnailPath}
}

// Files is either a single file or a list, depending on the target's
// cardinality. The zero value holds no files.
type Files struct {
	multiple bool
	one      *IncomingFile
	many     []*IncomingFile
}

// One wraps the file of a single-file target. f may be nil.
func One(f *IncomingFile) Files { return Files{one: f} }

// Many wraps the files of a multi-file target.
func Many(fs []*IncomingFile) Files { return Files{multiple: true, many: fs} }

func (f Files) IsMultiple() bool { return f.multiple }

// Single returns the file of a single-file upload.
func (f Files) Single() (*IncomingFile, bool) {
	if f.multiple || f.one == nil {
		return nil, false
	}
	return f.one, true
}

// All returns the files in the order they were received.
func (f Files) All() []*IncomingFile {
	if f.multiple {
		return f.many
	}
	if f.one == nil {
		return nil
	}
	return []*IncomingFile{f.one}
}

func (f Files) Len() int { return len(f.All()) }

func filesFor(t Target, fs []*IncomingFile) Files {
	if t.Multiple {
		return Many(fs)
	}
	if len(fs) == 0 {
		return One(nil)
	}
	return One(fs[0])
}

// SetFiles attaches files to the request.
func SetFiles(c *gin.Context, files Files) { c.Set(filesKey, files) }

// FilesFromContext returns the files attached by Pipeline.Accept.
func FilesFromContext(c *gin.Context) (Files, bool) {
	v, ok := c.Get(filesKey)
	if !ok {
		return Files{}, false
	}
	files, ok := v.(Files)
	return files, ok
}

// TargetFromContext returns the target the request was accepted for.
func TargetFromContext(c *gin.Context) (Target, bool) {
	v, ok := c.Get(targetKey)
	if !ok {
		return Target{}, false
	}
	t, ok := v.(Target)
	return t, ok
}

// FormValues returns the non-file multipart fields of the request.
func FormValues(c *gin.Context) map[string][]string {
	if v, ok := c.Get(valuesKey); ok {
		if values, ok := v.(map[string][]string); ok {
			return values
		}
	}
	return map[string][]string{}
}
