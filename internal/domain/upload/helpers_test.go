package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recipehub/internal/database"
	"recipehub/internal/middleware"
)

func init() { gin.SetMode(gin.TestMode) }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeaderPadded sniffs as PNG but is n bytes of mostly zeros.
func pngHeaderPadded(n int) []byte {
	b := make([]byte, n)
	copy(b, "\x89PNG\r\n\x1a\n")
	return b
}

type formPart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func filePart(field, filename, contentType string, data []byte) formPart {
	return formPart{field: field, filename: filename, contentType: contentType, data: data}
}

func valuePart(field, value string) formPart {
	return formPart{field: field, data: []byte(value)}
}

func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.filename == "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.field))
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func multipartRequest(t *testing.T, path string, parts ...formPart) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	return req
}

// listFiles returns the regular files under dir, relative to dir.
func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(dir, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

type fakeMirror struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newFakeMirror() *fakeMirror { return &fakeMirror{objects: map[string][]byte{}} }

func (m *fakeMirror) PutObject(_ context.Context, key string, data io.Reader, _ string, _ int64) error {
	if m.failPut {
		return fmt.Errorf("bucket unavailable")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *fakeMirror) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *fakeMirror) GenerateURL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (m *fakeMirror) Type() string { return "fake" }

func (m *fakeMirror) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

type testEnv struct {
	root     string
	db       *gorm.DB
	router   *gin.Engine
	pipeline *Pipeline
	service  *Service
}

// newTestEnv mounts the upload routes behind a fake auth that trusts the
// X-User header (default user 1).
func newTestEnv(t *testing.T, reg *Registry, tweak func(*PipelineConfig)) *testEnv {
	t.Helper()
	root := t.TempDir()
	_, err := EnsureDirectories(root)
	require.NoError(t, err)

	db, err := database.Connect("file:" + filepath.Join(t.TempDir(), "uploads.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, &MediaUpload{}))

	if reg == nil {
		reg = DefaultRegistry()
	}
	cfg := PipelineConfig{Root: root}
	if tweak != nil {
		tweak(&cfg)
	}
	pipeline := NewPipeline(cfg)
	service := NewService(NewRepository(db), pipeline.Policy(), cfg.Mirror, nil)
	handler := NewHandler(service, pipeline, reg)

	r := gin.New()
	r.Use(middleware.ErrorLogger())
	protected := r.Group("/api/v1", func(c *gin.Context) {
		id := int64(1)
		if v := c.GetHeader("X-User"); v != "" {
			id, _ = strconv.ParseInt(v, 10, 64)
		}
		c.Set("user_id", id)
		c.Set("role", c.GetHeader("X-Role"))
		c.Next()
	})
	RegisterRoutes(protected, handler, middleware.AdminOnly())

	return &testEnv{root: root, db: db, router: r, pipeline: pipeline, service: service}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var r apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}
