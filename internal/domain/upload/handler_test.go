package upload

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadProfile(t *testing.T, env *testEnv) FileView {
	t.Helper()
	w := env.do(multipartRequest(t, "/api/v1/uploads/profile",
		filePart("profileImage", "me.png", "image/png", pngBytes(t, 200, 200))))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var file FileView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &file))
	return file
}

func TestUpload_NoFile(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(multipartRequest(t, "/api/v1/uploads/profile", valuePart("caption", "hello")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"No file uploaded","code":"NO_FILE"}`, w.Body.String())
}

func TestUploads_ListGetDelete(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	file := uploadProfile(t, env)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []MediaUpload
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, file.ID, list[0].ID)
	assert.Equal(t, TargetProfileImage, list[0].Target)
	assert.Equal(t, 200, list[0].Width)

	// another user sees nothing
	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil)
	req.Header.Set("X-User", "2")
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Empty(t, list)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/"+file.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got MediaUpload
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, file.URL, got.URL)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/"+file.ID, nil)
	req.Header.Set("X-User", "2")
	w = env.do(req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w).Code)
	assert.FileExists(t, env.pipeline.Policy().Abs(file.ProcessedPath))

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/"+file.ID, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoFileExists(t, env.pipeline.Policy().Abs(file.ProcessedPath))
	assert.NoFileExists(t, env.pipeline.Policy().Abs(file.ThumbnailPath))

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/"+file.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/"+file.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploads_TargetsAdminOnly(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/targets", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/targets", nil)
	req.Header.Set("X-Role", "admin")
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var targets []struct {
		Name      string `json:"name"`
		FieldName string `json:"field_name"`
		MaxCount  int    `json:"max_count"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &targets))
	require.Len(t, targets, 4)
	assert.Equal(t, TargetRecipeCover, targets[0].Name)
	assert.Equal(t, "galleryImages", targets[1].FieldName)
	assert.Equal(t, 20, targets[3].MaxCount)
}

func TestService_ReferencedPaths(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	file := uploadProfile(t, env)

	referenced, err := env.service.Referenced(t.Context())
	require.NoError(t, err)
	assert.True(t, referenced(file.ProcessedPath))
	assert.True(t, referenced(file.ThumbnailPath))
	assert.False(t, referenced("profiles/someone-else.jpg"))

	report, err := Sweep(t.Context(), SweepOptions{Root: env.root, Referenced: referenced, DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, report.Orphans)
}

func TestUploadGallery_AltTextFollowsFileOrder(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(multipartRequest(t, "/api/v1/uploads/recipes/gallery",
		valuePart("alt", "  Plated risotto  "),
		valuePart("alt", "Mise en place"),
		filePart("galleryImages", "a.png", "image/png", pngBytes(t, 400, 300)),
		filePart("galleryImages", "b.png", "image/png", pngBytes(t, 400, 300)),
		filePart("galleryImages", "c.png", "image/png", pngBytes(t, 400, 300)),
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var files []FileView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &files))
	require.Len(t, files, 3)
	assert.Equal(t, "Plated risotto", files[0].AltText)
	assert.Equal(t, "Mise en place", files[1].AltText)
	assert.Empty(t, files[2].AltText)

	stored, err := env.service.GetByID(t.Context(), files[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Mise en place", stored.AltText)
}
