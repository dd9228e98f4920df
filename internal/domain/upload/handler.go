package upload

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipehub/internal/pkg/response"
)

// Handler serves the upload endpoints. Ownership is tracked by user_id.
type Handler struct {
	service  *Service
	pipeline *Pipeline
	registry *Registry
}

func NewHandler(service *Service, pipeline *Pipeline, registry *Registry) *Handler {
	return &Handler{service: service, pipeline: pipeline, registry: registry}
}

// FileView is what clients get back for each processed file.
type FileView struct {
	ID            string    `json:"id,omitempty"`
	Field         string    `json:"field"`
	OriginalName  string    `json:"originalName"`
	Path          string    `json:"path"`
	ProcessedPath string    `json:"processedPath"`
	ThumbnailPath string    `json:"thumbnailPath,omitempty"`
	Metadata      *Metadata `json:"metadata"`
	URL           string    `json:"url"`
	ThumbnailURL  string    `json:"thumbnailUrl,omitempty"`
	AltText       string    `json:"altText,omitempty"`
	Size          int64     `json:"size"`
	Checksum      string    `json:"checksum"`
}

// Upload returns the handler chain for the named target: receive, process,
// then record.
func (h *Handler) Upload(targetName string) []gin.HandlerFunc {
	t := h.registry.MustGet(targetName)
	return []gin.HandlerFunc{
		h.pipeline.Accept(t),
		h.pipeline.ProcessImages(t.Processing),
		h.Complete,
	}
}

// Complete godoc
// @Summary Finish an upload
// @Description Stores a record for every processed file and returns them.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Success 201 {object} map[string]interface{}
// @Failure 400,401,500 {object} map[string]interface{}
func (h *Handler) Complete(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	files, _ := FilesFromContext(c)
	if files.Len() == 0 {
		response.Fail(c, http.StatusBadRequest, "No file uploaded", CodeNoFile)
		return
	}
	t, _ := TargetFromContext(c)
	applyAltText(files.All(), FormValues(c)[altTextField])

	records, err := h.service.Record(c.Request.Context(), userID, t.Name, files.All())
	if err != nil {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, "Failed to save upload", "")
		return
	}

	views := make([]FileView, 0, len(records))
	for i, f := range files.All() {
		views = append(views, h.view(records[i].ID, f))
	}
	if files.IsMultiple() {
		response.Success(c, http.StatusCreated, views)
		return
	}
	response.Success(c, http.StatusCreated, views[0])
}

func (h *Handler) view(id string, f *IncomingFile) FileView {
	rel := func(p string) string {
		if p == "" {
			return ""
		}
		r, err := h.pipeline.Policy().Relative(p)
		if err != nil {
			return ""
		}
		return r
	}
	return FileView{
		ID:            id,
		Field:         f.FieldName,
		OriginalName:  f.OriginalName,
		Path:          rel(f.Path),
		ProcessedPath: rel(f.ProcessedPath),
		ThumbnailPath: rel(f.ThumbnailPath),
		Metadata:      f.Metadata,
		URL:           f.URL,
		ThumbnailURL:  f.ThumbnailURL,
		AltText:       f.AltText,
		Size:          f.Size,
		Checksum:      f.Checksum,
	}
}

const (
	altTextField  = "alt"
	maxAltTextLen = 300
)

// applyAltText pairs the request's alt fields with files in receive order.
func applyAltText(files []*IncomingFile, alts []string) {
	for i, f := range files {
		if i >= len(alts) {
			return
		}
		alt := strings.TrimSpace(alts[i])
		if r := []rune(alt); len(r) > maxAltTextLen {
			alt = string(r[:maxAltTextLen])
		}
		f.AltText = alt
	}
}

// GetByID godoc
// @Summary Get upload metadata by ID
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Upload ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /uploads/{id} [get]
func (h *Handler) GetByID(c *gin.Context) {
	u, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrUploadNotFound) {
			response.Fail(c, http.StatusNotFound, "Upload not found", "NOT_FOUND")
			return
		}
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, "Failed to load upload", "")
		return
	}
	response.Success(c, http.StatusOK, u)
}

// Delete godoc
// @Summary Delete an upload (files + record)
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Upload ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403,404,500 {object} map[string]interface{}
// @Router /uploads/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	err := h.service.Delete(c.Request.Context(), c.Param("id"), userID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "deleted"})
	case errors.Is(err, ErrUploadNotFound):
		response.Fail(c, http.StatusNotFound, "Upload not found", "NOT_FOUND")
	case errors.Is(err, ErrNotOwner):
		response.Fail(c, http.StatusForbidden, "You do not own this upload", "FORBIDDEN")
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, "Delete failed", "")
	}
}

// ListMy godoc
// @Summary List my uploads
// @Tags Uploads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /uploads [get]
func (h *Handler) ListMy(c *gin.Context) {
	userID := mustUserID(c)
	if userID == 0 {
		return
	}

	uploads, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, "Failed to list uploads", "")
		return
	}
	response.Success(c, http.StatusOK, uploads)
}

type targetView struct {
	Name         string            `json:"name"`
	FieldName    string            `json:"field_name"`
	Subdir       string            `json:"subdir"`
	AllowedTypes []string          `json:"allowed_types"`
	MaxFileSize  int64             `json:"max_file_size"`
	MaxCount     int               `json:"max_count"`
	Multiple     bool              `json:"multiple"`
	Processing   ProcessingOptions `json:"processing"`
}

// Targets lists the configured upload targets. Admin only.
func (h *Handler) Targets(c *gin.Context) {
	targets := h.registry.Targets()
	out := make([]targetView, 0, len(targets))
	for _, t := range targets {
		out = append(out, targetView{
			Name:         t.Name,
			FieldName:    t.FieldName,
			Subdir:       t.Subdir,
			AllowedTypes: t.AllowedTypes,
			MaxFileSize:  t.MaxFileSize,
			MaxCount:     t.MaxCount,
			Multiple:     t.Multiple,
			Processing:   t.Processing,
		})
	}
	response.Success(c, http.StatusOK, out)
}

func mustUserID(c *gin.Context) int64 {
	id, exists := c.Get("user_id")
	if !exists {
		response.Fail(c, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
		return 0
	}
	switch v := id.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	response.Fail(c, http.StatusUnauthorized, "Invalid user id", "UNAUTHORIZED")
	return 0
}
