package upload

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, uploads []*MediaUpload) error
	GetByID(ctx context.Context, id string) (*MediaUpload, error)
	Delete(ctx context.Context, id string) error
	ListByUserID(ctx context.Context, userID int64) ([]*MediaUpload, error)
	// ReferencedPaths returns every file and thumbnail path held by a record.
	ReferencedPaths(ctx context.Context) (map[string]struct{}, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts all records in one transaction.
func (r *repository) Create(ctx context.Context, uploads []*MediaUpload) error {
	if len(uploads) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(uploads).Error
}

func (r *repository) GetByID(ctx context.Context, id string) (*MediaUpload, error) {
	var u MediaUpload
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&MediaUpload{}).Error
}

func (r *repository) ListByUserID(ctx context.Context, userID int64) ([]*MediaUpload, error) {
	var uploads []*MediaUpload
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&uploads).Error
	return uploads, err
}

func (r *repository) ReferencedPaths(ctx context.Context) (map[string]struct{}, error) {
	var rows []struct {
		FilePath      string
		ThumbnailPath string
	}
	err := r.db.WithContext(ctx).Model(&MediaUpload{}).
		Select("file_path", "thumbnail_path").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	refs := make(map[string]struct{}, len(rows)*2)
	for _, row := range rows {
		if row.FilePath != "" {
			refs[row.FilePath] = struct{}{}
		}
		if row.ThumbnailPath != "" {
			refs[row.ThumbnailPath] = struct{}{}
		}
	}
	return refs, nil
}
