package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recipehub/internal/storage"
)

// Service keeps upload records in step with the files on disk.
type Service struct {
	repo   Repository
	policy *Policy
	mirror storage.Storage
	log    *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, policy *Policy, mirror storage.Storage, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, policy: policy, mirror: mirror, log: log, now: time.Now}
}

// Record stores one record per processed file. The files themselves are
// not touched; on error the caller is expected to discard them.
func (s *Service) Record(ctx context.Context, userID int64, target string, files []*IncomingFile) ([]*MediaUpload, error) {
	records := make([]*MediaUpload, 0, len(files))
	now := s.now().UTC()

	for _, f := range files {
		if f.Metadata == nil || f.ProcessedPath == "" {
			return nil, fmt.Errorf("file %s was not processed", f.Filename)
		}
		rel, err := s.policy.Relative(f.ProcessedPath)
		if err != nil {
			return nil, err
		}
		var thumb string
		if f.ThumbnailPath != "" {
			if thumb, err = s.policy.Relative(f.ThumbnailPath); err != nil {
				return nil, err
			}
		}

		records = append(records, &MediaUpload{
			ID:            uuid.NewString(),
			UserID:        userID,
			Target:        target,
			FieldName:     f.FieldName,
			OriginalName:  f.OriginalName,
			MimeType:      f.DetectedType,
			Size:          f.Size,
			Checksum:      f.Checksum,
			FilePath:      rel,
			ThumbnailPath: thumb,
			ObjectKeys:    f.ObjectKeys,
			URL:           f.URL,
			ThumbnailURL:  f.ThumbnailURL,
			AltText:       f.AltText,
			Width:         f.Metadata.Width,
			Height:        f.Metadata.Height,
			Format:        f.Metadata.Format,
			CreatedAt:     now,
		})
	}

	if err := s.repo.Create(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to save upload records: %w", err)
	}
	return records, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*MediaUpload, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes the record together with its files and mirrored objects.
func (s *Service) Delete(ctx context.Context, id string, userID int64) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.UserID != userID {
		return ErrNotOwner
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	var paths []string
	for _, rel := range []string{u.FilePath, u.ThumbnailPath} {
		if rel != "" {
			paths = append(paths, s.policy.Abs(rel))
		}
	}
	// the record is gone, so leftovers are only logged; sweep picks them up
	if err := errors.Join(DeleteFiles(paths...), DeleteObjects(ctx, s.mirror, u.ObjectKeys...)); err != nil {
		s.log.Warn("upload files not removed", "upload_id", id, "error", err)
	}
	return nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*MediaUpload, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// Referenced returns a lookup over every path held by a record, for Sweep.
func (s *Service) Referenced(ctx context.Context) (func(rel string) bool, error) {
	refs, err := s.repo.ReferencedPaths(ctx)
	if err != nil {
		return nil, err
	}
	return func(rel string) bool {
		_, ok := refs[rel]
		return ok
	}, nil
}
