// Package storage mirrors processed uploads to object storage. Local disk
// under the uploads root is always the primary copy; a mirror is optional.
package storage

import (
	"context"
	"fmt"
	"io"

	"recipehub/internal/storage/s3"
)

const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// Storage is an object store that holds a copy of every processed file.
type Storage interface {
	PutObject(ctx context.Context, key string, data io.Reader, contentType string, size int64) error
	DeleteObject(ctx context.Context, key string) error
	// GenerateURL returns the URL clients use to fetch key.
	GenerateURL(ctx context.Context, key string) (string, error)
	Type() string
}

// Config selects and configures the mirror.
type Config struct {
	Type string
	S3   s3.Config
}

// New returns the configured mirror, or nil when files stay on local disk only.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", TypeLocal:
		return nil, nil
	case TypeS3:
		return s3.New(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
