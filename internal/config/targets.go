package config

import "recipehub/internal/domain/upload"

// UploadRegistry builds the upload target registry: built-in targets,
// overlaid with UPLOAD_TARGETS_FILE when set.
func (c *Config) UploadRegistry() (*upload.Registry, error) {
	return upload.LoadRegistry(c.TargetsFile, upload.RegistryOptions{
		EnforceDimensions: c.EnforceDimensions,
	})
}
