package upload

import "time"

// MediaUpload is the record kept for every processed file. Paths are
// relative to the uploads root.
type MediaUpload struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	UserID        int64     `gorm:"column:user_id;index" json:"user_id"`
	Target        string    `gorm:"column:target;index" json:"target"`
	FieldName     string    `gorm:"column:field_name" json:"field_name"`
	OriginalName  string    `gorm:"column:original_name" json:"original_name"`
	MimeType      string    `gorm:"column:mime_type" json:"mime_type"`
	Size          int64     `gorm:"column:size" json:"size"`
	Checksum      string    `gorm:"column:checksum" json:"checksum"`
	FilePath      string    `gorm:"column:file_path" json:"-"`
	ThumbnailPath string    `gorm:"column:thumbnail_path" json:"-"`
	ObjectKeys    []string  `gorm:"column:object_keys;serializer:json" json:"-"`
	URL           string    `gorm:"column:url" json:"url"`
	ThumbnailURL  string    `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	AltText       string    `gorm:"column:alt_text" json:"alt_text,omitempty"`
	Width         int       `gorm:"column:width" json:"width"`
	Height        int       `gorm:"column:height" json:"height"`
	Format        string    `gorm:"column:format" json:"format"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (MediaUpload) TableName() string { return "media_uploads" }
