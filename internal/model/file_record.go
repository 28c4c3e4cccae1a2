package model

import "time"

const (
	FileStatusUploaded = "uploaded"
	FileStatusIndexed  = "indexed"
	FileStatusFailed   = "failed"
)

// FileRecord tracks one uploaded file. ID is the file_id shared with the raw
// text store and the vector index.
type FileRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	MimeType  string    `gorm:"size:128" json:"type"`
	Path      string    `gorm:"size:512;not null" json:"path"`
	Status    string    `gorm:"size:16;not null;index" json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `json:"uploadedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
