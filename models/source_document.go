package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceDocument records an uploaded legal source file kept in storage.
type SourceDocument struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	Category    string    `json:"category"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}
