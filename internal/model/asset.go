package model

import (
	"time"
)

// Asset is one persisted uploaded image. Metadata is derived from the
// backing store (file stat or object listing), never from a sidecar record.
type Asset struct {
	Identifier   string    `json:"filename"`               // Minted at persistence time, sole key for delete
	OriginalName string    `json:"originalname,omitempty"` // Client supplied, never used for paths
	MimeType     string    `json:"mimetype,omitempty"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"` // Locator: "/upload_images/<id>" or a fully-qualified remote URL
	CreatedAt    time.Time `json:"uploadDate"`
}
