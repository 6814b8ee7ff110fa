package models

import "time"

// Blob is an immutable stored content object referenced by file records.
type Blob struct {
	SHA256         string    `json:"sha256" yaml:"sha256"`
	SizeBytes      int64     `json:"size_bytes" yaml:"size_bytes"`
	StorageBackend string    `json:"storage_backend" yaml:"storage_backend"`
	BlobKey        string    `json:"blob_key" yaml:"blob_key"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}
