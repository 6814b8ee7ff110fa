package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object is stored under a key.
var ErrNotFound = errors.New("blob not found")

// BlobPutResult describes one persisted blob payload.
type BlobPutResult struct {
	SHA256    string
	SizeBytes int64
	BlobKey   string
}

// BlobInfo describes one stored object found while walking the store.
type BlobInfo struct {
	SHA256    string
	SizeBytes int64
	BlobKey   string
}

// BlobStore is the byte-storage abstraction used by FileService.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (BlobPutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
	Walk(ctx context.Context, fn func(BlobInfo) error) error
	// Backend names the storage backend recorded on blob rows.
	Backend() string
}
