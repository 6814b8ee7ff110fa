package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filechain/internal/blobstore"
	"filechain/internal/models"
)

const blobColumns = "sha256, size_bytes, storage_backend, blob_key, created_at"

// DefaultStorageBackend is recorded on blob rows that name no backend.
const DefaultStorageBackend = blobstore.LocalCASBackend

// UpsertBlob inserts a blob if absent and returns the canonical row by sha256.
func (s *Store) UpsertBlob(ctx context.Context, blob *models.Blob) (*models.Blob, error) {
	if err := normalizeBlob(blob); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := insertBlobTx(ctx, tx, blob); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetBlob(ctx, blob.SHA256)
}

// GetBlob returns one blob by digest, or nil.
func (s *Store) GetBlob(ctx context.Context, sha string) (*models.Blob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blobColumns+` FROM blobs WHERE sha256 = ?`, normalizeHash(sha))
	return scanBlob(row)
}

// ListUnreferencedBlobs returns blobs that no file record points at.
func (s *Store) ListUnreferencedBlobs(ctx context.Context, limit int) ([]models.Blob, error) {
	query := `
		SELECT b.sha256, b.size_bytes, b.storage_backend, b.blob_key, b.created_at
		FROM blobs b
		WHERE NOT EXISTS (SELECT 1 FROM files f WHERE f.content_hash = b.sha256)
		ORDER BY b.created_at ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blobs := []models.Blob{}
	for rows.Next() {
		blob, err := scanBlob(rows)
		if err != nil {
			return nil, err
		}
		if blob != nil {
			blobs = append(blobs, *blob)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blobs, nil
}

// DeleteBlob deletes one blob row by digest.
func (s *Store) DeleteBlob(ctx context.Context, sha string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE sha256 = ?", normalizeHash(sha))
	return err
}

func insertBlobTx(ctx context.Context, tx *sql.Tx, blob *models.Blob) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO blobs (sha256, size_bytes, storage_backend, blob_key, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, blob.SHA256, blob.SizeBytes, blob.StorageBackend, blob.BlobKey, formatTime(blob.CreatedAt))
	return err
}

func normalizeBlob(blob *models.Blob) error {
	if blob == nil {
		return fmt.Errorf("blob is required")
	}
	blob.SHA256 = normalizeHash(blob.SHA256)
	blob.BlobKey = strings.TrimSpace(blob.BlobKey)
	if !models.IsContentHash(blob.SHA256) {
		return fmt.Errorf("invalid sha256")
	}
	if blob.BlobKey == "" {
		return fmt.Errorf("blob_key is required")
	}
	if blob.SizeBytes < 0 {
		return fmt.Errorf("size_bytes must be >= 0")
	}
	if strings.TrimSpace(blob.StorageBackend) == "" {
		blob.StorageBackend = DefaultStorageBackend
	}
	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now().UTC()
	}
	return nil
}

func scanBlob(scanner interface {
	Scan(dest ...any) error
}) (*models.Blob, error) {
	blob := models.Blob{}
	var createdAt string

	err := scanner.Scan(&blob.SHA256, &blob.SizeBytes, &blob.StorageBackend, &blob.BlobKey, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse blobs.created_at: %w", err)
	}
	blob.CreatedAt = parsed
	return &blob, nil
}
