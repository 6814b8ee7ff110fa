package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filechain/internal/models"
)

const fileColumns = "id, content_hash, owner_id, filename, size_bytes, media_type, version, status, tx_hash, created_at"

// AppendUpload records one upload: the blob row (if new), the file record and the
// transaction record are written in a single SQL transaction.
func (s *Store) AppendUpload(ctx context.Context, blob *models.Blob, file *models.FileRecord, txRecord *models.TransactionRecord) (err error) {
	if blob == nil {
		return fmt.Errorf("blob is required")
	}
	if err := normalizeBlob(blob); err != nil {
		return err
	}
	if err := normalizeFileRecord(file); err != nil {
		return err
	}
	if err := normalizeTransactionRecord(txRecord); err != nil {
		return err
	}
	if file.ContentHash != blob.SHA256 || txRecord.ContentHash != blob.SHA256 {
		return fmt.Errorf("content hash mismatch between blob and records")
	}
	if txRecord.FileID != file.ID {
		return fmt.Errorf("transaction file_id does not match file id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertBlobTx(ctx, tx, blob); err != nil {
		return err
	}
	if err = insertFileTx(ctx, tx, file); err != nil {
		return err
	}
	if err = insertTransactionTx(ctx, tx, txRecord); err != nil {
		return err
	}

	return tx.Commit()
}

// AppendFile inserts one file record.
func (s *Store) AppendFile(ctx context.Context, file *models.FileRecord) (err error) {
	if err := normalizeFileRecord(file); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertFileTx(ctx, tx, file); err != nil {
		return err
	}
	return tx.Commit()
}

// FindFilesByOwner lists an owner's files, most recent first.
func (s *Store) FindFilesByOwner(ctx context.Context, ownerID string) ([]models.FileRecord, error) {
	return s.queryFiles(ctx, `SELECT `+fileColumns+` FROM files WHERE owner_id = ? ORDER BY created_at DESC, seq DESC`, ownerID)
}

// FindFileByHash returns the earliest file record for a content hash, or nil.
func (s *Store) FindFileByHash(ctx context.Context, hash string) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE content_hash = ? ORDER BY seq ASC LIMIT 1`, normalizeHash(hash))
	return scanFile(row)
}

// FindFileByHashVersion returns the earliest file record matching hash and version, or nil.
func (s *Store) FindFileByHashVersion(ctx context.Context, hash string, version int) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE content_hash = ? AND version = ? ORDER BY seq ASC LIMIT 1`, normalizeHash(hash), version)
	return scanFile(row)
}

// UpdateFileStatus sets the status of every record with the content hash.
func (s *Store) UpdateFileStatus(ctx context.Context, hash string, status models.FileStatus) (int64, error) {
	if !models.IsValidFileStatus(status) {
		return 0, fmt.Errorf("invalid file status: %s", status)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE files SET status = ? WHERE content_hash = ?", string(status), normalizeHash(hash))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateFileTransactionHash back-fills the transaction hash of records still
// missing one and marks them verified.
func (s *Store) UpdateFileTransactionHash(ctx context.Context, hash, txHash string) (int64, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return 0, fmt.Errorf("tx_hash is required")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE files SET tx_hash = ?, status = ? WHERE content_hash = ? AND (tx_hash IS NULL OR tx_hash = '')",
		txHash, string(models.FileStatusVerified), normalizeHash(hash))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListFiles pages through every file record in append order.
func (s *Store) ListFiles(ctx context.Context, limit, offset int) ([]models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files ORDER BY seq ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	return s.queryFiles(ctx, query, args...)
}

// HasFilesForHash reports whether any file record references the content hash.
func (s *Store) HasFilesForHash(ctx context.Context, hash string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM files WHERE content_hash = ? LIMIT 1", normalizeHash(hash)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OwnersForHash lists the distinct owners holding a record for the content hash.
func (s *Store) OwnersForHash(ctx context.Context, hash string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT owner_id FROM files WHERE content_hash = ? ORDER BY owner_id", normalizeHash(hash))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := []string{}
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return owners, nil
}

// Counts returns row totals for the ledger tables.
func (s *Store) Counts(ctx context.Context) (LedgerCounts, error) {
	var counts LedgerCounts
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&counts.Files); err != nil {
		return counts, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&counts.Transactions); err != nil {
		return counts, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM blobs").Scan(&counts.Blobs, &counts.BlobBytes); err != nil {
		return counts, err
	}
	return counts, nil
}

func (s *Store) queryFiles(ctx context.Context, query string, args ...any) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []models.FileRecord{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		if file != nil {
			files = append(files, *file)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

func insertFileTx(ctx context.Context, tx *sql.Tx, file *models.FileRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO files (
			id, content_hash, owner_id, filename, size_bytes, media_type,
			version, status, tx_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		file.ID,
		file.ContentHash,
		file.OwnerID,
		file.Filename,
		file.SizeBytes,
		file.MediaType,
		file.Version,
		string(file.Status),
		nullIfEmpty(file.TransactionHash),
		formatTime(file.CreatedAt),
	)
	return err
}

func scanFile(scanner interface {
	Scan(dest ...any) error
}) (*models.FileRecord, error) {
	file := models.FileRecord{}
	var status, createdAt string
	var txHash sql.NullString

	err := scanner.Scan(
		&file.ID,
		&file.ContentHash,
		&file.OwnerID,
		&file.Filename,
		&file.SizeBytes,
		&file.MediaType,
		&file.Version,
		&status,
		&txHash,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	file.Status = models.FileStatus(status)
	file.TransactionHash = txHash.String
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse files.created_at: %w", err)
	}
	file.CreatedAt = parsed
	return &file, nil
}

func normalizeFileRecord(file *models.FileRecord) error {
	if file == nil {
		return fmt.Errorf("file record is required")
	}
	file.ID = strings.TrimSpace(file.ID)
	file.ContentHash = normalizeHash(file.ContentHash)
	file.OwnerID = strings.TrimSpace(file.OwnerID)
	file.TransactionHash = strings.TrimSpace(file.TransactionHash)
	if file.ID == "" {
		return fmt.Errorf("file id is required")
	}
	if !models.IsContentHash(file.ContentHash) {
		return fmt.Errorf("invalid content hash")
	}
	if file.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if file.SizeBytes < 0 {
		return fmt.Errorf("size must be >= 0")
	}
	if file.Version < models.InitialVersion {
		return fmt.Errorf("version must be >= %d", models.InitialVersion)
	}
	if file.Status == "" {
		file.Status = models.FileStatusProcessing
	}
	if !models.IsValidFileStatus(file.Status) {
		return fmt.Errorf("invalid file status: %s", file.Status)
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	return nil
}

func normalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}
