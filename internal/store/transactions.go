package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"filechain/internal/models"
)

const transactionColumns = "tx_hash, file_id, content_hash, filename, size_bytes, version, owner_id, credential_hash, created_at"

// AppendTransaction inserts one transaction record.
func (s *Store) AppendTransaction(ctx context.Context, txRecord *models.TransactionRecord) (err error) {
	if err := normalizeTransactionRecord(txRecord); err != nil {
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

	if err = insertTransactionTx(ctx, tx, txRecord); err != nil {
		return err
	}
	return tx.Commit()
}

// FindTransactionsByOwner lists an owner's transactions, most recent first.
func (s *Store) FindTransactionsByOwner(ctx context.Context, ownerID string) ([]models.TransactionRecord, error) {
	return s.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE owner_id = ? ORDER BY created_at DESC, seq DESC`, ownerID)
}

// GetTransaction returns one transaction by hash, or nil.
func (s *Store) GetTransaction(ctx context.Context, txHash string) (*models.TransactionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE tx_hash = ?`, normalizeHash(txHash))
	return scanTransaction(row)
}

// TransactionExists checks whether a transaction hash is already recorded.
func (s *Store) TransactionExists(ctx context.Context, txHash string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM transactions WHERE tx_hash = ? LIMIT 1", normalizeHash(txHash)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListTransactions pages through every transaction in append order.
func (s *Store) ListTransactions(ctx context.Context, limit, offset int) ([]models.TransactionRecord, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY seq ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	return s.queryTransactions(ctx, query, args...)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]models.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.TransactionRecord{}
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, *record)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, record *models.TransactionRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			tx_hash, file_id, content_hash, filename, size_bytes, version,
			owner_id, credential_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.TransactionHash,
		record.FileID,
		record.ContentHash,
		record.Filename,
		record.SizeBytes,
		record.Version,
		record.OwnerID,
		nullIfEmpty(record.CredentialHash),
		formatTime(record.CreatedAt),
	)
	return err
}

func scanTransaction(scanner interface {
	Scan(dest ...any) error
}) (*models.TransactionRecord, error) {
	record := models.TransactionRecord{}
	var credentialHash sql.NullString
	var createdAt string

	err := scanner.Scan(
		&record.TransactionHash,
		&record.FileID,
		&record.ContentHash,
		&record.Filename,
		&record.SizeBytes,
		&record.Version,
		&record.OwnerID,
		&credentialHash,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	record.CredentialHash = credentialHash.String
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse transactions.created_at: %w", err)
	}
	record.CreatedAt = parsed
	return &record, nil
}

func normalizeTransactionRecord(record *models.TransactionRecord) error {
	if record == nil {
		return fmt.Errorf("transaction record is required")
	}
	record.TransactionHash = normalizeHash(record.TransactionHash)
	record.ContentHash = normalizeHash(record.ContentHash)
	record.FileID = strings.TrimSpace(record.FileID)
	record.OwnerID = strings.TrimSpace(record.OwnerID)
	if !models.IsTransactionHash(record.TransactionHash) {
		return fmt.Errorf("invalid transaction hash")
	}
	if !models.IsContentHash(record.ContentHash) {
		return fmt.Errorf("invalid content hash")
	}
	if record.FileID == "" {
		return fmt.Errorf("file id is required")
	}
	if record.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if record.SizeBytes < 0 {
		return fmt.Errorf("size must be >= 0")
	}
	if record.Version < models.InitialVersion {
		return fmt.Errorf("version must be >= %d", models.InitialVersion)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return nil
}
