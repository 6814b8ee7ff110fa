package store

import (
	"context"

	"filechain/internal/models"
)

// LedgerStore is the metadata persistence surface for file and transaction records.
type LedgerStore interface {
	AppendUpload(ctx context.Context, blob *models.Blob, file *models.FileRecord, tx *models.TransactionRecord) error
	AppendFile(ctx context.Context, file *models.FileRecord) error
	AppendTransaction(ctx context.Context, tx *models.TransactionRecord) error

	FindFilesByOwner(ctx context.Context, ownerID string) ([]models.FileRecord, error)
	FindTransactionsByOwner(ctx context.Context, ownerID string) ([]models.TransactionRecord, error)
	FindFileByHash(ctx context.Context, hash string) (*models.FileRecord, error)
	FindFileByHashVersion(ctx context.Context, hash string, version int) (*models.FileRecord, error)
	GetTransaction(ctx context.Context, txHash string) (*models.TransactionRecord, error)
	TransactionExists(ctx context.Context, txHash string) (bool, error)

	UpdateFileStatus(ctx context.Context, hash string, status models.FileStatus) (int64, error)
	UpdateFileTransactionHash(ctx context.Context, hash, txHash string) (int64, error)

	ListFiles(ctx context.Context, limit, offset int) ([]models.FileRecord, error)
	ListTransactions(ctx context.Context, limit, offset int) ([]models.TransactionRecord, error)
	HasFilesForHash(ctx context.Context, hash string) (bool, error)
	OwnersForHash(ctx context.Context, hash string) ([]string, error)
	Counts(ctx context.Context) (LedgerCounts, error)
}

// BlobIndex tracks stored content objects.
type BlobIndex interface {
	UpsertBlob(ctx context.Context, blob *models.Blob) (*models.Blob, error)
	GetBlob(ctx context.Context, sha string) (*models.Blob, error)
	ListUnreferencedBlobs(ctx context.Context, limit int) ([]models.Blob, error)
	DeleteBlob(ctx context.Context, sha string) error
}

// LedgerCounts summarizes ledger contents.
type LedgerCounts struct {
	Files        int   `json:"files"`
	Transactions int   `json:"transactions"`
	Blobs        int   `json:"blobs"`
	BlobBytes    int64 `json:"blob_bytes"`
}

var (
	_ LedgerStore = (*Store)(nil)
	_ BlobIndex   = (*Store)(nil)
)

// Ledger is the full metadata surface the file service depends on.
type Ledger interface {
	LedgerStore
	BlobIndex
}

var _ Ledger = (*Store)(nil)
