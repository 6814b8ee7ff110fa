package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"filechain/internal/api"
	"filechain/internal/auth"
	"filechain/internal/blobstore"
	"filechain/internal/cache"
	"filechain/internal/mediatype"
	"filechain/internal/metrics"
	"filechain/internal/models"
	"filechain/internal/store"
)

const (
	defaultGCBatchSize = 500
	fallbackFilename   = "file"

	msgMissingOwnerOrKey = "Missing user_id or private_key"
	msgMissingFileHash   = "File hash is required"
	msgMissingOwner      = "user_id is required"
	msgFileNotFound      = "File not found"
	msgTxNotFound        = "Transaction not found"
	msgUploadFailed      = "upload failed"
	msgDownloadFailed    = "download failed"
)

// FileService implements the upload, download and query flows over the
// content store and the metadata ledger.
type FileService struct {
	ledger   store.Ledger
	blobs    blobstore.BlobStore
	listings cache.ListingCache
	logger   *slog.Logger

	bcryptCost  int
	gcBatchSize int

	now   func() time.Time
	newID func() string

	// Uploads hold the read side between Put and ledger append so a sweep
	// never sees a just-written object as orphaned.
	sweepMu sync.RWMutex
}

// UploadInput carries upload metadata from the transport layer.
type UploadInput struct {
	Filename          string
	OwnerID           string
	Credential        string
	DeclaredMediaType string
}

// FileContent describes a stored file stream.
type FileContent struct {
	Reader    io.ReadCloser
	SizeBytes int64
	Filename  string
	MediaType string
}

// NewFileService constructs a FileService.
func NewFileService(ledger store.Ledger, blobs blobstore.BlobStore, listings cache.ListingCache, logger *slog.Logger) *FileService {
	if listings == nil {
		listings = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileService{
		ledger:      ledger,
		blobs:       blobs,
		listings:    listings,
		logger:      logger,
		bcryptCost:  0,
		gcBatchSize: defaultGCBatchSize,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// ConfigurePolicy overrides credential and sweep policy. A bcrypt cost of 0
// selects the bcrypt default; out-of-range costs are rejected.
func (s *FileService) ConfigurePolicy(bcryptCost, gcBatchSize int) error {
	if s == nil {
		return fmt.Errorf("file service is not configured")
	}
	cost, err := auth.ValidateCost(bcryptCost)
	if err != nil {
		return err
	}
	s.bcryptCost = cost
	if gcBatchSize <= 0 {
		gcBatchSize = defaultGCBatchSize
	}
	s.gcBatchSize = gcBatchSize
	return nil
}

// Upload stores content and appends its file and transaction records.
func (s *FileService) Upload(ctx context.Context, in UploadInput, content io.Reader) (api.UploadResponse, error) {
	var zero api.UploadResponse
	if s == nil || s.ledger == nil || s.blobs == nil {
		return zero, internalError(fmt.Errorf("file service is not configured"))
	}

	ownerID := strings.TrimSpace(in.OwnerID)
	credential := strings.TrimSpace(in.Credential)
	if ownerID == "" || credential == "" {
		metrics.ObserveUpload(metrics.ResultInvalid, 0)
		return zero, badRequestCode(errors.New(msgMissingOwnerOrKey), ErrCodeMissingRequired)
	}
	if content == nil {
		metrics.ObserveUpload(metrics.ResultInvalid, 0)
		return zero, badRequestCode(errors.New("No file provided"), ErrCodeMissingFile)
	}
	filename := cleanFilename(in.Filename)

	fingerprint, err := auth.FingerprintCredential(credential, s.bcryptCost)
	if err != nil {
		metrics.ObserveUpload(metrics.ResultError, 0)
		return zero, operationFailure(ErrCodeUploadFailed, msgUploadFailed, fmt.Errorf("fingerprint credential: %w", err))
	}

	s.sweepMu.RLock()
	defer s.sweepMu.RUnlock()

	put, err := s.blobs.Put(ctx, content)
	if err != nil {
		metrics.ObserveUpload(metrics.ResultError, 0)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return zero, badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
		}
		return zero, operationFailure(ErrCodeUploadFailed, msgUploadFailed, fmt.Errorf("store content: %w", err))
	}

	txHash, err := store.GenerateTransactionHash(func(candidate string) (bool, error) {
		return s.ledger.TransactionExists(ctx, candidate)
	})
	if err != nil {
		metrics.ObserveUpload(metrics.ResultError, 0)
		return zero, operationFailure(ErrCodeUploadFailed, msgUploadFailed, fmt.Errorf("generate transaction hash: %w", err))
	}

	now := s.now()
	fileID := s.newID()
	blob := &models.Blob{
		SHA256:         put.SHA256,
		SizeBytes:      put.SizeBytes,
		StorageBackend: s.blobs.Backend(),
		BlobKey:        put.BlobKey,
		CreatedAt:      now,
	}
	file := &models.FileRecord{
		ID:              fileID,
		ContentHash:     put.SHA256,
		OwnerID:         ownerID,
		Filename:        filename,
		SizeBytes:       put.SizeBytes,
		MediaType:       mediatype.ForUpload(filename, in.DeclaredMediaType),
		Version:         models.InitialVersion,
		Status:          models.FileStatusVerified,
		TransactionHash: txHash,
		CreatedAt:       now,
	}
	record := &models.TransactionRecord{
		TransactionHash: txHash,
		FileID:          fileID,
		ContentHash:     put.SHA256,
		Filename:        filename,
		SizeBytes:       put.SizeBytes,
		Version:         models.InitialVersion,
		OwnerID:         ownerID,
		CredentialHash:  fingerprint,
		CreatedAt:       now,
	}

	if err := s.ledger.AppendUpload(ctx, blob, file, record); err != nil {
		metrics.ObserveUpload(metrics.ResultError, 0)
		return zero, operationFailure(ErrCodeUploadFailed, msgUploadFailed, fmt.Errorf("append ledger records: %w", err))
	}

	s.invalidateListings(ctx, ownerID)
	metrics.ObserveUpload(metrics.ResultOK, put.SizeBytes)
	s.logger.Info("file recorded",
		"hash", put.SHA256,
		"tx_hash", txHash,
		"file_id", fileID,
		"user_id", ownerID,
		"size", put.SizeBytes,
	)

	return api.UploadResponse{IPFSHash: put.SHA256, TxHash: txHash}, nil
}

// Download resolves one file version and opens its stored bytes.
// A zero version means the initial version. The credential is accepted for
// compatibility and never applied to the content.
func (s *FileService) Download(ctx context.Context, hash string, version int, _ string) (FileContent, error) {
	var zero FileContent
	if s == nil || s.ledger == nil || s.blobs == nil {
		return zero, internalError(fmt.Errorf("file service is not configured"))
	}

	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		metrics.ObserveDownload(metrics.ResultInvalid, 0)
		return zero, badRequestCode(errors.New(msgMissingFileHash), ErrCodeMissingRequired)
	}
	if version == 0 {
		version = models.InitialVersion
	}
	if !models.IsContentHash(hash) || version < models.InitialVersion {
		metrics.ObserveDownload(metrics.ResultNotFound, 0)
		return zero, notFoundCode(errors.New(msgFileNotFound), ErrCodeFileNotFound)
	}

	file, err := s.ledger.FindFileByHashVersion(ctx, hash, version)
	if err != nil {
		metrics.ObserveDownload(metrics.ResultError, 0)
		return zero, operationFailure(ErrCodeDownloadFailed, msgDownloadFailed, fmt.Errorf("find file: %w", err))
	}
	if file == nil {
		metrics.ObserveDownload(metrics.ResultNotFound, 0)
		return zero, notFoundCode(errors.New(msgFileNotFound), ErrCodeFileNotFound)
	}

	key, err := blobstore.KeyForDigest(hash)
	if err != nil {
		metrics.ObserveDownload(metrics.ResultNotFound, 0)
		return zero, notFoundCode(errors.New(msgFileNotFound), ErrCodeFileNotFound)
	}

	size, err := s.blobs.Stat(ctx, key)
	if err == nil {
		var reader io.ReadCloser
		reader, err = s.blobs.Open(ctx, key)
		if err == nil {
			metrics.ObserveDownload(metrics.ResultOK, size)
			return FileContent{
				Reader:    reader,
				SizeBytes: size,
				Filename:  file.Filename,
				MediaType: mediatype.ForFilename(file.Filename),
			}, nil
		}
	}

	if errors.Is(err, blobstore.ErrNotFound) {
		s.markContentMissing(ctx, file)
		metrics.ObserveDownload(metrics.ResultNotFound, 0)
		return zero, notFoundCode(errors.New(msgFileNotFound), ErrCodeContentMissing)
	}
	metrics.ObserveDownload(metrics.ResultError, 0)
	return zero, operationFailure(ErrCodeDownloadFailed, msgDownloadFailed, fmt.Errorf("open content: %w", err))
}

// ListFiles returns an owner's file records, most recent first.
func (s *FileService) ListFiles(ctx context.Context, ownerID string) ([]models.FileRecord, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, badRequestCode(errors.New(msgMissingOwner), ErrCodeMissingRequired)
	}

	if files, ok := s.cachedFiles(ctx, ownerID); ok {
		return files, nil
	}

	files, err := s.ledger.FindFilesByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if files == nil {
		files = []models.FileRecord{}
	}
	if err := s.listings.SetFiles(ctx, ownerID, files); err != nil {
		s.logger.Warn("cache files listing", "user_id", ownerID, "error", err)
	}
	return files, nil
}

// ListTransactions returns an owner's transaction records, most recent first.
func (s *FileService) ListTransactions(ctx context.Context, ownerID string) ([]models.TransactionRecord, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, badRequestCode(errors.New(msgMissingOwner), ErrCodeMissingRequired)
	}

	if txs, ok := s.cachedTransactions(ctx, ownerID); ok {
		return txs, nil
	}

	txs, err := s.ledger.FindTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if txs == nil {
		txs = []models.TransactionRecord{}
	}
	if err := s.listings.SetTransactions(ctx, ownerID, txs); err != nil {
		s.logger.Warn("cache transactions listing", "user_id", ownerID, "error", err)
	}
	return txs, nil
}

// GetFile returns the earliest file record for a content hash.
func (s *FileService) GetFile(ctx context.Context, hash string) (models.FileRecord, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !models.IsContentHash(hash) {
		return models.FileRecord{}, notFoundCode(errors.New(msgFileNotFound), ErrCodeFileNotFound)
	}
	file, err := s.ledger.FindFileByHash(ctx, hash)
	if err != nil {
		return models.FileRecord{}, storeFailure(err)
	}
	if file == nil {
		return models.FileRecord{}, notFoundCode(errors.New(msgFileNotFound), ErrCodeFileNotFound)
	}
	return *file, nil
}

// GetTransaction returns one transaction record.
func (s *FileService) GetTransaction(ctx context.Context, txHash string) (models.TransactionRecord, error) {
	txHash = strings.ToLower(strings.TrimSpace(txHash))
	if !models.IsTransactionHash(txHash) {
		return models.TransactionRecord{}, notFoundCode(errors.New(msgTxNotFound), ErrCodeTransactionNotFound)
	}
	record, err := s.ledger.GetTransaction(ctx, txHash)
	if err != nil {
		return models.TransactionRecord{}, storeFailure(err)
	}
	if record == nil {
		return models.TransactionRecord{}, notFoundCode(errors.New(msgTxNotFound), ErrCodeTransactionNotFound)
	}
	return *record, nil
}

func (s *FileService) cachedFiles(ctx context.Context, ownerID string) ([]models.FileRecord, bool) {
	files, ok, err := s.listings.GetFiles(ctx, ownerID)
	if err != nil {
		s.logger.Warn("read cached files listing", "user_id", ownerID, "error", err)
		return nil, false
	}
	metrics.ObserveCache("files", ok)
	if ok && files == nil {
		files = []models.FileRecord{}
	}
	return files, ok
}

func (s *FileService) cachedTransactions(ctx context.Context, ownerID string) ([]models.TransactionRecord, bool) {
	txs, ok, err := s.listings.GetTransactions(ctx, ownerID)
	if err != nil {
		s.logger.Warn("read cached transactions listing", "user_id", ownerID, "error", err)
		return nil, false
	}
	metrics.ObserveCache("transactions", ok)
	if ok && txs == nil {
		txs = []models.TransactionRecord{}
	}
	return txs, ok
}

func (s *FileService) invalidateListings(ctx context.Context, ownerIDs ...string) {
	for _, ownerID := range ownerIDs {
		if err := s.listings.Invalidate(ctx, ownerID); err != nil {
			s.logger.Warn("invalidate listings", "user_id", ownerID, "error", err)
		}
	}
}

func (s *FileService) markContentMissing(ctx context.Context, file *models.FileRecord) {
	s.logger.Warn("content missing for recorded file", "hash", file.ContentHash, "file_id", file.ID)
	if file.Status == models.FileStatusFailed {
		return
	}
	if _, err := s.ledger.UpdateFileStatus(ctx, file.ContentHash, models.FileStatusFailed); err != nil {
		s.logger.Error("mark file failed", "hash", file.ContentHash, "error", err)
		return
	}
	// The status change covers every record of the hash, not just this owner's.
	owners, err := s.ledger.OwnersForHash(ctx, file.ContentHash)
	if err != nil {
		s.logger.Warn("list owners of failed content", "hash", file.ContentHash, "error", err)
		owners = []string{file.OwnerID}
	}
	s.invalidateListings(ctx, owners...)
}

// cleanFilename keeps the base name of a client-supplied file name.
func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" {
		return fallbackFilename
	}
	return name
}
