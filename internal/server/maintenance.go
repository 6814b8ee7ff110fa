package server

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"filechain/internal/api"
	"filechain/internal/blobstore"
	"filechain/internal/models"
)

// GCResult reports one orphan sweep.
type GCResult struct {
	CandidateCount int
	DeletedCount   int
	FailedCount    int
	ReclaimedBytes int64
	DryRun         bool
	Candidates     []string
}

// VerifyResult reports one integrity pass.
type VerifyResult struct {
	Checked      int
	Verified     int
	Failed       int
	FailedHashes []string
}

type orphan struct {
	sha256    string
	sizeBytes int64
	onDisk    bool
	indexed   bool
}

// GCOrphans finds stored objects and blob rows that no file record references.
// Nothing is removed unless apply is set.
func (s *FileService) GCOrphans(ctx context.Context, apply bool) (GCResult, error) {
	result := GCResult{DryRun: !apply, Candidates: []string{}}
	if s == nil || s.ledger == nil || s.blobs == nil {
		return result, internalError(fmt.Errorf("file service is not configured"))
	}

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	orphans, err := s.collectOrphans(ctx)
	if err != nil {
		return result, err
	}

	result.CandidateCount = len(orphans)
	for _, o := range orphans {
		result.Candidates = append(result.Candidates, o.sha256)
	}
	if !apply {
		for _, o := range orphans {
			result.ReclaimedBytes += o.sizeBytes
		}
		return result, nil
	}

	for _, o := range orphans {
		if err := s.deleteOrphan(ctx, o); err != nil {
			result.FailedCount++
			s.logger.Warn("gc delete orphan", "hash", o.sha256, "error", err)
			continue
		}
		result.DeletedCount++
		result.ReclaimedBytes += o.sizeBytes
	}

	s.logger.Info("gc complete",
		"candidates", result.CandidateCount,
		"deleted", result.DeletedCount,
		"failed", result.FailedCount,
		"reclaimed_bytes", result.ReclaimedBytes,
	)
	return result, nil
}

func (s *FileService) collectOrphans(ctx context.Context) ([]orphan, error) {
	byHash := map[string]*orphan{}

	err := s.blobs.Walk(ctx, func(info blobstore.BlobInfo) error {
		referenced, err := s.ledger.HasFilesForHash(ctx, info.SHA256)
		if err != nil {
			return err
		}
		if referenced {
			return nil
		}
		byHash[info.SHA256] = &orphan{sha256: info.SHA256, sizeBytes: info.SizeBytes, onDisk: true}
		return nil
	})
	if err != nil {
		return nil, storeFailure(fmt.Errorf("walk content store: %w", err))
	}

	unreferenced, err := s.ledger.ListUnreferencedBlobs(ctx, 0)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("list unreferenced blobs: %w", err))
	}
	for _, blob := range unreferenced {
		if existing, ok := byHash[blob.SHA256]; ok {
			existing.indexed = true
			continue
		}
		byHash[blob.SHA256] = &orphan{sha256: blob.SHA256, sizeBytes: blob.SizeBytes, indexed: true}
	}

	orphans := make([]orphan, 0, len(byHash))
	for _, o := range byHash {
		orphans = append(orphans, *o)
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].sha256 < orphans[j].sha256 })
	return orphans, nil
}

func (s *FileService) deleteOrphan(ctx context.Context, o orphan) error {
	if o.onDisk {
		key, err := blobstore.KeyForDigest(o.sha256)
		if err != nil {
			return err
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete object: %w", err)
		}
	}
	if o.indexed {
		if err := s.ledger.DeleteBlob(ctx, o.sha256); err != nil {
			return fmt.Errorf("delete blob row: %w", err)
		}
	}
	return nil
}

// Verify re-hashes the stored object behind every file record and back-fills
// each record's status with the outcome.
func (s *FileService) Verify(ctx context.Context) (VerifyResult, error) {
	result := VerifyResult{FailedHashes: []string{}}
	if s == nil || s.ledger == nil || s.blobs == nil {
		return result, internalError(fmt.Errorf("file service is not configured"))
	}

	outcomes := map[string]models.FileStatus{}
	owners := map[string]map[string]struct{}{}

	for offset := 0; ; offset += s.gcBatchSize {
		files, err := s.ledger.ListFiles(ctx, s.gcBatchSize, offset)
		if err != nil {
			return result, storeFailure(fmt.Errorf("list files: %w", err))
		}
		for _, file := range files {
			result.Checked++
			status, ok := outcomes[file.ContentHash]
			if !ok {
				status, err = s.checkContent(ctx, file.ContentHash)
				if err != nil {
					return result, err
				}
				outcomes[file.ContentHash] = status
			}
			if status == models.FileStatusVerified {
				result.Verified++
			} else {
				result.Failed++
			}
			if file.Status != status {
				if owners[file.ContentHash] == nil {
					owners[file.ContentHash] = map[string]struct{}{}
				}
				owners[file.ContentHash][file.OwnerID] = struct{}{}
			}
		}
		if len(files) < s.gcBatchSize {
			break
		}
	}

	hashes := make([]string, 0, len(owners))
	for hash := range owners {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)

	for _, hash := range hashes {
		if _, err := s.ledger.UpdateFileStatus(ctx, hash, outcomes[hash]); err != nil {
			return result, storeFailure(fmt.Errorf("update status for %s: %w", hash, err))
		}
		for ownerID := range owners[hash] {
			s.invalidateListings(ctx, ownerID)
		}
	}

	for hash, status := range outcomes {
		if status == models.FileStatusFailed {
			result.FailedHashes = append(result.FailedHashes, hash)
		}
	}
	sort.Strings(result.FailedHashes)

	s.logger.Info("verify complete", "checked", result.Checked, "verified", result.Verified, "failed", result.Failed)
	return result, nil
}

func (s *FileService) checkContent(ctx context.Context, hash string) (models.FileStatus, error) {
	key, err := blobstore.KeyForDigest(hash)
	if err != nil {
		return models.FileStatusFailed, nil
	}
	reader, err := s.blobs.Open(ctx, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return models.FileStatusFailed, nil
		}
		return "", storeFailure(fmt.Errorf("open %s: %w", hash, err))
	}
	defer reader.Close()

	digest, _, err := blobstore.Digest(reader)
	if err != nil {
		return "", storeFailure(fmt.Errorf("hash %s: %w", hash, err))
	}
	if digest != hash {
		return models.FileStatusFailed, nil
	}
	return models.FileStatusVerified, nil
}

// Export returns every file and transaction record in append order.
func (s *FileService) Export(ctx context.Context) (api.Snapshot, error) {
	snapshot := api.Snapshot{Files: []models.FileRecord{}, Transactions: []models.TransactionRecord{}}
	if s == nil || s.ledger == nil {
		return snapshot, internalError(fmt.Errorf("file service is not configured"))
	}

	files, err := s.ledger.ListFiles(ctx, 0, 0)
	if err != nil {
		return snapshot, storeFailure(fmt.Errorf("list files: %w", err))
	}
	txs, err := s.ledger.ListTransactions(ctx, 0, 0)
	if err != nil {
		return snapshot, storeFailure(fmt.Errorf("list transactions: %w", err))
	}
	snapshot.Files = files
	snapshot.Transactions = txs
	return snapshot, nil
}
