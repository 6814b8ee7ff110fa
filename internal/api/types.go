package api

import (
	"filechain/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	IPFSHash string `json:"ipfs_hash"`
	TxHash   string `json:"tx_hash"`
}

// DownloadRequest is the JSON body of POST /download. A zero Version means 1.
type DownloadRequest struct {
	FileHash   string `json:"file_hash"`
	Version    int    `json:"version,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
}

// DownloadResult describes a downloaded payload.
type DownloadResult struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// InfoResponse is the response from GET /v1/info.
type InfoResponse struct {
	Version        string `json:"version"`
	SchemaVersion  int    `json:"schema_version"`
	StorageBackend string `json:"storage_backend"`
	CacheEnabled   bool   `json:"cache_enabled"`
	Files          int    `json:"files"`
	Transactions   int    `json:"transactions"`
	Blobs          int    `json:"blobs"`
	StoredBytes    int64  `json:"stored_bytes"`
}

// GCResponse reports an orphan sweep.
type GCResponse struct {
	DryRun         bool     `json:"dry_run"`
	CandidateCount int      `json:"candidate_count"`
	DeletedCount   int      `json:"deleted_count"`
	FailedCount    int      `json:"failed_count"`
	ReclaimedBytes int64    `json:"reclaimed_bytes"`
	Candidates     []string `json:"candidates"`
}

// VerifyResponse reports an integrity pass over all file records.
type VerifyResponse struct {
	Checked      int      `json:"checked"`
	Verified     int      `json:"verified"`
	Failed       int      `json:"failed"`
	FailedHashes []string `json:"failed_hashes"`
}

// Snapshot is the full ledger export.
type Snapshot struct {
	Files        []models.FileRecord        `json:"files" yaml:"files"`
	Transactions []models.TransactionRecord `json:"transactions" yaml:"transactions"`
}

// FileRecord and TransactionRecord are served as-is by the listing endpoints.
type (
	FileRecord        = models.FileRecord
	TransactionRecord = models.TransactionRecord
)
