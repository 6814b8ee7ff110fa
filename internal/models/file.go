package models

import (
	"fmt"
	"strings"
	"time"
)

// FileStatus is the ledger state of one uploaded file.
type FileStatus string

const (
	FileStatusProcessing FileStatus = "processing"
	FileStatusVerified   FileStatus = "verified"
	FileStatusFailed     FileStatus = "failed"
)

// InitialVersion is the version assigned to every upload.
const InitialVersion = 1

var validFileStatuses = map[FileStatus]struct{}{
	FileStatusProcessing: {},
	FileStatusVerified:   {},
	FileStatusFailed:     {},
}

// FileRecord is one ledger entry describing an uploaded file.
type FileRecord struct {
	ID              string     `json:"id" yaml:"id"`
	ContentHash     string     `json:"hash" yaml:"hash"`
	OwnerID         string     `json:"user_id" yaml:"user_id"`
	Filename        string     `json:"filename" yaml:"filename"`
	SizeBytes       int64      `json:"size" yaml:"size"`
	MediaType       string     `json:"type" yaml:"type"`
	Version         int        `json:"version" yaml:"version"`
	Status          FileStatus `json:"status" yaml:"status"`
	TransactionHash string     `json:"tx_hash,omitempty" yaml:"tx_hash,omitempty"`
	CreatedAt       time.Time  `json:"upload_date" yaml:"upload_date"`
}

func IsValidFileStatus(status FileStatus) bool {
	_, ok := validFileStatuses[status]
	return ok
}

func ParseFileStatus(raw string) (FileStatus, error) {
	value := FileStatus(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("file status is required")
	}
	if !IsValidFileStatus(value) {
		return "", fmt.Errorf("invalid file status: %s", value)
	}
	return value, nil
}
