package models

import "time"

// TransactionRecord is the simulated chain transaction written for one upload.
type TransactionRecord struct {
	TransactionHash string    `json:"tx_hash" yaml:"tx_hash"`
	FileID          string    `json:"file_id" yaml:"file_id"`
	ContentHash     string    `json:"hash" yaml:"hash"`
	Filename        string    `json:"filename" yaml:"filename"`
	SizeBytes       int64     `json:"size" yaml:"size"`
	Version         int       `json:"version" yaml:"version"`
	OwnerID         string    `json:"user_id" yaml:"user_id"`
	CredentialHash  string    `json:"-" yaml:"-"`
	CreatedAt       time.Time `json:"timestamp" yaml:"timestamp"`
}
