// Package cache holds per-owner listing results in front of the ledger.
package cache

import (
	"context"

	"filechain/internal/models"
)

// ListingCache stores per-owner file and transaction listings.
// A miss returns ok=false with a nil error.
type ListingCache interface {
	GetFiles(ctx context.Context, ownerID string) (files []models.FileRecord, ok bool, err error)
	SetFiles(ctx context.Context, ownerID string, files []models.FileRecord) error
	GetTransactions(ctx context.Context, ownerID string) (txs []models.TransactionRecord, ok bool, err error)
	SetTransactions(ctx context.Context, ownerID string, txs []models.TransactionRecord) error
	Invalidate(ctx context.Context, ownerID string) error
	Close() error
}

// Nop is a ListingCache that never hits.
type Nop struct{}

func (Nop) GetFiles(context.Context, string) ([]models.FileRecord, bool, error) {
	return nil, false, nil
}

func (Nop) SetFiles(context.Context, string, []models.FileRecord) error { return nil }

func (Nop) GetTransactions(context.Context, string) ([]models.TransactionRecord, bool, error) {
	return nil, false, nil
}

func (Nop) SetTransactions(context.Context, string, []models.TransactionRecord) error { return nil }

func (Nop) Invalidate(context.Context, string) error { return nil }

func (Nop) Close() error { return nil }

var _ ListingCache = Nop{}
