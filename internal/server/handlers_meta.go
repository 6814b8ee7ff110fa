package server

import (
	"net/http"

	"filechain/internal/api"
	"filechain/internal/cache"
	"filechain/internal/metrics"
	"filechain/internal/store"
)

type migrationReporter interface {
	MigrationStatus() (*store.MigrationStatus, error)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.ledger.Counts(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	metrics.SetLedgerSize(counts.Files, counts.Transactions, counts.Blobs, counts.BlobBytes)

	resp := api.InfoResponse{
		Version:        s.version,
		StorageBackend: s.service.blobs.Backend(),
		Files:          counts.Files,
		Transactions:   counts.Transactions,
		Blobs:          counts.Blobs,
		StoredBytes:    counts.BlobBytes,
	}
	if _, isNop := s.service.listings.(cache.Nop); !isNop {
		resp.CacheEnabled = true
	}
	if reporter, ok := s.service.ledger.(migrationReporter); ok {
		status, err := reporter.MigrationStatus()
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp.SchemaVersion = status.CurrentVersion
	}

	s.writeJSON(w, http.StatusOK, resp)
}
