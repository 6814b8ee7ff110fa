package server

import (
	"net/http"

	"filechain/internal/api"
)

func (s *Server) handleAdminGC(w http.ResponseWriter, r *http.Request) {
	apply, err := queryBool(r, "apply")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	s.withLimiter(w, r, s.adminLimiter, "admin", func() {
		result, err := s.service.GCOrphans(r.Context(), apply)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		resp := api.GCResponse{
			DryRun:         result.DryRun,
			CandidateCount: result.CandidateCount,
			DeletedCount:   result.DeletedCount,
			FailedCount:    result.FailedCount,
			ReclaimedBytes: result.ReclaimedBytes,
			Candidates:     result.Candidates,
		}
		if resp.Candidates == nil {
			resp.Candidates = []string{}
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) handleAdminVerify(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.adminLimiter, "admin", func() {
		result, err := s.service.Verify(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		resp := api.VerifyResponse{
			Checked:      result.Checked,
			Verified:     result.Verified,
			Failed:       result.Failed,
			FailedHashes: result.FailedHashes,
		}
		if resp.FailedHashes == nil {
			resp.FailedHashes = []string{}
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.exportLimiter, "export", func() {
		snapshot, err := s.service.Export(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, snapshot)
	})
}
