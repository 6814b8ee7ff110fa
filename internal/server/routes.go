package server

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"filechain/internal/metrics"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check, info and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.Handle("GET /metrics", metrics.Handler())

	// Upload and download.
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /download", s.handleDownload)

	// Ledger queries.
	mux.HandleFunc("GET /api/files", s.handleListFiles)
	mux.HandleFunc("GET /api/files/{hash}", s.handleGetFile)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{tx_hash}", s.handleGetTransaction)

	// Admin.
	mux.HandleFunc("POST /v1/admin/gc", s.handleAdminGC)
	mux.HandleFunc("POST /v1/admin/verify", s.handleAdminVerify)
	mux.HandleFunc("GET /v1/admin/export", s.handleAdminExport)

	var handler http.Handler = mux
	handler = s.withAdminAuth(handler)
	handler = s.withRequestLogging(handler)
	handler = metrics.Middleware()(handler)
	handler = middleware.Recoverer(handler)
	handler = middleware.RealIP(handler)
	handler = middleware.RequestID(handler)
	return handler
}
