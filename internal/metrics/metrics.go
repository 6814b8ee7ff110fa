// Package metrics registers the Prometheus collectors exported on /metrics.
// HTTP metrics are recorded by Middleware; ledger metrics are updated from the
// file service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for the upload and download operation counters.
const (
	// ResultOK marks a completed operation.
	ResultOK = "ok"
	// ResultInvalid marks a request rejected before any storage work.
	ResultInvalid = "invalid"
	// ResultNotFound marks a download of an unknown or missing file.
	ResultNotFound = "not_found"
	// ResultError marks a storage or ledger failure.
	ResultError = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filechain_http_requests_total",
			Help: "HTTP requests served, by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filechain_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var (
	// OperationsTotal counts file operations by kind and result.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filechain_operations_total",
			Help: "File operations, by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// TransferredBytes counts payload bytes accepted or served.
	TransferredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filechain_transferred_bytes_total",
			Help: "Payload bytes uploaded or downloaded.",
		},
		[]string{"direction"},
	)

	// CacheLookups counts listing cache hits and misses.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filechain_listing_cache_lookups_total",
			Help: "Listing cache lookups, by listing and outcome.",
		},
		[]string{"listing", "outcome"},
	)

	// LedgerRecords is the current number of ledger rows per table.
	LedgerRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filechain_ledger_records",
			Help: "Rows currently in the ledger, by table.",
		},
		[]string{"table"},
	)

	// StoredBytes is the size of all indexed content objects.
	StoredBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filechain_stored_bytes",
			Help: "Bytes held by indexed content objects.",
		},
	)
)

// ObserveUpload records one upload attempt.
func ObserveUpload(result string, size int64) {
	OperationsTotal.WithLabelValues("upload", result).Inc()
	if result == ResultOK && size > 0 {
		TransferredBytes.WithLabelValues("in").Add(float64(size))
	}
}

// ObserveDownload records one download attempt.
func ObserveDownload(result string, size int64) {
	OperationsTotal.WithLabelValues("download", result).Inc()
	if result == ResultOK && size > 0 {
		TransferredBytes.WithLabelValues("out").Add(float64(size))
	}
}

// ObserveCache records a listing cache lookup.
func ObserveCache(listing string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	CacheLookups.WithLabelValues(listing, outcome).Inc()
}

// SetLedgerSize publishes ledger row counts.
func SetLedgerSize(files, transactions, blobs int, blobBytes int64) {
	LedgerRecords.WithLabelValues("files").Set(float64(files))
	LedgerRecords.WithLabelValues("transactions").Set(float64(transactions))
	LedgerRecords.WithLabelValues("blobs").Set(float64(blobs))
	StoredBytes.Set(float64(blobBytes))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per normalized route.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := NormalizePath(r.URL.Path)

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var knownPaths = map[string]struct{}{
	"/upload":           {},
	"/download":         {},
	"/api/files":        {},
	"/api/transactions": {},
	"/health":           {},
	"/metrics":          {},
	"/v1/info":          {},
	"/v1/admin/gc":      {},
	"/v1/admin/verify":  {},
	"/v1/admin/export":  {},
}

// NormalizePath collapses hash path segments so label cardinality stays bounded.
func NormalizePath(path string) string {
	if _, ok := knownPaths[path]; ok {
		return path
	}
	switch {
	case hasSingleSegment(path, "/api/files/"):
		return "/api/files/{hash}"
	case hasSingleSegment(path, "/api/transactions/"):
		return "/api/transactions/{tx_hash}"
	}
	return "other"
}

func hasSingleSegment(path, prefix string) bool {
	rest, ok := strings.CutPrefix(path, prefix)
	return ok && rest != "" && !strings.Contains(rest, "/")
}
