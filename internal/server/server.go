package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"filechain/internal/blobstore"
	"filechain/internal/cache"
	"filechain/internal/store"
)

const (
	allowRemoteEnvKey    = "FILECHAIN_ALLOW_REMOTE"
	readHeaderTimeout    = 5 * time.Second
	idleTimeout          = 60 * time.Second
	shutdownTimeout      = 10 * time.Second
	adminConcurrency     = 1
	exportConcurrency    = 2
	defaultServerVersion = "dev"
)

// Options carries runtime policy for the server.
type Options struct {
	AdminToken         string
	MaxUploadBytes     int64
	MultipartMaxMemory int64
	BcryptCost         int
	GCBatchSize        int
	Version            string
}

// Server wraps HTTP handlers for the filechain API.
type Server struct {
	addr            string
	service         *FileService
	logger          *slog.Logger
	adminToken      string
	maxUploadBytes  int64
	multipartMemory int64
	version         string
	adminLimiter    chan struct{}
	exportLimiter   chan struct{}
}

// New creates a new server instance. It fails when opts carry a policy the
// file service cannot run with.
func New(addr string, ledger store.Ledger, blobs blobstore.BlobStore, listings cache.ListingCache, opts Options, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultUploadMaxBody
	}
	if opts.MultipartMaxMemory <= 0 {
		opts.MultipartMaxMemory = defaultMultipartMemory
	}
	if strings.TrimSpace(opts.Version) == "" {
		opts.Version = defaultServerVersion
	}

	service := NewFileService(ledger, blobs, listings, logger)
	if err := service.ConfigurePolicy(opts.BcryptCost, opts.GCBatchSize); err != nil {
		return nil, fmt.Errorf("credentials.bcrypt_cost: %w", err)
	}

	return &Server{
		addr:            addr,
		service:         service,
		logger:          logger,
		adminToken:      strings.TrimSpace(opts.AdminToken),
		maxUploadBytes:  opts.MaxUploadBytes,
		multipartMemory: opts.MultipartMaxMemory,
		version:         opts.Version,
		adminLimiter:    make(chan struct{}, adminConcurrency),
		exportLimiter:   make(chan struct{}, exportConcurrency),
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log().Info("shutting down server", "addr", s.addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}
