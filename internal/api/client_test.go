package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestUploadSendsMultipartForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("user_id"); got != "alice" {
			t.Errorf("expected user_id alice, got %q", got)
		}
		if got := r.FormValue("private_key"); got != "k1" {
			t.Errorf("expected private_key k1, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "report.pdf" || string(data) != "hello" {
			t.Errorf("unexpected file %q %q", header.Filename, data)
		}
		if ct := header.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("expected part type application/pdf, got %q", ct)
		}
		_ = json.NewEncoder(w).Encode(UploadResponse{IPFSHash: "h", TxHash: "t"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.Upload(context.Background(), UploadRequest{
		Filename:   "report.pdf",
		MediaType:  "application/pdf",
		OwnerID:    "alice",
		PrivateKey: "k1",
		Body:       strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.IPFSHash != "h" || resp.TxHash != "t" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDownloadReadsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req DownloadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.FileHash != "abc" || req.Version != 1 {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	result, err := NewClient(srv.URL).Download(context.Background(), DownloadRequest{FileHash: "abc", Version: 1}, &buf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if buf.String() != "payload" || result.Size != 7 {
		t.Fatalf("unexpected payload %q size %d", buf.String(), result.Size)
	}
	if result.Filename != "report.pdf" || result.MediaType != "application/pdf" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestErrorsDecodeToAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "File not found", Code: "not_found", ErrorCode: 2001})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetFile(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.ErrorCode != 2001 || apiErr.Message != "File not found" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound")
	}
}

func TestAdminCallsSendToken(t *testing.T) {
	t.Setenv(adminTokenEnvKey, "s3cret")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/admin/gc":
			if r.Header.Get("X-Admin-Token") != "s3cret" {
				t.Errorf("missing admin token")
			}
			if r.URL.Query().Get("apply") != "true" {
				t.Errorf("expected apply=true")
			}
			_ = json.NewEncoder(w).Encode(GCResponse{DeletedCount: 2})
		case "/api/files":
			if r.Header.Get("X-Admin-Token") != "" {
				t.Errorf("admin token leaked to public route")
			}
			if r.URL.Query().Get("user_id") != "alice" {
				t.Errorf("expected user_id query")
			}
			_, _ = w.Write([]byte("[]"))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	gc, err := client.AdminGC(context.Background(), true)
	if err != nil {
		t.Fatalf("admin gc: %v", err)
	}
	if gc.DeletedCount != 2 {
		t.Fatalf("unexpected gc response: %+v", gc)
	}
	files, err := client.ListFiles(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}
