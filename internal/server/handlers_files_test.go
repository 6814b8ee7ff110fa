package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filechain/internal/api"
	"filechain/internal/blobstore"
	"filechain/internal/models"
	"filechain/internal/store"
)

func newFileTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv(allowRemoteEnvKey, "")

	dbPath := filepath.Join(t.TempDir(), "filechain-test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	bs, err := blobstore.NewLocalCAS(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New("127.0.0.1:0", st, bs, nil, Options{BcryptCost: 4}, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.service.now = steppingClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return srv
}

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

type uploadForm struct {
	filename   string
	mediaType  string
	userID     string
	privateKey string
	content    []byte
	omitFile   bool
}

func postUpload(t *testing.T, srv *Server, form uploadForm) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if form.userID != "" {
		_ = writer.WriteField("user_id", form.userID)
	}
	if form.privateKey != "" {
		_ = writer.WriteField("private_key", form.privateKey)
	}
	if !form.omitFile {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + form.filename + `"`}
		mediaType := form.mediaType
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
		header["Content-Type"] = []string{mediaType}
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(form.content); err != nil {
			t.Fatalf("write form content: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	return w
}

func mustUpload(t *testing.T, srv *Server, form uploadForm) api.UploadResponse {
	t.Helper()
	w := postUpload(t, srv, form)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp api.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp
}

func postDownload(t *testing.T, srv *Server, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	switch v := payload.(type) {
	case string:
		body = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = encoded
	}
	req := httptest.NewRequest(http.MethodPost, "/download", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, srv *Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, w.Body.String())
	}
	return errResp
}

func TestUploadListDownloadRoundTrip(t *testing.T) {
	srv := newFileTestServer(t)
	content := bytes.Repeat([]byte{0x25, 0x50, 0x44, 0x46}, 256)

	resp := mustUpload(t, srv, uploadForm{
		filename:   "report.pdf",
		userID:     "alice",
		privateKey: "alice-secret",
		content:    content,
	})
	if !models.IsContentHash(resp.IPFSHash) {
		t.Fatalf("expected 64-hex content hash, got %q", resp.IPFSHash)
	}
	if !models.IsTransactionHash(resp.TxHash) {
		t.Fatalf("expected 64-hex tx hash, got %q", resp.TxHash)
	}
	digest, _, err := blobstore.Digest(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if resp.IPFSHash != digest {
		t.Fatalf("expected content hash %s, got %s", digest, resp.IPFSHash)
	}

	var files []models.FileRecord
	w := getJSON(t, srv, "/api/files?user_id=alice", &files)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	file := files[0]
	if file.Filename != "report.pdf" || file.SizeBytes != 1024 || file.Version != 1 {
		t.Fatalf("unexpected file record: %#v", file)
	}
	if file.MediaType != "application/pdf" {
		t.Fatalf("expected type application/pdf, got %q", file.MediaType)
	}
	if file.Status != models.FileStatusVerified || file.TransactionHash != resp.TxHash {
		t.Fatalf("expected verified record with tx hash, got %#v", file)
	}

	var txs []models.TransactionRecord
	w = getJSON(t, srv, "/api/transactions?user_id=alice", &txs)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if len(txs) != 1 || txs[0].TransactionHash != resp.TxHash || txs[0].FileID != file.ID {
		t.Fatalf("unexpected transactions: %#v", txs)
	}
	if strings.Contains(w.Body.String(), "alice-secret") || strings.Contains(w.Body.String(), "credential") {
		t.Fatalf("credential leaked in listing: %s", w.Body.String())
	}

	w = postDownload(t, srv, api.DownloadRequest{FileHash: resp.IPFSHash, Version: 1, PrivateKey: "alice-secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("expected Content-Type application/pdf, got %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="report.pdf"` {
		t.Fatalf("unexpected Content-Disposition %q", got)
	}
	if got := w.Header().Get("Content-Length"); got != "1024" {
		t.Fatalf("expected Content-Length 1024, got %q", got)
	}
	if !bytes.Equal(w.Body.Bytes(), content) {
		t.Fatalf("downloaded bytes differ from upload (%d bytes)", w.Body.Len())
	}
}

func TestDownloadVersionDefaultsToInitial(t *testing.T) {
	srv := newFileTestServer(t)
	resp := mustUpload(t, srv, uploadForm{filename: "notes.txt", userID: "bob", privateKey: "k", content: []byte("hello")})

	w := postDownload(t, srv, map[string]any{"file_hash": strings.ToUpper(resp.IPFSHash)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/plain" {
		t.Fatalf("expected text/plain, got %q", got)
	}
	if w.Body.String() != "hello" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}

	w = postDownload(t, srv, api.DownloadRequest{FileHash: resp.IPFSHash, Version: 2})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown version, got %d", w.Code)
	}
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name    string
		form    uploadForm
		message string
		code    int
	}{
		{
			name:    "missing file",
			form:    uploadForm{userID: "alice", privateKey: "k", omitFile: true},
			message: "No file provided",
			code:    ErrCodeMissingFile,
		},
		{
			name:    "missing user id",
			form:    uploadForm{filename: "a.txt", privateKey: "k", content: []byte("a")},
			message: "Missing user_id or private_key",
			code:    ErrCodeMissingRequired,
		},
		{
			name:    "missing private key",
			form:    uploadForm{filename: "a.txt", userID: "alice", content: []byte("a")},
			message: "Missing user_id or private_key",
			code:    ErrCodeMissingRequired,
		},
		{
			name:    "missing file wins over missing fields",
			form:    uploadForm{omitFile: true},
			message: "No file provided",
			code:    ErrCodeMissingFile,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newFileTestServer(t)
			w := postUpload(t, srv, tc.form)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
			errResp := decodeErrorResponse(t, w)
			if errResp.Error != tc.message {
				t.Fatalf("expected %q, got %q", tc.message, errResp.Error)
			}
			if errResp.ErrorCode != tc.code {
				t.Fatalf("expected error_code %d, got %d", tc.code, errResp.ErrorCode)
			}

			counts, err := srv.service.ledger.Counts(context.Background())
			if err != nil {
				t.Fatalf("counts: %v", err)
			}
			if counts.Files != 0 || counts.Transactions != 0 || counts.Blobs != 0 {
				t.Fatalf("expected nothing persisted, got %#v", counts)
			}
			objects := 0
			if err := srv.service.blobs.Walk(context.Background(), func(blobstore.BlobInfo) error {
				objects++
				return nil
			}); err != nil {
				t.Fatalf("walk: %v", err)
			}
			if objects != 0 {
				t.Fatalf("expected no stored objects, got %d", objects)
			}
		})
	}
}

func TestUploadNotMultipart(t *testing.T) {
	srv := newFileTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"user_id":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if errResp := decodeErrorResponse(t, w); errResp.Error != "No file provided" {
		t.Fatalf("unexpected error %q", errResp.Error)
	}
}

func TestUploadTooLarge(t *testing.T) {
	srv := newFileTestServer(t)
	srv.maxUploadBytes = 512
	srv.multipartMemory = 128

	w := postUpload(t, srv, uploadForm{filename: "big.bin", userID: "alice", privateKey: "k", content: bytes.Repeat([]byte("x"), 4096)})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
	}
	if errResp := decodeErrorResponse(t, w); errResp.ErrorCode != ErrCodeRequestTooLarge {
		t.Fatalf("expected error_code %d, got %d", ErrCodeRequestTooLarge, errResp.ErrorCode)
	}
}

func TestDownloadErrors(t *testing.T) {
	srv := newFileTestServer(t)

	t.Run("missing hash", func(t *testing.T) {
		w := postDownload(t, srv, api.DownloadRequest{Version: 1})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if errResp := decodeErrorResponse(t, w); errResp.Error != "File hash is required" {
			t.Fatalf("unexpected error %q", errResp.Error)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		w := postDownload(t, srv, "{not json")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if errResp := decodeErrorResponse(t, w); errResp.ErrorCode != ErrCodeInvalidJSON {
			t.Fatalf("expected error_code %d, got %d", ErrCodeInvalidJSON, errResp.ErrorCode)
		}
	})

	t.Run("unknown hash", func(t *testing.T) {
		w := postDownload(t, srv, api.DownloadRequest{FileHash: strings.Repeat("ab", 32), Version: 1})
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		errResp := decodeErrorResponse(t, w)
		if errResp.Error != "File not found" || errResp.ErrorCode != ErrCodeFileNotFound {
			t.Fatalf("unexpected error response %#v", errResp)
		}
		if w.Header().Get("Content-Disposition") != "" {
			t.Fatal("expected no attachment headers on 404")
		}
	})

	t.Run("malformed hash", func(t *testing.T) {
		w := postDownload(t, srv, api.DownloadRequest{FileHash: "../../etc/passwd"})
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestDownloadOrphanedRecord(t *testing.T) {
	srv := newFileTestServer(t)
	resp := mustUpload(t, srv, uploadForm{filename: "photo.png", userID: "carol", privateKey: "k", content: []byte("png bytes")})

	key, err := blobstore.KeyForDigest(resp.IPFSHash)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if err := srv.service.blobs.Delete(context.Background(), key); err != nil {
		t.Fatalf("delete blob: %v", err)
	}

	w := postDownload(t, srv, api.DownloadRequest{FileHash: resp.IPFSHash, Version: 1})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", w.Code, w.Body.String())
	}
	if errResp := decodeErrorResponse(t, w); errResp.ErrorCode != ErrCodeContentMissing {
		t.Fatalf("expected error_code %d, got %d", ErrCodeContentMissing, errResp.ErrorCode)
	}

	var file models.FileRecord
	if w := getJSON(t, srv, "/api/files/"+resp.IPFSHash, &file); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if file.Status != models.FileStatusFailed {
		t.Fatalf("expected status failed, got %q", file.Status)
	}
}

func TestDuplicateContentAppendsRecords(t *testing.T) {
	srv := newFileTestServer(t)
	form := uploadForm{filename: "same.txt", userID: "dave", privateKey: "k", content: []byte("identical bytes")}

	first := mustUpload(t, srv, form)
	second := mustUpload(t, srv, form)
	if first.IPFSHash != second.IPFSHash {
		t.Fatalf("expected same content hash, got %s and %s", first.IPFSHash, second.IPFSHash)
	}
	if first.TxHash == second.TxHash {
		t.Fatal("expected distinct transaction hashes")
	}

	var files []models.FileRecord
	getJSON(t, srv, "/api/files?user_id=dave", &files)
	if len(files) != 2 {
		t.Fatalf("expected 2 file records, got %d", len(files))
	}
	for _, f := range files {
		if f.Version != 1 {
			t.Fatalf("expected version 1, got %d", f.Version)
		}
	}

	objects := 0
	if err := srv.service.blobs.Walk(context.Background(), func(blobstore.BlobInfo) error {
		objects++
		return nil
	}); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if objects != 1 {
		t.Fatalf("expected 1 stored object, got %d", objects)
	}
}

func TestListingsScopedToOwnerMostRecentFirst(t *testing.T) {
	srv := newFileTestServer(t)
	mustUpload(t, srv, uploadForm{filename: "one.txt", userID: "erin", privateKey: "k", content: []byte("1")})
	mustUpload(t, srv, uploadForm{filename: "other.txt", userID: "frank", privateKey: "k", content: []byte("x")})
	latest := mustUpload(t, srv, uploadForm{filename: "two.txt", userID: "erin", privateKey: "k", content: []byte("2")})

	var files []models.FileRecord
	getJSON(t, srv, "/api/files?user_id=erin", &files)
	if len(files) != 2 {
		t.Fatalf("expected 2 files for erin, got %d", len(files))
	}
	if files[0].Filename != "two.txt" || files[1].Filename != "one.txt" {
		t.Fatalf("expected most recent first, got %s, %s", files[0].Filename, files[1].Filename)
	}
	for _, f := range files {
		if f.OwnerID != "erin" {
			t.Fatalf("listing leaked record of %s", f.OwnerID)
		}
	}

	var txs []models.TransactionRecord
	getJSON(t, srv, "/api/transactions?user_id=erin", &txs)
	if len(txs) != 2 || txs[0].TransactionHash != latest.TxHash {
		t.Fatalf("expected latest transaction first, got %#v", txs)
	}

	var none []models.FileRecord
	w := getJSON(t, srv, "/api/files?user_id=nobody", &none)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %d %s", w.Code, w.Body.String())
	}
}

func TestListingsRequireOwner(t *testing.T) {
	srv := newFileTestServer(t)
	for _, path := range []string{"/api/files", "/api/transactions?user_id=%20"} {
		w := getJSON(t, srv, path, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
		if errResp := decodeErrorResponse(t, w); errResp.ErrorCode != ErrCodeMissingRequired {
			t.Fatalf("%s: expected error_code %d, got %d", path, ErrCodeMissingRequired, errResp.ErrorCode)
		}
	}
}

func TestGetFileAndTransaction(t *testing.T) {
	srv := newFileTestServer(t)
	resp := mustUpload(t, srv, uploadForm{filename: "data.json", userID: "gina", privateKey: "k", content: []byte(`{"a":1}`)})

	var file models.FileRecord
	if w := getJSON(t, srv, "/api/files/"+resp.IPFSHash, &file); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if file.MediaType != "application/json" || file.OwnerID != "gina" {
		t.Fatalf("unexpected file %#v", file)
	}

	var record models.TransactionRecord
	if w := getJSON(t, srv, "/api/transactions/"+resp.TxHash, &record); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if record.ContentHash != resp.IPFSHash || record.Filename != "data.json" {
		t.Fatalf("unexpected transaction %#v", record)
	}

	w := getJSON(t, srv, "/api/transactions/"+strings.Repeat("0", 64), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if errResp := decodeErrorResponse(t, w); errResp.ErrorCode != ErrCodeTransactionNotFound {
		t.Fatalf("expected error_code %d, got %d", ErrCodeTransactionNotFound, errResp.ErrorCode)
	}
}

func TestUploadLedgerFailureIsGeneric(t *testing.T) {
	srv := newFileTestServer(t)
	srv.service.ledger = failingLedger{Ledger: srv.service.ledger}

	w := postUpload(t, srv, uploadForm{filename: "a.txt", userID: "alice", privateKey: "k", content: []byte("a")})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	errResp := decodeErrorResponse(t, w)
	if errResp.Error != "upload failed" || errResp.ErrorCode != ErrCodeUploadFailed {
		t.Fatalf("unexpected error response %#v", errResp)
	}
}

type failingLedger struct {
	store.Ledger
}

func (failingLedger) AppendUpload(context.Context, *models.Blob, *models.FileRecord, *models.TransactionRecord) error {
	return os.ErrPermission
}

func TestUploadWithUnusableCostStoresNothing(t *testing.T) {
	srv := newFileTestServer(t)
	srv.service.bcryptCost = 2

	w := postUpload(t, srv, uploadForm{filename: "a.txt", userID: "alice", privateKey: "k", content: []byte("a")})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	stored := 0
	if err := srv.service.blobs.Walk(context.Background(), func(blobstore.BlobInfo) error {
		stored++
		return nil
	}); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if stored != 0 {
		t.Fatalf("expected no stored content, found %d objects", stored)
	}
}
