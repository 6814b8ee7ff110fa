package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "FILECHAIN_HTTP_TIMEOUT"
	adminTokenEnvKey   = "FILECHAIN_ADMIN_TOKEN"
)

// Client is a simple HTTP client for the filechain API.
type Client struct {
	baseURL    string
	http       *http.Client
	transfer   *http.Client
	adminToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		// Transfers are bounded by the caller's context, not a fixed timeout.
		transfer:   &http.Client{},
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

// UploadRequest describes one file to upload.
type UploadRequest struct {
	Filename   string
	MediaType  string
	OwnerID    string
	PrivateKey string
	Body       io.Reader
}

// Upload streams one file as multipart form data to POST /upload.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResponse, error) {
	var resp UploadResponse
	if req.Body == nil {
		return resp, fmt.Errorf("upload body is required")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, req))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		_ = pr.Close()
		return resp, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := c.transfer.Do(httpReq)
	if err != nil {
		_ = pr.Close()
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest) error {
	if err := mw.WriteField("user_id", req.OwnerID); err != nil {
		return err
	}
	if err := mw.WriteField("private_key", req.PrivateKey); err != nil {
		return err
	}

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": req.Filename}),
	}
	mediaType := strings.TrimSpace(req.MediaType)
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	header["Content-Type"] = []string{mediaType}

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, req.Body); err != nil {
		return err
	}
	return mw.Close()
}

// Download streams the stored bytes of one file version into w.
func (c *Client) Download(ctx context.Context, req DownloadRequest, w io.Writer) (DownloadResult, error) {
	var result DownloadResult
	payload, err := json.Marshal(req)
	if err != nil {
		return result, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download", bytes.NewReader(payload))
	if err != nil {
		return result, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.transfer.Do(httpReq)
	if err != nil {
		return result, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return result, decodeError(httpResp)
	}

	result.MediaType = httpResp.Header.Get("Content-Type")
	if _, params, err := mime.ParseMediaType(httpResp.Header.Get("Content-Disposition")); err == nil {
		result.Filename = params["filename"]
	}
	n, err := io.Copy(w, httpResp.Body)
	result.Size = n
	return result, err
}

func (c *Client) ListFiles(ctx context.Context, ownerID string) ([]FileRecord, error) {
	var resp []FileRecord
	err := c.do(ctx, http.MethodGet, "/api/files", url.Values{"user_id": {ownerID}}, nil, &resp)
	return resp, err
}

func (c *Client) ListTransactions(ctx context.Context, ownerID string) ([]TransactionRecord, error) {
	var resp []TransactionRecord
	err := c.do(ctx, http.MethodGet, "/api/transactions", url.Values{"user_id": {ownerID}}, nil, &resp)
	return resp, err
}

func (c *Client) GetFile(ctx context.Context, hash string) (FileRecord, error) {
	var resp FileRecord
	err := c.do(ctx, http.MethodGet, "/api/files/"+url.PathEscape(hash), nil, nil, &resp)
	return resp, err
}

func (c *Client) GetTransaction(ctx context.Context, txHash string) (TransactionRecord, error) {
	var resp TransactionRecord
	err := c.do(ctx, http.MethodGet, "/api/transactions/"+url.PathEscape(txHash), nil, nil, &resp)
	return resp, err
}

// AdminGC runs the orphan sweep; apply=false only reports candidates.
func (c *Client) AdminGC(ctx context.Context, apply bool) (GCResponse, error) {
	var resp GCResponse
	query := url.Values{}
	if apply {
		query.Set("apply", "true")
	}
	err := c.do(ctx, http.MethodPost, "/v1/admin/gc", query, nil, &resp)
	return resp, err
}

func (c *Client) AdminVerify(ctx context.Context) (VerifyResponse, error) {
	var resp VerifyResponse
	err := c.do(ctx, http.MethodPost, "/v1/admin/verify", nil, nil, &resp)
	return resp, err
}

func (c *Client) AdminExport(ctx context.Context) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodGet, "/v1/admin/export", nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.HasPrefix(path, "/v1/admin/") {
		c.setAdminHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func (c *Client) setAdminHeader(req *http.Request) {
	if c.adminToken == "" || req == nil {
		return
	}
	req.Header.Set("X-Admin-Token", c.adminToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
