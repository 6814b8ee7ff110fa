package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"filechain/internal/api"
)

const (
	defaultUploadMaxBody   = 100 << 20 // 100 MiB
	defaultMultipartMemory = 8 << 20   // 8 MiB

	msgNoFileProvided = "No file provided"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.multipartMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(errors.New(msgNoFileProvided), ErrCodeMissingFile))
		return
	}
	defer file.Close()

	resp, err := s.service.Upload(r.Context(), UploadInput{
		Filename:          header.Filename,
		OwnerID:           r.FormValue("user_id"),
		Credential:        r.FormValue("private_key"),
		DeclaredMediaType: header.Header.Get("Content-Type"),
	}, file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req api.DownloadRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	content, err := s.service.Download(r.Context(), req.FileHash, req.Version, req.PrivateKey)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer content.Reader.Close()

	w.Header().Set("Content-Type", content.MediaType)
	w.Header().Set("Content-Disposition", contentDisposition(content.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(content.SizeBytes, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content.Reader); err != nil {
		s.log().Warn("stream download", "filename", content.Filename, "request_id", requestID(r), "error", err)
	}
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.ListFiles(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.service.GetFile(r.Context(), r.PathValue("hash"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.service.ListTransactions(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetTransaction(r.Context(), r.PathValue("tx_hash"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return badRequestCode(errors.New(msgNoFileProvided), ErrCodeMissingFile)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}

// contentDisposition renders an attachment header with a quoted ASCII
// filename, adding an RFC 5987 filename* when the name is not plain ASCII.
func contentDisposition(filename string) string {
	filename = strings.NewReplacer("\r", "", "\n", "").Replace(filename)
	if filename == "" {
		filename = fallbackFilename
	}

	ascii := true
	var b strings.Builder
	for _, r := range filename {
		switch {
		case r > 0x7e || r < 0x20:
			ascii = false
			b.WriteByte('_')
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	header := `attachment; filename="` + b.String() + `"`
	if !ascii {
		header += "; filename*=UTF-8''" + strings.ReplaceAll(url.QueryEscape(filename), "+", "%20")
	}
	return header
}
