package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"docqa/internal/config"
	"docqa/internal/ingest"
	"docqa/internal/models"
	"docqa/internal/util"
	"docqa/internal/workflows"
)

const maxUploadBytes = 128 << 20

var (
	errNoFiles       = errors.New("no files provided")
	errAsyncDisabled = errors.New("async ingestion is not configured")
	errInvalidLimit  = errors.New("limit must be a positive integer")
)

type Ingester interface {
	Ingest(ctx context.Context, filename string, data []byte) (string, error)
	IngestMany(ctx context.Context, files []ingest.File) ([]ingest.Outcome, error)
}

type Asker interface {
	Run(ctx context.Context, question, sessionID string) (models.Answer, error)
}

type Sessions interface {
	History(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// AsyncIngester runs ingestion out of band. It is nil when no workflow
// engine is configured.
type AsyncIngester interface {
	Start(ctx context.Context, filename string, data []byte) (workflows.AsyncStart, error)
	Progress(ctx context.Context, documentID string) (workflows.DocumentIngestProgress, error)
}

type Deps struct {
	Ingester Ingester
	Asker    Asker
	Sessions Sessions
	Async    AsyncIngester
}

type Server struct {
	cfg      config.Config
	ingester Ingester
	asker    Asker
	sessions Sessions
	async    AsyncIngester
	logger   *slog.Logger
}

func NewServer(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		ingester: deps.Ingester,
		asker:    deps.Asker,
		sessions: deps.Sessions,
		async:    deps.Async,
		logger:   slog.Default().With("component", "api"),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/sessions/", s.handleSessionsScoped)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type upload struct {
	filename string
	data     []byte
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	files, err := readUploads(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		s.startAsync(w, r, files)
		return
	}

	if len(files) == 1 {
		f := files[0]
		id, err := s.ingester.Ingest(r.Context(), f.filename, f.data)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"document_id": id,
			"filename":    f.filename,
			"message":     fmt.Sprintf("Document %s uploaded and indexed successfully", f.filename),
		})
		return
	}

	batch := make([]ingest.File, 0, len(files))
	for _, f := range files {
		batch = append(batch, ingest.File{Filename: f.filename, Data: f.data})
	}
	outcomes, err := s.ingester.IngestMany(r.Context(), batch)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	type uploadResult struct {
		Filename   string     `json:"filename"`
		DocumentID string     `json:"document_id,omitempty"`
		Error      *errorBody `json:"error,omitempty"`
	}
	out := make([]uploadResult, 0, len(outcomes))
	for _, o := range outcomes {
		res := uploadResult{Filename: o.Filename, DocumentID: o.DocumentID}
		if o.Err != nil {
			body := toAPIError(statusFor(o.Err), o.Err).body()
			res.Error = &body
		}
		out = append(out, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploaded": out})
}

func (s *Server) startAsync(w http.ResponseWriter, r *http.Request, files []upload) {
	if s.async == nil {
		writeErr(w, http.StatusBadRequest, errAsyncDisabled)
		return
	}
	if len(files) == 1 {
		st, err := s.async.Start(r.Context(), files[0].filename, files[0].data)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, st)
		return
	}

	type asyncResult struct {
		Filename string `json:"filename"`
		*workflows.AsyncStart
		Error *errorBody `json:"error,omitempty"`
	}
	out := make([]asyncResult, 0, len(files))
	for _, f := range files {
		res := asyncResult{Filename: f.filename}
		st, err := s.async.Start(r.Context(), f.filename, f.data)
		if err != nil {
			status := statusFor(err)
			if status >= 500 {
				s.logger.Error("async ingestion not started", "filename", f.filename, "status", status, "err", err)
			}
			body := toAPIError(status, err).body()
			res.Error = &body
		} else {
			res.AsyncStart = &st
		}
		out = append(out, res)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"started": out})
}

// readUploads accepts multipart forms ("files" or any single file field) and
// raw bodies named by ?filename= or the X-Filename header.
func readUploads(r *http.Request) ([]upload, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, fmt.Errorf("parse multipart: %w", err)
		}
		fhs := r.MultipartForm.File["files"]
		if len(fhs) == 0 {
			if single, ok := firstSingleFile(r.MultipartForm.File); ok {
				fhs = append(fhs, single)
			}
		}
		if len(fhs) == 0 {
			return nil, errNoFiles
		}
		out := make([]upload, 0, len(fhs))
		for _, fh := range fhs {
			data, err := readFileHeader(fh)
			if err != nil {
				return nil, err
			}
			out = append(out, upload{filename: filepath.Base(fh.Filename), data: data})
		}
		return out, nil
	}

	name := r.URL.Query().Get("filename")
	if name == "" {
		name = r.Header.Get("X-Filename")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.ErrEmptyFilename
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	return []upload{{filename: filepath.Base(name), data: data}}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	if v := m["file"]; len(v) > 0 {
		return v[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	ans, err := s.asker.Run(r.Context(), req.Question, req.SessionID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleSessionsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	sessionID := parts[0]

	if len(parts) == 2 && parts[1] == "history" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		limit := s.cfg.HistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeErr(w, http.StatusBadRequest, errInvalidLimit)
				return
			}
			limit = n
		}
		history, err := s.sessions.History(r.Context(), sessionID, limit)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "history": history})
		return
	}
	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if err := s.sessions.ClearSession(r.Context(), sessionID); err != nil {
			s.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Session %s cleared", sessionID)})
		return
	}
	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "progress" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.async == nil {
		writeErr(w, http.StatusNotFound, errAsyncDisabled)
		return
	}
	prog, err := s.async.Progress(r.Context(), parts[0])
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// writeFailure maps a domain error to its HTTP status and logs server-side failures.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeErr(w, status, err)
}

func statusFor(err error) int {
	var (
		exErr     *util.ExtractionError
		decErr    *util.DecodeError
		ixErr     *util.IndexingError
		embErr    *util.EmbeddingError
		lmErr     *util.LanguageModelError
		searchErr *util.SearchUnavailableError
	)
	switch {
	case errors.Is(err, util.ErrEmptyQuestion), errors.Is(err, util.ErrEmptyFilename):
		return http.StatusBadRequest
	case errors.As(err, &exErr), errors.As(err, &decErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ixErr), errors.As(err, &embErr), errors.As(err, &lmErr):
		return http.StatusBadGateway
	case errors.As(err, &searchErr), errors.Is(err, workflows.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, workflows.ErrAlreadyStarted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": toAPIError(code, err).body()})
}

type apiError struct {
	Code        string
	Message     string
	DocumentID  string
	LastOrdinal *int
}

type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	DocumentID  string `json:"document_id,omitempty"`
	LastOrdinal *int   `json:"last_ordinal,omitempty"`
}

func (e apiError) body() errorBody {
	return errorBody{Code: e.Code, Message: e.Message, DocumentID: e.DocumentID, LastOrdinal: e.LastOrdinal}
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "DQ-API-4000"

	var ixErr *util.IndexingError
	if errors.As(err, &ixErr) {
		last := ixErr.LastOrdinal
		return apiError{
			Code:        "DQ-API-5021",
			Message:     fmt.Sprintf("Indexing stopped after chunk %d. Chunks up to that point are searchable; re-upload to index the rest.", last),
			DocumentID:  ixErr.DocumentID,
			LastOrdinal: &last,
		}
	}

	switch {
	case status == http.StatusServiceUnavailable:
		if errors.Is(err, workflows.ErrEngineUnavailable) {
			return apiError{Code: "DQ-API-5031", Message: "Ingestion engine is unavailable. Retry shortly or upload without async."}
		}
		return apiError{Code: "DQ-API-5030", Message: "Search is unavailable. Retry shortly."}
	case status == http.StatusBadGateway:
		var embErr *util.EmbeddingError
		if errors.As(err, &embErr) {
			return apiError{Code: "DQ-API-5020", Message: "Embedding provider unavailable. Retry shortly."}
		}
		return apiError{Code: "DQ-API-5020", Message: "Language model unavailable. Retry shortly."}
	case status >= 500:
		return apiError{Code: "DQ-API-5000", Message: "Internal server error. Please retry or check service logs."}
	case status == http.StatusBadRequest:
		code = "DQ-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "DQ-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "DQ-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "DQ-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusUnprocessableEntity:
		code = "DQ-API-4220"
		msg = "The document could not be read."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		var exErr *util.ExtractionError
		var decErr *util.DecodeError
		switch {
		case errors.As(err, &exErr):
			msg = fmt.Sprintf("Could not extract text from %s as %s.", exErr.Filename, strings.ToUpper(exErr.Format))
		case errors.As(err, &decErr):
			msg = fmt.Sprintf("%s is not valid UTF-8 text.", decErr.Filename)
		case errors.Is(err, util.ErrEmptyQuestion):
			msg = "Question is required."
		case errors.Is(err, util.ErrEmptyFilename):
			msg = "Filename is required. Pass ?filename= or an X-Filename header."
		case errors.Is(err, errNoFiles):
			msg = "No files were provided."
		case errors.Is(err, errAsyncDisabled):
			msg = "Async ingestion is not configured on this server."
		case errors.Is(err, workflows.ErrAlreadyStarted):
			msg = "Ingestion of this document has already started."
		case errors.Is(err, errInvalidLimit):
			msg = "limit must be a positive integer."
		case strings.Contains(strings.ToLower(err.Error()), "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Filename")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
