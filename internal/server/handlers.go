package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/limudai/limud/internal/config"
	"github.com/limudai/limud/internal/importer"
	"github.com/limudai/limud/internal/models"
	"github.com/limudai/limud/internal/search"
	"github.com/limudai/limud/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.config.Search.DefaultLimit
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("limit", limit),
		zap.Bool("case_sensitive", req.CaseSensitive), zap.Bool("whole_words", req.WholeWords))

	pass, err := s.engine.Run(r.Context(), req.Query, req.SearchOptions)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := search.BuildResponse(req.Query, req.SearchOptions, pass.Results, limit, pass.Elapsed)
	resp.Skipped = pass.Unavailable + pass.Failed
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	docs, err := s.catalog.ListDocumentsPage(r.Context(), offset, limit)
	if err != nil {
		s.respondStoreError(w, err, "list documents")
		return
	}
	s.respondJSON(w, http.StatusOK, models.DocumentList{Documents: docs, Offset: offset, Limit: limit})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("create document request", zap.String("id", input.ID), zap.String("name", input.Name))
	doc, err := s.importer.ImportDocument(r.Context(), &input)
	if err != nil {
		if errors.Is(err, importer.ErrInvalidDocument) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondStoreError(w, err, "create document")
		return
	}
	s.respondJSON(w, http.StatusCreated, doc.Summary())
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.catalog.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "get document")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.catalog.DeleteDocument(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "delete document")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, ok, err := s.catalog.Transcript(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "get transcript")
		return
	}
	s.respondJSON(w, http.StatusOK, models.TranscriptResponse{DocumentID: id, Available: ok, Transcript: text})
}

func (s *Server) handlePutTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var input models.TranscriptInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.catalog.SetTranscript(r.Context(), id, input.Transcript); err != nil {
		s.respondStoreError(w, err, "set transcript")
		return
	}
	s.respondJSON(w, http.StatusOK, models.TranscriptResponse{DocumentID: id, Available: true, Transcript: input.Transcript})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var input models.JobInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.DocumentID == "" {
		s.respondError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	job, err := s.catalog.CreateJob(r.Context(), input.DocumentID)
	if err != nil {
		s.respondStoreError(w, err, "create job")
		return
	}
	s.respondJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.catalog.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "get job")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleUpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	var update models.JobStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !update.State.Valid() {
		s.respondError(w, http.StatusBadRequest, "invalid job state")
		return
	}
	job, err := s.catalog.UpdateJobStatus(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		s.respondStoreError(w, err, "update job status")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("retry job request", zap.String("id", id))
	if err := s.catalog.RetryJob(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "retry job")
		return
	}
	job, err := s.catalog.GetJob(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "get job")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	*storage.Stats
	WatchDirectories []string       `json:"watch_directories,omitempty"`
	Config           map[string]any `json:"config"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.logger.Error("status: stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := statusResponse{
		Stats: st,
		Config: map[string]any{
			"database_path":     s.config.Storage.DatabasePath,
			"debounce_ms":       s.config.Search.DebounceMS,
			"fetch_concurrency": s.config.Search.FetchConcurrency,
			"supersede_stale":   s.config.Search.SupersedeStale,
			"poll_interval_ms":  s.config.Jobs.PollIntervalMS,
		},
	}
	if s.watch != nil {
		resp.WatchDirectories = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.watchConfigMu.Lock()
	defer s.watchConfigMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

// respondStoreError maps catalog errors onto status codes.
func (s *Server) respondStoreError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrJobActive):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
