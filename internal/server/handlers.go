package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raphaelgruber/privategpt-go/internal/service"
	"github.com/raphaelgruber/privategpt-go/internal/tasks"
)

// Response bodies.
type (
	healthResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}

	queryRequest struct {
		Query string `json:"query"`
	}

	uploadResponse struct {
		Message   string   `json:"message"`
		Filenames []string `json:"filenames"`
		TaskID    string   `json:"task_id"`
	}

	deleteResponse struct {
		Message string `json:"message"`
		TaskID  string `json:"task_id"`
	}

	errorResponse struct {
		Detail string `json:"detail"`
	}
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Message: "PrivateGPT API is running."})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query must not be empty.")
		return
	}

	answer, err := s.deps.Answerer.Answer(r.Context(), req.Query)
	if err != nil {
		var qe *service.QueryError
		switch {
		case errors.Is(err, service.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "Query must not be empty.")
		case errors.As(err, &qe):
			writeError(w, http.StatusInternalServerError, qe.Msg)
		default:
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error processing query: %v", err))
		}
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.opts.MaxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "No files uploaded.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded.")
		return
	}

	filenames := make([]string, len(headers))
	for i, fh := range headers {
		filenames[i] = fh.Filename
	}

	taskID := uuid.NewString()
	if _, err := s.deps.Tasks.Create(taskID, filenames); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process files for ingestion: %v", err))
		return
	}

	saved := make([]string, 0, len(headers))
	cleanup := func() {
		for _, p := range saved {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("failed to clean up uploaded file", "path", p, "error", err)
			}
		}
	}

	for _, fh := range headers {
		path, err := s.saveUpload(r, fh)
		if err != nil {
			s.logger.Error("failed to save upload", "task_id", taskID, "filename", fh.Filename, "error", err)
			cleanup()
			_ = s.deps.Tasks.MarkAll(taskID, tasks.StatusFailed, tasks.WithError(err.Error()))
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process files for ingestion: %v", err))
			return
		}
		saved = append(saved, path)
	}

	if err := s.deps.Jobs.EnqueueIngest(taskID, saved); err != nil {
		cleanup()
		if errors.Is(err, service.ErrQueueFull) || errors.Is(err, service.ErrRunnerClosed) {
			writeError(w, http.StatusServiceUnavailable, "Ingestion queue is full, try again later.")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process files for ingestion: %v", err))
		return
	}

	s.logger.Info("files uploaded", "task_id", taskID, "files", len(saved))
	writeJSON(w, http.StatusAccepted, uploadResponse{
		Message:   "Files uploaded. Ingestion started in background.",
		Filenames: filenames,
		TaskID:    taskID,
	})
}

func (s *Server) saveUpload(r *http.Request, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.deps.Documents.Save(r.Context(), fh.Filename, f)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tasks.Get(chi.URLParam(r, "task_id"))
	if errors.Is(err, tasks.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "Task ID not found.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Tasks.List())
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if _, err := s.deps.Documents.Delete(r.Context(), filename); err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			writeError(w, http.StatusNotFound, fmt.Sprintf("Document '%s' not found in source directory.", filename))
		case errors.Is(err, service.ErrInvalidFilename):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid filename '%s'.", filename))
		default:
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete document '%s': %v", filename, err))
		}
		return
	}

	taskID, err := s.deps.Jobs.EnqueueReingest()
	if err != nil {
		s.logger.Error("failed to queue re-ingestion", "filename", filename, "task_id", taskID, "error", err)
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("Document '%s' deleted but re-ingestion could not be queued: %v", filename, err))
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Message: fmt.Sprintf("Document '%s' deleted and re-ingestion triggered.", filename),
		TaskID:  taskID,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Documents.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list documents: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Stats == nil {
		writeError(w, http.StatusNotFound, "Statistics are not enabled.")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Stats.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
