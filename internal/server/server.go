// Package server exposes the document query and ingestion API over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/raphaelgruber/privategpt-go/internal/metrics"
	"github.com/raphaelgruber/privategpt-go/internal/service"
	"github.com/raphaelgruber/privategpt-go/internal/tasks"
)

// Answerer answers questions against the ingested documents.
type Answerer interface {
	Answer(ctx context.Context, query string) (*service.Answer, error)
}

// Documents manages the files in the source directory.
type Documents interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Delete(ctx context.Context, originalName string) (string, error)
	List(ctx context.Context) ([]string, error)
}

// TaskStore records and reports ingestion tasks.
type TaskStore interface {
	Create(id string, filenames []string) (tasks.Task, error)
	MarkAll(id string, status tasks.Status, opts ...tasks.MarkOption) error
	Get(id string) (tasks.Task, error)
	List() []tasks.Task
}

// Jobs queues background ingestion.
type Jobs interface {
	EnqueueIngest(taskID string, paths []string) error
	EnqueueReingest() (string, error)
}

// StatsSource reports runtime statistics.
type StatsSource interface {
	Snapshot() metrics.Snapshot
}

// Deps are the services behind the API.
type Deps struct {
	Answerer  Answerer
	Documents Documents
	Tasks     TaskStore
	Jobs      Jobs
	Stats     StatsSource
}

// Options configure authentication, CORS and upload limits.
type Options struct {
	// JWTSecret enables bearer authentication on every route but /health.
	// Tokens are issued elsewhere; empty disables authentication.
	JWTSecret       string
	AllowedOrigins  []string
	MaxUploadMemory int64
}

// Server serves the HTTP API.
type Server struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	router chi.Router
}

// New builds the router and wires all routes.
func New(opts Options, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadMemory <= 0 {
		opts.MaxUploadMemory = 32 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{deps: deps, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(opts.AllowedOrigins, "*"),
	}))

	// public endpoints
	r.Get("/health", s.handleHealth)

	r.Group(func(protected chi.Router) {
		if opts.JWTSecret != "" {
			protected.Use(JWTAuth(opts.JWTSecret))
		}
		protected.Post("/query", s.handleQuery)
		protected.Post("/upload_and_ingest", s.handleUpload)
		protected.Get("/ingestion_status", s.handleListTasks)
		protected.Get("/ingestion_status/{task_id}", s.handleTaskStatus)
		protected.Delete("/delete_document/{filename}", s.handleDeleteDocument)
		protected.Get("/list_documents", s.handleListDocuments)
		protected.Get("/stats", s.handleStats)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,  // Large uploads
		WriteTimeout:      10 * time.Minute, // Long for LLM responses
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
