// Package service implements document ingestion, question answering and
// document management on top of the vector store.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/privategpt-go/internal/loader"
	"github.com/raphaelgruber/privategpt-go/internal/metrics"
	"github.com/raphaelgruber/privategpt-go/internal/parser"
	"github.com/raphaelgruber/privategpt-go/internal/vectorstore"
)

// Outcome messages reported in IngestResult.Message.
const (
	MsgIngestSuccess    = "Ingestion successful!"
	MsgNothingToCreate  = "No documents found to create a new vectorstore."
	MsgNoNewDocuments   = "No new documents to ingest."
	MsgAlreadyIngested  = "All provided documents already in vectorstore."
	ingestErrorTemplate = "An error occurred during ingestion: %v"
)

// EmbedderFactory builds the embedding provider on first use.
type EmbedderFactory func(ctx context.Context) (embeddings.Embedder, error)

// StoreFactory builds the vector store for an embedder.
type StoreFactory func(ctx context.Context, embedder embeddings.Embedder) (vectorstore.Store, error)

// IngestResult summarizes an ingestion run. Exactly one of Message and
// Error is set.
type IngestResult struct {
	Message        string   `json:"message,omitempty"`
	Error          string   `json:"error,omitempty"`
	ChunksIngested int      `json:"chunks_ingested"`
	ChunksRemoved  int      `json:"chunks_removed,omitempty"`
	FilesProcessed int      `json:"files_processed"`
	FilesSkipped   int      `json:"files_skipped"`
	Errors         []string `json:"errors,omitempty"`
}

// Failed reports whether the run ended with an error outcome.
func (r IngestResult) Failed() bool {
	return r.Error != ""
}

// IngestService turns source files into chunks in the vector store.
type IngestService struct {
	sourceDir   string
	chunk       parser.ChunkConfig
	workers     int
	newEmbedder EmbedderFactory
	newStore    StoreFactory
	load        func(ctx context.Context, path string) ([]schema.Document, error)
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithChunkConfig overrides the default chunk size and overlap.
func WithChunkConfig(cfg parser.ChunkConfig) IngestOption {
	return func(s *IngestService) { s.chunk = cfg }
}

// WithWorkers bounds the number of files loaded in parallel.
func WithWorkers(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithIngestMetrics records ingest timings and counters.
func WithIngestMetrics(c *metrics.Collector) IngestOption {
	return func(s *IngestService) { s.metrics = c }
}

// WithIngestLogger sets the logger.
func WithIngestLogger(l *slog.Logger) IngestOption {
	return func(s *IngestService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewIngestService creates an ingest service for files under sourceDir.
func NewIngestService(sourceDir string, newEmbedder EmbedderFactory, newStore StoreFactory, opts ...IngestOption) *IngestService {
	s := &IngestService{
		sourceDir:   sourceDir,
		chunk:       parser.DefaultChunkConfig(),
		workers:     runtime.NumCPU(),
		newEmbedder: newEmbedder,
		newStore:    newStore,
		load:        loader.Load,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SourceDir returns the directory scanned in batch mode.
func (s *IngestService) SourceDir() string {
	return s.sourceDir
}

// Ingest loads paths into the vector store. With no paths it runs in batch
// mode: the source directory is scanned and chunks of source files that no
// longer exist are pruned. With paths it runs in targeted mode, and files
// that fail to load are deleted from disk. Paths are recorded as cleaned
// absolute paths. A run cancelled through ctx fails without removing files.
func (s *IngestService) Ingest(ctx context.Context, paths []string) (result IngestResult) {
	done := s.metrics.Start(metrics.OpIngest)
	defer func() {
		if result.Failed() {
			done(errors.New(result.Error))
		} else {
			done(nil)
		}
	}()

	targeted := len(paths) > 0
	fail := func(err error) IngestResult {
		s.logger.Error("ingestion failed", "error", err)
		return IngestResult{Error: fmt.Sprintf(ingestErrorTemplate, err)}
	}

	embedder, err := s.newEmbedder(ctx)
	if err != nil {
		return fail(err)
	}
	store, err := s.newStore(ctx, embedder)
	if err != nil {
		return fail(err)
	}
	exists, err := store.Exists(ctx)
	if err != nil {
		return fail(err)
	}

	if !exists {
		return s.create(ctx, store, paths, targeted, fail)
	}
	return s.append(ctx, store, paths, targeted, fail)
}

func (s *IngestService) create(ctx context.Context, store vectorstore.Store, paths []string, targeted bool, fail func(error) IngestResult) IngestResult {
	s.logger.Info("creating new vector store", "targeted", targeted)

	candidates, err := s.candidates(paths, targeted)
	if err != nil {
		return fail(err)
	}

	result := IngestResult{}
	docs, err := s.loadAll(ctx, candidates, targeted, &result)
	if err != nil {
		return fail(err)
	}
	chunks, err := parser.SplitDocuments(docs, s.chunk)
	if err != nil {
		return fail(err)
	}
	if len(chunks) == 0 {
		result.Message = MsgNothingToCreate
		return result
	}

	done := s.metrics.Start(metrics.OpStoreAdd)
	h, err := store.CreateFrom(ctx, chunks)
	done(err)
	if err != nil {
		return fail(err)
	}
	defer h.Close(ctx)

	return s.succeed(result, len(chunks))
}

func (s *IngestService) append(ctx context.Context, store vectorstore.Store, paths []string, targeted bool, fail func(error) IngestResult) IngestResult {
	h, err := store.Open(ctx)
	if err != nil {
		return fail(err)
	}
	defer h.Close(ctx)

	result := IngestResult{}
	if !targeted {
		if result.ChunksRemoved, err = s.prune(ctx, h); err != nil {
			return fail(err)
		}
	}

	indexed, err := h.Sources(ctx)
	if err != nil {
		return fail(err)
	}

	candidates, err := s.candidates(paths, targeted)
	if err != nil {
		return fail(err)
	}
	fresh := make([]string, 0, len(candidates))
	for _, p := range candidates {
		if _, ok := indexed[p]; ok {
			result.FilesSkipped++
			continue
		}
		fresh = append(fresh, p)
	}
	s.logger.Info("appending to vector store", "candidates", len(candidates), "new", len(fresh), "targeted", targeted)

	if len(fresh) == 0 {
		if targeted {
			result.Message = MsgAlreadyIngested
		} else {
			result.Message = MsgNoNewDocuments
		}
		return result
	}

	docs, err := s.loadAll(ctx, fresh, targeted, &result)
	if err != nil {
		return fail(err)
	}
	chunks, err := parser.SplitDocuments(docs, s.chunk)
	if err != nil {
		return fail(err)
	}
	if len(chunks) == 0 {
		result.Message = MsgNoNewDocuments
		return result
	}

	done := s.metrics.Start(metrics.OpStoreAdd)
	err = h.Add(ctx, chunks)
	done(err)
	if err != nil {
		return fail(err)
	}
	return s.succeed(result, len(chunks))
}

func (s *IngestService) succeed(result IngestResult, chunks int) IngestResult {
	result.Message = MsgIngestSuccess
	result.ChunksIngested = chunks
	s.metrics.Add(metrics.CounterChunksIngested, int64(chunks))
	s.logger.Info("ingestion complete", "chunks", chunks, "files", result.FilesProcessed, "errors", len(result.Errors))
	return result
}

// prune drops chunks whose source file no longer exists on disk.
func (s *IngestService) prune(ctx context.Context, h vectorstore.Handle) (int, error) {
	indexed, err := h.Sources(ctx)
	if err != nil {
		return 0, err
	}
	var gone []string
	for src := range indexed {
		if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
			gone = append(gone, src)
		}
	}
	if len(gone) == 0 {
		return 0, nil
	}
	n, err := h.DeleteSources(ctx, gone)
	if err != nil {
		return 0, fmt.Errorf("prune deleted sources: %w", err)
	}
	s.logger.Info("pruned chunks of deleted documents", "sources", len(gone), "chunks", n)
	return n, nil
}

// candidates returns the files to consider, as cleaned absolute paths so
// the same file always maps to the same source. Duplicates are dropped.
func (s *IngestService) candidates(paths []string, targeted bool) ([]string, error) {
	if !targeted {
		var err error
		if paths, err = s.CollectFiles(s.sourceDir); err != nil {
			return nil, err
		}
	}
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = normalizePath(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func normalizePath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// loadAll loads paths in parallel and returns documents in path order. Load
// failures are recorded in result; in targeted mode the file is removed.
// If ctx is done, nothing is recorded or removed and ctx's error is returned.
func (s *IngestService) loadAll(ctx context.Context, paths []string, targeted bool, result *IngestResult) ([]schema.Document, error) {
	loaded := make([][]schema.Document, len(paths))
	failures := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			loaded[i], failures[i] = s.load(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		s.logger.Warn("ingestion cancelled before documents were loaded", "files", len(paths), "error", err)
		return nil, err
	}

	var docs []schema.Document
	for i, path := range paths {
		if err := failures[i]; err != nil {
			s.metrics.Add(metrics.CounterFilesFailed, 1)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			result.FilesSkipped++
			if targeted {
				s.logger.Error("failed to load document, removing it", "path", path, "error", err)
				if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
					s.logger.Warn("failed to remove unloadable document", "path", path, "error", rmErr)
				}
			} else {
				s.logger.Warn("skipping unloadable document", "path", path, "error", err)
			}
			continue
		}
		s.metrics.Add(metrics.CounterFilesLoaded, 1)
		result.FilesProcessed++
		docs = append(docs, loaded[i]...)
	}
	return docs, nil
}

// CollectFiles walks dirPath recursively and returns every file with a
// supported extension. Dotfiles, dot directories and Office lock files are
// skipped. A missing directory yields no files.
func (s *IngestService) CollectFiles(dirPath string) ([]string, error) {
	var files []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dirPath && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dirPath && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			return nil
		}
		if loader.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFn); err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	return files, nil
}
