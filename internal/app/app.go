// Package app wires configuration into the services shared by the CLI,
// the API server and the MCP server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/privategpt-go/internal/config"
	"github.com/raphaelgruber/privategpt-go/internal/llm"
	"github.com/raphaelgruber/privategpt-go/internal/metrics"
	"github.com/raphaelgruber/privategpt-go/internal/parser"
	"github.com/raphaelgruber/privategpt-go/internal/server"
	"github.com/raphaelgruber/privategpt-go/internal/service"
	"github.com/raphaelgruber/privategpt-go/internal/storage"
	"github.com/raphaelgruber/privategpt-go/internal/tasks"
	"github.com/raphaelgruber/privategpt-go/internal/tools"
	"github.com/raphaelgruber/privategpt-go/internal/vectorstore"
)

// App holds every service built from one configuration.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Collector

	Ingest    *service.IngestService
	Query     *service.QueryService
	Summarize *service.SummarizeService
	Documents *service.DocumentService
	Tracker   *tasks.MemoryTracker
	Runner    *service.Runner
}

// New builds the services. Embedders, models and stores are created lazily
// by the services themselves, so New does no network I/O unless S3
// archiving is configured.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mc := metrics.NewCollector()

	var archiver service.Archiver
	if cfg.S3Bucket != "" {
		s3a, err := storage.NewS3Archiver(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("init s3 archive: %w", err)
		}
		archiver = s3a
	}

	chunk := parser.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	newEmbedder := EmbedderFactory(cfg, mc)
	newStore := StoreFactory(cfg, logger)
	newModel := ModelFactory(cfg)

	ingest := service.NewIngestService(cfg.SourceDirectory, newEmbedder, newStore,
		service.WithChunkConfig(chunk),
		service.WithWorkers(cfg.IngestWorkers),
		service.WithIngestMetrics(mc),
		service.WithIngestLogger(logger),
	)

	query := service.NewQueryService(service.QueryConfig{
		ModelName:   cfg.ChatModelName(),
		TopK:        cfg.TargetSourceChunks,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxNewTokens,
		HideSources: cfg.HideSourceDocuments,
	}, newEmbedder, newStore, newModel, mc, logger)

	summarize := service.NewSummarizeService(newModel, parser.ChunkConfig{
		Size:    cfg.ChunkSize * 4,
		Overlap: cfg.ChunkOverlap,
	}, logger)

	tracker := tasks.NewMemoryTracker()

	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   mc,
		Ingest:    ingest,
		Query:     query,
		Summarize: summarize,
		Documents: service.NewDocumentService(cfg.SourceDirectory, archiver, logger),
		Tracker:   tracker,
		Runner:    service.NewRunner(ingest, tracker, cfg.IngestQueueSize, logger),
	}, nil
}

// EmbedderFactory returns a factory for the configured embedder with
// timing and a query-embedding cache.
func EmbedderFactory(cfg config.Config, mc *metrics.Collector) service.EmbedderFactory {
	return func(ctx context.Context) (embeddings.Embedder, error) {
		e, err := llm.NewEmbedder(ctx, cfg, llm.WithMetrics(mc), llm.WithQueryCache(cfg.QueryCacheSize))
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// StoreFactory returns a factory for the configured vector store backend.
func StoreFactory(cfg config.Config, logger *slog.Logger) service.StoreFactory {
	return func(_ context.Context, e embeddings.Embedder) (vectorstore.Store, error) {
		return vectorstore.New(cfg, e, logger)
	}
}

// ModelFactory returns a factory for the configured language model.
func ModelFactory(cfg config.Config) service.ModelFactory {
	return func(ctx context.Context) (llms.Model, error) {
		return llm.NewModel(ctx, cfg)
	}
}

// ServerOptions maps configuration onto API server options.
func (a *App) ServerOptions() server.Options {
	return server.Options{
		JWTSecret:      a.Config.JWTSecret,
		AllowedOrigins: a.Config.CORSAllowedOrigins,
	}
}

// ServerDeps exposes the services behind the API server.
func (a *App) ServerDeps() server.Deps {
	return server.Deps{
		Answerer:  a.Query,
		Documents: a.Documents,
		Tasks:     a.Tracker,
		Jobs:      a.Runner,
		Stats:     a.Metrics,
	}
}

// ToolDeps exposes the services behind the MCP tools.
func (a *App) ToolDeps() *tools.Dependencies {
	return &tools.Dependencies{
		Answerer:  a.Query,
		Ingester:  a.Ingest,
		Documents: a.Documents,
		Logger:    a.Logger,
	}
}

// Close stops the background runner after queued jobs finish.
func (a *App) Close() {
	a.Runner.Close()
}
