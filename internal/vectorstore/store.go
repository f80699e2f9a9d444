// Package vectorstore persists embedded chunks and answers similarity
// queries. Three backends share one interface: a local directory store,
// SurrealDB and Postgres with pgvector.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"

	"github.com/raphaelgruber/privategpt-go/internal/config"
	"github.com/raphaelgruber/privategpt-go/internal/db"
)

// Backend names accepted in VECTOR_STORE.
const (
	BackendLocal     = "local"
	BackendSurrealDB = "surrealdb"
	BackendPGVector  = "pgvector"
)

// SourceKey is the metadata key naming the file a chunk came from.
const SourceKey = "source"

var (
	// ErrStoreNotFound is returned by Open when no store exists yet.
	ErrStoreNotFound = errors.New("vector store not found")

	// ErrEmbeddingMismatch is returned when a store was built with a
	// different embedding model than the one configured.
	ErrEmbeddingMismatch = errors.New("embedding model mismatch")

	// ErrUnsupportedBackend is returned for an unknown VECTOR_STORE value.
	ErrUnsupportedBackend = errors.New("unsupported vector store backend")
)

// Store locates a persistent collection of embedded chunks.
type Store interface {
	// Exists reports whether a store with at least one chunk is present.
	Exists(ctx context.Context) (bool, error)
	// Open returns a handle on the existing store or ErrStoreNotFound.
	Open(ctx context.Context) (Handle, error)
	// CreateFrom replaces any previous store with one built from docs.
	CreateFrom(ctx context.Context, docs []schema.Document) (Handle, error)
}

// Handle operates on an opened store. Chunks are never modified in place.
type Handle interface {
	Add(ctx context.Context, docs []schema.Document) error
	// Sources returns the distinct source values of all stored chunks.
	Sources(ctx context.Context) (map[string]struct{}, error)
	SimilaritySearch(ctx context.Context, query string, k int) ([]schema.Document, error)
	// DeleteSources removes every chunk whose source is listed and returns
	// the number removed.
	DeleteSources(ctx context.Context, sources []string) (int, error)
	Count(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// New builds the store selected by cfg.VectorStore.
func New(cfg config.Config, embedder embeddings.Embedder, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.VectorStore) {
	case "", BackendLocal:
		return NewLocalStore(cfg.PersistDirectory, embedder, cfg.EmbeddingsModelName), nil
	case BackendSurrealDB:
		return NewSurrealStore(db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, embedder, cfg.EmbeddingsModelName, logger), nil
	case BackendPGVector:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL not set")
		}
		return NewPGStore(cfg.DatabaseURL, embedder, cfg.EmbeddingsModelName, cfg.EmbeddingDimension), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.VectorStore)
	}
}

// SourceOf returns the source metadata of a document, or "" if absent.
func SourceOf(doc schema.Document) string {
	s, _ := doc.Metadata[SourceKey].(string)
	return s
}

// embedDocuments embeds the page contents of docs in order.
func embedDocuments(ctx context.Context, embedder embeddings.Embedder, docs []schema.Document) ([][]float32, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(docs))
	}
	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("embed chunks: vector %d has dimension %d, want %d", i, len(v), len(vectors[0]))
		}
	}
	return vectors, nil
}

func checkModel(stored, configured string) error {
	if stored != "" && configured != "" && stored != configured {
		return fmt.Errorf("%w: store built with %q, configured %q", ErrEmbeddingMismatch, stored, configured)
	}
	return nil
}
