package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"

	"github.com/raphaelgruber/privategpt-go/internal/db"
	"github.com/raphaelgruber/privategpt-go/internal/models"
)

// SurrealStore keeps chunks in a SurrealDB chunk table with an HNSW index.
// Each Exists/Open/CreateFrom call dials its own connection; a Handle owns
// its connection until Close.
type SurrealStore struct {
	cfg      db.Config
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

var _ Store = (*SurrealStore)(nil)

// NewSurrealStore returns a store for the given connection settings.
func NewSurrealStore(cfg db.Config, embedder embeddings.Embedder, model string, logger *slog.Logger) *SurrealStore {
	return &SurrealStore{cfg: cfg, embedder: embedder, model: model, logger: logger}
}

func (s *SurrealStore) connect(ctx context.Context) (*db.Client, error) {
	client, err := db.NewClient(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("connect surrealdb: %w", err)
	}
	return client, nil
}

func (s *SurrealStore) Exists(ctx context.Context) (bool, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return false, err
	}
	defer client.Close(ctx)
	return surrealExists(ctx, client)
}

func surrealExists(ctx context.Context, client *db.Client) (bool, error) {
	if _, err := client.QueryGetStoreInfo(ctx); err != nil {
		if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrSchemaMissing) {
			return false, nil
		}
		return false, err
	}
	n, err := client.QueryCountChunks(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SurrealStore) Open(ctx context.Context) (Handle, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := surrealExists(ctx, client)
	if err == nil && !ok {
		err = fmt.Errorf("%w: surrealdb %s/%s", ErrStoreNotFound, s.cfg.Namespace, s.cfg.Database)
	}
	if err == nil {
		var info *models.StoreInfo
		if info, err = client.QueryGetStoreInfo(ctx); err == nil {
			err = checkModel(info.EmbeddingModel, s.model)
		}
	}
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return &surrealHandle{client: client, embedder: s.embedder}, nil
}

// CreateFrom embeds docs first so the HNSW index can be sized, then wipes
// the tables and inserts the new chunks.
func (s *SurrealStore) CreateFrom(ctx context.Context, docs []schema.Document) (Handle, error) {
	if len(docs) == 0 {
		return nil, errors.New("create surrealdb store: no documents")
	}
	vectors, err := embedDocuments(ctx, s.embedder, docs)
	if err != nil {
		return nil, err
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	h := &surrealHandle{client: client, embedder: s.embedder}

	dim := len(vectors[0])
	err = client.InitSchema(ctx, dim)
	if err == nil {
		err = client.WipeData(ctx)
	}
	if err == nil {
		err = client.QuerySetStoreInfo(ctx, models.StoreInfo{EmbeddingModel: s.model, Dimension: dim})
	}
	if err == nil {
		err = h.insert(ctx, docs, vectors)
	}
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return h, nil
}

type surrealHandle struct {
	client   *db.Client
	embedder embeddings.Embedder
}

func (h *surrealHandle) insert(ctx context.Context, docs []schema.Document, vectors [][]float32) error {
	inputs := make([]models.ChunkInput, len(docs))
	for i, d := range docs {
		inputs[i] = models.ChunkInput{
			Content:   d.PageContent,
			Source:    SourceOf(d),
			Metadata:  d.Metadata,
			Embedding: vectors[i],
		}
	}
	_, err := h.client.QueryInsertChunks(ctx, inputs)
	return err
}

func (h *surrealHandle) Add(ctx context.Context, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	vectors, err := embedDocuments(ctx, h.embedder, docs)
	if err != nil {
		return err
	}
	return h.insert(ctx, docs, vectors)
}

func (h *surrealHandle) Sources(ctx context.Context) (map[string]struct{}, error) {
	list, err := h.client.QueryListSources(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(list))
	for _, s := range list {
		out[s] = struct{}{}
	}
	return out, nil
}

func (h *surrealHandle) SimilaritySearch(ctx context.Context, query string, k int) ([]schema.Document, error) {
	if k <= 0 {
		return []schema.Document{}, nil
	}
	q, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	chunks, err := h.client.QuerySearchChunks(ctx, q, k)
	if err != nil {
		return nil, err
	}
	docs := make([]schema.Document, 0, len(chunks))
	for _, c := range chunks {
		meta := maps.Clone(c.Metadata)
		if meta == nil {
			meta = map[string]any{}
		}
		if _, ok := meta[SourceKey]; !ok && c.Source != "" {
			meta[SourceKey] = c.Source
		}
		docs = append(docs, schema.Document{PageContent: c.Content, Metadata: meta, Score: float32(c.Score)})
	}
	return docs, nil
}

func (h *surrealHandle) DeleteSources(ctx context.Context, sources []string) (int, error) {
	return h.client.QueryDeleteSources(ctx, sources)
}

func (h *surrealHandle) Count(ctx context.Context) (int, error) {
	return h.client.QueryCountChunks(ctx)
}

func (h *surrealHandle) Close(ctx context.Context) error {
	return h.client.Close(ctx)
}
