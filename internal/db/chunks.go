package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/privategpt-go/internal/models"
)

// QueryInsertChunks inserts chunks in a single statement.
// Returns the number of chunks written.
func (c *Client) QueryInsertChunks(ctx context.Context, chunks []models.ChunkInput) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	rows := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		meta := ch.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		rows[i] = map[string]any{
			"content":   ch.Content,
			"source":    ch.Source,
			"metadata":  meta,
			"embedding": ch.Embedding,
		}
	}

	results, err := surrealdb.Query[[]models.Chunk](ctx, c.db, `INSERT INTO chunk $rows RETURN NONE`, map[string]any{
		"rows": rows,
	})
	if err != nil {
		return 0, fmt.Errorf("insert chunks: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return 0, fmt.Errorf("insert chunks: no result returned")
	}
	return len(chunks), nil
}

// QuerySearchChunks returns the limit chunks nearest to embedding by cosine
// similarity, best first.
func (c *Client) QuerySearchChunks(ctx context.Context, embedding []float32, limit int) ([]models.Chunk, error) {
	// HNSW with ef=40 for better recall
	sql := fmt.Sprintf(`
		SELECT id, content, source, metadata,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM chunk
		WHERE embedding <|%d,40|> $emb
		ORDER BY score DESC
	`, limit)

	results, err := surrealdb.Query[[]models.Chunk](ctx, c.db, sql, map[string]any{
		"emb": embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.Chunk{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryListSources returns every distinct source path in the store.
func (c *Client) QueryListSources(ctx context.Context) ([]string, error) {
	results, err := surrealdb.Query[[]struct {
		Source string `json:"source"`
	}](ctx, c.db, `SELECT source FROM chunk GROUP BY source`, nil)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", wrapQueryError(err))
	}

	sources := []string{}
	if results == nil || len(*results) == 0 {
		return sources, nil
	}
	for _, row := range (*results)[0].Result {
		sources = append(sources, row.Source)
	}
	return sources, nil
}

// QueryCountChunks returns the number of stored chunks.
func (c *Client) QueryCountChunks(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `SELECT count() AS count FROM chunk GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// QueryDeleteSources removes all chunks of the given sources.
// Returns the number of deleted chunks (0 if none matched).
func (c *Client) QueryDeleteSources(ctx context.Context, sources []string) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}

	// RETURN BEFORE to count actual deletions
	results, err := surrealdb.Query[[]models.Chunk](ctx, c.db, `DELETE chunk WHERE source IN $sources RETURN BEFORE`, map[string]any{
		"sources": sources,
	})
	if err != nil {
		return 0, fmt.Errorf("delete sources: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// QueryGetStoreInfo reads the store metadata row. Returns ErrNotFound when
// the store was never created.
func (c *Client) QueryGetStoreInfo(ctx context.Context) (*models.StoreInfo, error) {
	results, err := surrealdb.Query[[]models.StoreInfo](ctx, c.db, `SELECT embedding_model, dimension, created FROM store_meta:current`, nil)
	if err != nil {
		return nil, fmt.Errorf("get store info: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// QuerySetStoreInfo writes the store metadata row.
func (c *Client) QuerySetStoreInfo(ctx context.Context, info models.StoreInfo) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT store_meta:current SET
			embedding_model = $model,
			dimension = $dimension,
			created = time::now()
	`, map[string]any{
		"model":     info.EmbeddingModel,
		"dimension": info.Dimension,
	})
	if err != nil {
		return fmt.Errorf("set store info: %w", wrapQueryError(err))
	}
	return nil
}
