package vectorstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
)

//go:embed scripts/pgvector.sql
var pgSchemaFS embed.FS

// PGStore keeps chunks in Postgres using the pgvector extension. Creating
// the store drops and rebuilds the chunk table in one transaction.
type PGStore struct {
	dsn       string
	embedder  embeddings.Embedder
	model     string
	dimension int
}

var _ Store = (*PGStore)(nil)

// NewPGStore returns a store for dsn. A non-zero dimension is checked
// against the vectors produced by the embedder.
func NewPGStore(dsn string, embedder embeddings.Embedder, model string, dimension int) *PGStore {
	return &PGStore{dsn: dsn, embedder: embedder, model: model, dimension: dimension}
}

func (s *PGStore) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func (s *PGStore) Exists(ctx context.Context) (bool, error) {
	db, err := s.open(ctx)
	if err != nil {
		return false, err
	}
	defer db.Close()
	return pgExists(ctx, db)
}

func pgExists(ctx context.Context, db *sql.DB) (bool, error) {
	var tables int
	err := db.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_name IN ('document_chunks', 'store_meta')`).Scan(&tables)
	if err != nil {
		return false, fmt.Errorf("table check: %w", err)
	}
	if tables < 2 {
		return false, nil
	}
	var found bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM document_chunks)`).Scan(&found); err != nil {
		return false, fmt.Errorf("chunk check: %w", err)
	}
	return found, nil
}

func (s *PGStore) Open(ctx context.Context) (Handle, error) {
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	h := &pgHandle{db: db, embedder: s.embedder}

	ok, err := pgExists(ctx, db)
	if err == nil && !ok {
		err = ErrStoreNotFound
	}
	if err == nil {
		var model string
		err = db.QueryRowContext(ctx, `SELECT embedding_model, dimension FROM store_meta WHERE id = 1`).Scan(&model, &h.dimension)
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrStoreNotFound
		}
		if err == nil {
			err = checkModel(model, s.model)
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (s *PGStore) CreateFrom(ctx context.Context, docs []schema.Document) (Handle, error) {
	if len(docs) == 0 {
		return nil, errors.New("create pgvector store: no documents")
	}
	vectors, err := embedDocuments(ctx, s.embedder, docs)
	if err != nil {
		return nil, err
	}
	dim := len(vectors[0])
	if s.dimension > 0 && dim != s.dimension {
		return nil, fmt.Errorf("%w: embedder returned dimension %d, EMBEDDING_DIMENSION is %d", ErrEmbeddingMismatch, dim, s.dimension)
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	h := &pgHandle{db: db, embedder: s.embedder, dimension: dim}
	if err := s.bootstrap(ctx, h, docs, vectors); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (s *PGStore) bootstrap(ctx context.Context, h *pgHandle, docs []schema.Document, vectors [][]float32) error {
	sqlBytes, err := pgSchemaFS.ReadFile("scripts/pgvector.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	ddl := strings.ReplaceAll(string(sqlBytes), "{{DIMENSION}}", strconv.Itoa(h.dimension))

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO store_meta (id, embedding_model, dimension, created_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET embedding_model = EXCLUDED.embedding_model,
			dimension = EXCLUDED.dimension,
			created_at = EXCLUDED.created_at`, s.model, h.dimension); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write store meta: %w", err)
	}
	if err := insertChunks(ctx, tx, docs, vectors); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, docs []schema.Document, vectors [][]float32) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (source, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range docs {
		meta := d.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, SourceOf(d), d.PageContent, raw, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return nil
}

type pgHandle struct {
	db        *sql.DB
	embedder  embeddings.Embedder
	dimension int
}

func (h *pgHandle) Add(ctx context.Context, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	vectors, err := embedDocuments(ctx, h.embedder, docs)
	if err != nil {
		return err
	}
	if dim := len(vectors[0]); dim != h.dimension {
		return fmt.Errorf("%w: vectors have dimension %d, store has %d", ErrEmbeddingMismatch, dim, h.dimension)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := insertChunks(ctx, tx, docs, vectors); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (h *pgHandle) Sources(ctx context.Context) (map[string]struct{}, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT source FROM document_chunks`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out[s] = struct{}{}
	}
	return out, rows.Err()
}

func (h *pgHandle) SimilaritySearch(ctx context.Context, query string, k int) ([]schema.Document, error) {
	if k <= 0 {
		return []schema.Document{}, nil
	}
	q, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT content, metadata, 1 - (embedding <=> $1) AS score
		FROM document_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`, pgvector.NewVector(q), k)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	docs := []schema.Document{}
	for rows.Next() {
		var (
			content string
			raw     []byte
			score   float64
		)
		if err := rows.Scan(&content, &raw, &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		meta := map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &meta); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		docs = append(docs, schema.Document{PageContent: content, Metadata: meta, Score: float32(score)})
	}
	return docs, rows.Err()
}

func (h *pgHandle) DeleteSources(ctx context.Context, sources []string) (int, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	res, err := h.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE source = ANY($1)`, sources)
	if err != nil {
		return 0, fmt.Errorf("delete sources: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete sources: %w", err)
	}
	return int(n), nil
}

func (h *pgHandle) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, `SELECT count(*) FROM document_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (h *pgHandle) Close(_ context.Context) error {
	return h.db.Close()
}
