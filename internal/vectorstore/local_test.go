package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"github.com/raphaelgruber/privategpt-go/internal/config"
)

// keywordEmbedder maps text onto a fixed keyword basis so similarity is
// predictable in tests.
type keywordEmbedder struct {
	keywords []string
	fail     error
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{keywords: []string{"go", "rust", "python", "database", "network"}}
}

func (e *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(e.keywords)+1)
	lower := strings.ToLower(text)
	for i, kw := range e.keywords {
		v[i] = float32(strings.Count(lower, kw))
	}
	v[len(e.keywords)] = 0.01
	return v
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	return e.vector(text), nil
}

func doc(source, content string) schema.Document {
	return schema.Document{PageContent: content, Metadata: map[string]any{SourceKey: source}}
}

func TestLocalStore_OpenMissing(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir(), newKeywordEmbedder(), "test-model")

	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Open(ctx)
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestLocalStore_CreateSearchReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocalStore(dir, newKeywordEmbedder(), "test-model")

	h, err := s.CreateFrom(ctx, []schema.Document{
		doc("a.txt", "go go go is a language"),
		doc("b.txt", "rust is also a language"),
		doc("c.txt", "a database stores rows"),
	})
	require.NoError(t, err)

	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	results, err := h.SimilaritySearch(ctx, "tell me about go", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.txt", SourceOf(results[0]))
	assert.Greater(t, results[0].Score, results[1].Score)

	require.NoError(t, h.Add(ctx, []schema.Document{doc("d.txt", "python and database drivers")}))
	require.NoError(t, h.Close(ctx))

	reopened, err := s.Open(ctx)
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	sources, err := reopened.Sources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 4)
	assert.Contains(t, sources, "d.txt")

	results, err = reopened.SimilaritySearch(ctx, "python", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d.txt", SourceOf(results[0]))
}

func TestLocalStore_SearchLimits(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir(), newKeywordEmbedder(), "m")
	h, err := s.CreateFrom(ctx, []schema.Document{doc("a", "go"), doc("b", "rust")})
	require.NoError(t, err)

	got, err := h.SimilaritySearch(ctx, "go", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = h.SimilaritySearch(ctx, "go", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLocalStore_SearchReturnsMetadataCopies(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir(), newKeywordEmbedder(), "m")
	h, err := s.CreateFrom(ctx, []schema.Document{doc("a", "go")})
	require.NoError(t, err)

	got, err := h.SimilaritySearch(ctx, "go", 1)
	require.NoError(t, err)
	got[0].Metadata[SourceKey] = "changed"

	again, err := h.SimilaritySearch(ctx, "go", 1)
	require.NoError(t, err)
	assert.Equal(t, "a", SourceOf(again[0]))
}

func TestLocalStore_DeleteSources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocalStore(dir, newKeywordEmbedder(), "m")
	h, err := s.CreateFrom(ctx, []schema.Document{
		doc("keep.txt", "go one"),
		doc("drop.txt", "rust one"),
		doc("drop.txt", "rust two"),
	})
	require.NoError(t, err)

	n, err := h.DeleteSources(ctx, []string{"drop.txt", "unknown.txt"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = h.DeleteSources(ctx, []string{"drop.txt"})
	require.NoError(t, err)
	assert.Zero(t, n)

	reopened, err := s.Open(ctx)
	require.NoError(t, err)
	sources, err := reopened.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"keep.txt": {}}, sources)

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLocalStore_ModelMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	_, err := NewLocalStore(dir, newKeywordEmbedder(), "model-a").CreateFrom(ctx, []schema.Document{doc("a", "go")})
	require.NoError(t, err)

	_, err = NewLocalStore(dir, newKeywordEmbedder(), "model-b").Open(ctx)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestLocalStore_CreateFailureKeepsOldStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	emb := newKeywordEmbedder()
	s := NewLocalStore(dir, emb, "m")
	_, err := s.CreateFrom(ctx, []schema.Document{doc("a", "go")})
	require.NoError(t, err)

	emb.fail = errors.New("embedding service down")
	_, err = s.CreateFrom(ctx, []schema.Document{doc("b", "rust")})
	require.Error(t, err)

	emb.fail = nil
	h, err := s.Open(ctx)
	require.NoError(t, err)
	sources, err := h.Sources(ctx)
	require.NoError(t, err)
	assert.Contains(t, sources, "a")
}

func TestLocalStore_DimensionMismatchOnAdd(t *testing.T) {
	ctx := context.Background()
	emb := newKeywordEmbedder()
	s := NewLocalStore(t.TempDir(), emb, "m")
	h, err := s.CreateFrom(ctx, []schema.Document{doc("a", "go")})
	require.NoError(t, err)

	emb.keywords = append(emb.keywords, "extra")
	err = h.Add(ctx, []schema.Document{doc("b", "go")})
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestLocalStore_EmptyChunkFileIsNotAStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFile), []byte("embedding_model: m\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, chunksFile), nil, 0o644))

	ok, err := NewLocalStore(dir, newKeywordEmbedder(), "m").Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    any
		wantErr error
	}{
		{name: "default local", cfg: config.Config{}, want: &LocalStore{}},
		{name: "local", cfg: config.Config{VectorStore: "LOCAL"}, want: &LocalStore{}},
		{name: "surrealdb", cfg: config.Config{VectorStore: "surrealdb"}, want: &SurrealStore{}},
		{name: "pgvector", cfg: config.Config{VectorStore: "pgvector", DatabaseURL: "postgres://x"}, want: &PGStore{}},
		{name: "unknown", cfg: config.Config{VectorStore: "chroma"}, wantErr: ErrUnsupportedBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.cfg, newKeywordEmbedder(), nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}

	_, err := New(config.Config{VectorStore: "pgvector"}, newKeywordEmbedder(), nil)
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}
