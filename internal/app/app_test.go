package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/privategpt-go/internal/config"
	"github.com/raphaelgruber/privategpt-go/internal/vectorstore"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		PersistDirectory:    filepath.Join(dir, "db"),
		SourceDirectory:     filepath.Join(dir, "source_documents"),
		EmbeddingsProvider:  "ollama",
		EmbeddingsModelName: "nomic-embed-text",
		ModelType:           "Ollama",
		OllamaModelName:     "phi3:mini",
		OllamaHost:          "http://127.0.0.1:1",
		ChunkSize:           500,
		ChunkOverlap:        50,
		TargetSourceChunks:  4,
		VectorStore:         "local",
		IngestQueueSize:     2,
		IngestWorkers:       2,
		JWTSecret:           "s3cret",
		CORSAllowedOrigins:  []string{"http://localhost:5173"},
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, cfg.SourceDirectory, a.Ingest.SourceDir())

	opts := a.ServerOptions()
	assert.Equal(t, "s3cret", opts.JWTSecret)
	assert.Equal(t, []string{"http://localhost:5173"}, opts.AllowedOrigins)

	deps := a.ServerDeps()
	assert.NotNil(t, deps.Answerer)
	assert.NotNil(t, deps.Jobs)

	toolDeps := a.ToolDeps()
	assert.NotNil(t, toolDeps.Ingester)
	assert.NotNil(t, toolDeps.Documents)

	docs, err := a.Documents.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStoreFactory(t *testing.T) {
	cfg := testConfig(t)
	store, err := StoreFactory(cfg, nil)(context.Background(), nil)
	require.NoError(t, err)
	assert.IsType(t, &vectorstore.LocalStore{}, store)

	cfg.VectorStore = "chroma"
	_, err = StoreFactory(cfg, nil)(context.Background(), nil)
	assert.ErrorIs(t, err, vectorstore.ErrUnsupportedBackend)
}
