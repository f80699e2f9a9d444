package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PERSIST_DIRECTORY", "SOURCE_DIRECTORY", "EMBEDDINGS_MODEL_NAME", "MODEL_TYPE",
		"OLLAMA_MODEL_NAME", "MODEL_N_CTX", "MAX_NEW_TOKENS", "TEMPERATURE", "CHUNK_SIZE",
		"CHUNK_OVERLAP", "TARGET_SOURCE_CHUNKS", "HIDE_SOURCE_DOCUMENTS", "VECTOR_STORE",
		"SERVER_PORT", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "db", cfg.PersistDirectory)
	assert.Equal(t, "source_documents", cfg.SourceDirectory)
	assert.Equal(t, "intfloat/multilingual-e5-large", cfg.EmbeddingsModelName)
	assert.Equal(t, "Ollama", cfg.ModelType)
	assert.Equal(t, "phi3:mini", cfg.OllamaModelName)
	assert.Equal(t, 4096, cfg.ModelNCtx)
	assert.Equal(t, 512, cfg.MaxNewTokens)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 4, cfg.TargetSourceChunks)
	assert.False(t, cfg.HideSourceDocuments)
	assert.Equal(t, "local", cfg.VectorStore)
	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PERSIST_DIRECTORY", "/data/db")
	t.Setenv("MODEL_N_CTX", "8192")
	t.Setenv("TEMPERATURE", "0.7")
	t.Setenv("HIDE_SOURCE_DOCUMENTS", "True")
	t.Setenv("VECTOR_STORE", "PGVector")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg := Load()

	assert.Equal(t, "/data/db", cfg.PersistDirectory)
	assert.Equal(t, 8192, cfg.ModelNCtx)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.True(t, cfg.HideSourceDocuments)
	assert.Equal(t, "pgvector", cfg.VectorStore)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "big")
	t.Setenv("TEMPERATURE", "warm")
	t.Setenv("HIDE_SOURCE_DOCUMENTS", "maybe")

	assert.Equal(t, 500, getEnvInt("CHUNK_SIZE", 500))
	assert.InDelta(t, 0.2, getEnvFloat("TEMPERATURE", 0.2), 1e-9)
	assert.False(t, getEnvBool("HIDE_SOURCE_DOCUMENTS", false))
}

func TestChatModelName(t *testing.T) {
	tests := []struct {
		name      string
		modelType string
		want      string
	}{
		{"ollama uses its own variable", "Ollama", "phi3:mini"},
		{"case insensitive", "OLLAMA", "phi3:mini"},
		{"other providers use MODEL_NAME", "OpenAI", "gpt-4o-mini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{ModelType: tt.modelType, OllamaModelName: "phi3:mini", ModelName: "gpt-4o-mini"}
			assert.Equal(t, tt.want, cfg.ChatModelName())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("task created", "task_id", "abc")

	assert.Contains(t, stderr.String(), "task created")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "task created", entry["msg"])
	assert.Equal(t, "abc", entry["task_id"])
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
