package config

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values.
type Config struct {
	// Directories
	PersistDirectory string
	SourceDirectory  string

	// Embeddings
	EmbeddingsProvider  string
	EmbeddingsModelName string

	// Language model
	ModelType       string
	OllamaModelName string
	ModelName       string
	OllamaHost      string
	ModelNCtx       int
	MaxNewTokens    int
	Temperature     float64

	// Retrieval and chunking
	ChunkSize           int
	ChunkOverlap        int
	TargetSourceChunks  int
	HideSourceDocuments bool
	QueryCacheSize      int
	IngestWorkers       int

	// Vector store backend: local, surrealdb or pgvector
	VectorStore string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Postgres connection (pgvector backend)
	DatabaseURL        string
	EmbeddingDimension int

	// Provider credentials
	GeminiAPIKey string
	AWSRegion    string

	// Upload archive
	S3Bucket string
	S3Prefix string

	// HTTP server
	ServerPort         string
	ServerURL          string
	JWTSecret          string
	CORSAllowedOrigins []string
	IngestQueueSize    int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		PersistDirectory: getEnv("PERSIST_DIRECTORY", "db"),
		SourceDirectory:  getEnv("SOURCE_DIRECTORY", "source_documents"),

		EmbeddingsProvider:  strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", "ollama")),
		EmbeddingsModelName: getEnv("EMBEDDINGS_MODEL_NAME", "intfloat/multilingual-e5-large"),

		ModelType:       getEnv("MODEL_TYPE", "Ollama"),
		OllamaModelName: getEnv("OLLAMA_MODEL_NAME", "phi3:mini"),
		ModelName:       getEnv("MODEL_NAME", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		ModelNCtx:       getEnvInt("MODEL_N_CTX", 4096),
		MaxNewTokens:    getEnvInt("MAX_NEW_TOKENS", 512),
		Temperature:     getEnvFloat("TEMPERATURE", 0.2),

		ChunkSize:           getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:        getEnvInt("CHUNK_OVERLAP", 50),
		TargetSourceChunks:  getEnvInt("TARGET_SOURCE_CHUNKS", 4),
		HideSourceDocuments: getEnvBool("HIDE_SOURCE_DOCUMENTS", false),
		QueryCacheSize:      getEnvInt("QUERY_CACHE_SIZE", 256),
		IngestWorkers:       getEnvInt("INGEST_WORKERS", runtime.NumCPU()),

		VectorStore: strings.ToLower(getEnv("VECTOR_STORE", "local")),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8001/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "privategpt"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "documents"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 1024),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),

		S3Bucket: getEnv("S3_BUCKET", ""),
		S3Prefix: getEnv("S3_PREFIX", "source_documents/"),

		ServerPort:         getEnv("SERVER_PORT", "8000"),
		ServerURL:          getEnv("PRIVATEGPT_URL", "http://localhost:8000"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		IngestQueueSize:    getEnvInt("INGEST_QUEUE_SIZE", 16),

		LogFile:  getEnv("LOG_FILE", "/tmp/privategpt.log"),
		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "INFO")),
	}
}

// ChatModelName returns the model name for the configured model type.
// Ollama keeps its own variable for compatibility with existing .env files.
func (c Config) ChatModelName() string {
	if strings.EqualFold(c.ModelType, "ollama") {
		return c.OllamaModelName
	}
	return c.ModelName
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float in environment, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return defaultVal
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
