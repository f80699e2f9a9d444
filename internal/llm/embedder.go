// Package llm provides embedding and language-model clients using langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	bedrockembed "github.com/tmc/langchaingo/embeddings/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/privategpt-go/internal/config"
	"github.com/raphaelgruber/privategpt-go/internal/metrics"
)

// Embedding providers.
const (
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// Embedder wraps a langchaingo embedder with timing, logging and a cache
// of recent query embeddings. It satisfies embeddings.Embedder.
type Embedder struct {
	model     embeddings.Embedder
	modelName string
	metrics   *metrics.Collector
	cache     *lru.Cache[string, []float32]
}

var _ embeddings.Embedder = (*Embedder)(nil)

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithMetrics records embedding timings in c.
func WithMetrics(c *metrics.Collector) EmbedderOption {
	return func(e *Embedder) { e.metrics = c }
}

// WithQueryCache keeps the last size query embeddings in memory.
func WithQueryCache(size int) EmbedderOption {
	return func(e *Embedder) {
		if size <= 0 {
			return
		}
		if c, err := lru.New[string, []float32](size); err == nil {
			e.cache = c
		}
	}
}

// NewEmbedder creates the embedder selected by EMBEDDINGS_PROVIDER.
func NewEmbedder(ctx context.Context, cfg config.Config, opts ...EmbedderOption) (*Embedder, error) {
	var model embeddings.Embedder

	switch strings.ToLower(cfg.EmbeddingsProvider) {
	case ProviderOllama:
		client, err := ollama.New(
			ollama.WithModel(cfg.EmbeddingsModelName),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		model, err = embeddings.NewEmbedder(client)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case ProviderOpenAI:
		client, err := openai.New(openai.WithEmbeddingModel(cfg.EmbeddingsModelName))
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		model, err = embeddings.NewEmbedder(client)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	case ProviderGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, "", cfg.EmbeddingsModelName)
		if err != nil {
			return nil, err
		}
		model = g

	case ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err = bedrockembed.NewBedrock(
			bedrockembed.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrockembed.WithModel(cfg.EmbeddingsModelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.EmbeddingsProvider)
	}

	return WrapEmbedder(model, cfg.EmbeddingsModelName, opts...), nil
}

// WrapEmbedder decorates an existing embedder.
func WrapEmbedder(model embeddings.Embedder, modelName string, opts ...EmbedderOption) *Embedder {
	e := &Embedder{model: model, modelName: modelName}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedDocuments embeds texts for storage.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vectors, err := e.model.EmbedDocuments(ctx, texts)
	duration := time.Since(start)
	e.metrics.RecordTiming(metrics.OpEmbedding, duration, err)

	if err != nil {
		slog.Warn("embedding failed", "model", e.modelName, "texts", len(texts), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed documents: count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	slog.Debug("embedding complete", "model", e.modelName, "texts", len(texts), "duration_ms", duration.Milliseconds())
	return vectors, nil
}

// EmbedQuery embeds a search query, serving repeats from the cache.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return v, nil
		}
	}

	start := time.Now()
	vector, err := e.model.EmbedQuery(ctx, text)
	e.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if e.cache != nil {
		e.cache.Add(text, vector)
	}
	return vector, nil
}

// ModelName returns the embedding model name.
func (e *Embedder) ModelName() string {
	return e.modelName
}
