package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"github.com/raphaelgruber/privategpt-go/internal/llm"
	"github.com/raphaelgruber/privategpt-go/internal/metrics"
)

// AnswerTemplate instructs the model to answer only from the retrieved
// context.
const AnswerTemplate = `Use the following pieces of context to answer the user's question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`

// Query failure kinds. QueryError unwraps to one of these and to the cause.
var (
	ErrEmptyQuery     = errors.New("query must not be empty")
	ErrEmbeddingsInit = errors.New("embeddings initialization failed")
	ErrStoreLoad      = errors.New("document database unavailable")
	ErrModelLoad      = errors.New("model load failed")
	ErrQueryFailed    = errors.New("query processing failed")
)

// QueryError carries an operator-facing message for a failed query.
type QueryError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *QueryError) Error() string { return e.Msg }

func (e *QueryError) Unwrap() []error { return []error{e.Kind, e.Err} }

// ModelFactory builds the language model on first use.
type ModelFactory func(ctx context.Context) (llms.Model, error)

// SourceDocument is one retrieved chunk returned alongside an answer.
type SourceDocument struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// Answer is the model's reply and the chunks it was given.
type Answer struct {
	Answer          string           `json:"answer"`
	SourceDocuments []SourceDocument `json:"source_documents"`
}

// QueryConfig holds retrieval and generation settings.
type QueryConfig struct {
	ModelName   string
	TopK        int
	Temperature float64
	MaxTokens   int
	HideSources bool
}

// QueryService answers questions from the vector store.
type QueryService struct {
	cfg         QueryConfig
	newEmbedder EmbedderFactory
	newStore    StoreFactory
	newModel    ModelFactory
	prompt      prompts.PromptTemplate
	metrics     *metrics.Collector
	logger      *slog.Logger

	mu       sync.Mutex
	embedder embeddings.Embedder
	model    llms.Model
}

// NewQueryService creates a query service. Collaborators are built on the
// first query and reused afterwards; the store is reopened per query so
// newly ingested chunks are visible.
func NewQueryService(cfg QueryConfig, newEmbedder EmbedderFactory, newStore StoreFactory, newModel ModelFactory, collector *metrics.Collector, logger *slog.Logger) *QueryService {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		cfg:         cfg,
		newEmbedder: newEmbedder,
		newStore:    newStore,
		newModel:    newModel,
		prompt:      prompts.NewPromptTemplate(AnswerTemplate, []string{"context", "question"}),
		metrics:     collector,
		logger:      logger,
	}
}

func (s *QueryService) init(ctx context.Context) (embeddings.Embedder, llms.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedder == nil {
		e, err := s.newEmbedder(ctx)
		if err != nil {
			return nil, nil, &QueryError{
				Kind: ErrEmbeddingsInit,
				Msg:  fmt.Sprintf("Failed to initialize embeddings: %v. Check EMBEDDINGS_MODEL_NAME or internet connection.", err),
				Err:  err,
			}
		}
		s.embedder = e
	}
	if s.model == nil {
		m, err := s.newModel(ctx)
		if err != nil {
			msg := fmt.Sprintf("Failed to load model '%s': %v. Is the model server running and the model pulled?", s.cfg.ModelName, err)
			if errors.Is(err, llm.ErrUnsupportedModel) {
				msg = err.Error()
			}
			return nil, nil, &QueryError{Kind: ErrModelLoad, Msg: msg, Err: err}
		}
		s.model = m
	}
	return s.embedder, s.model, nil
}

// Answer retrieves the closest chunks for query and asks the model.
func (s *QueryService) Answer(ctx context.Context, query string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	s.metrics.Add(metrics.CounterQueries, 1)

	answer, err := s.answer(ctx, query)
	if err != nil {
		s.metrics.Add(metrics.CounterQueryErrors, 1)
		s.logger.Error("query failed", "error", err)
		return nil, err
	}
	return answer, nil
}

func (s *QueryService) answer(ctx context.Context, query string) (*Answer, error) {
	embedder, model, err := s.init(ctx)
	if err != nil {
		return nil, err
	}

	store, err := s.newStore(ctx, embedder)
	if err != nil {
		return nil, storeError(err)
	}
	h, err := store.Open(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	defer h.Close(ctx)

	done := s.metrics.Start(metrics.OpStoreSearch)
	docs, err := h.SimilaritySearch(ctx, query, s.cfg.TopK)
	done(err)
	if err != nil {
		return nil, unexpected(err)
	}
	s.logger.Debug("retrieved context", "chunks", len(docs))

	prompt, err := s.prompt.Format(map[string]any{
		"context":  stuffDocuments(docs),
		"question": query,
	})
	if err != nil {
		return nil, unexpected(err)
	}

	done = s.metrics.Start(metrics.OpLLMGenerate)
	text, err := llms.GenerateFromSinglePrompt(ctx, model, prompt,
		llms.WithTemperature(s.cfg.Temperature),
		llms.WithMaxTokens(s.cfg.MaxTokens),
	)
	done(err)
	if err != nil {
		if classified := llm.ClassifyGenerateError(err); errors.Is(classified, llm.ErrModelRuntime) {
			return nil, &QueryError{Kind: llm.ErrModelRuntime, Msg: classified.Error(), Err: err}
		}
		return nil, unexpected(err)
	}

	answer := &Answer{Answer: strings.TrimSpace(text), SourceDocuments: []SourceDocument{}}
	if !s.cfg.HideSources {
		for _, d := range docs {
			answer.SourceDocuments = append(answer.SourceDocuments, SourceDocument{
				PageContent: d.PageContent,
				Metadata:    maps.Clone(d.Metadata),
			})
		}
	}
	return answer, nil
}

func stuffDocuments(docs []schema.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.PageContent
	}
	return strings.Join(parts, "\n\n")
}

func storeError(err error) error {
	return &QueryError{
		Kind: ErrStoreLoad,
		Msg:  fmt.Sprintf("Failed to load document database: %v. Ensure documents are ingested.", err),
		Err:  err,
	}
}

func unexpected(err error) error {
	return &QueryError{
		Kind: ErrQueryFailed,
		Msg:  fmt.Sprintf("An unexpected error occurred during query processing: %v", err),
		Err:  err,
	}
}
