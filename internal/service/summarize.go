package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/schema"

	"github.com/raphaelgruber/privategpt-go/internal/loader"
	"github.com/raphaelgruber/privategpt-go/internal/parser"
)

// ErrNothingToSummarize is returned for files without text.
var ErrNothingToSummarize = errors.New("no text to summarize")

// Summary is the result of summarizing one file.
type Summary struct {
	Path    string `json:"path"`
	Chunks  int    `json:"chunks"`
	Tokens  int    `json:"tokens"`
	Summary string `json:"summary"`
}

// SummarizeService condenses a single document with a map-reduce chain.
type SummarizeService struct {
	newModel    ModelFactory
	chunk       parser.ChunkConfig
	load        func(ctx context.Context, path string) ([]schema.Document, error)
	countTokens func(string) int
	logger      *slog.Logger
}

// NewSummarizeService creates a summarizer. Summaries use larger chunks
// than retrieval since each one becomes a model call.
func NewSummarizeService(newModel ModelFactory, chunk parser.ChunkConfig, logger *slog.Logger) *SummarizeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummarizeService{
		newModel:    newModel,
		chunk:       chunk,
		load:        loader.Load,
		countTokens: CountTokens,
		logger:      logger,
	}
}

// Summarize loads path and returns a summary of its text.
func (s *SummarizeService) Summarize(ctx context.Context, path string) (*Summary, error) {
	docs, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	chunks, err := parser.SplitDocuments(docs, s.chunk)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToSummarize, path)
	}

	tokens := 0
	for _, c := range chunks {
		tokens += s.countTokens(c.PageContent)
	}
	s.logger.Info("summarizing document", "path", path, "chunks", len(chunks), "tokens", tokens)

	model, err := s.newModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	chain := chains.LoadMapReduceSummarization(model)
	out, err := chains.Call(ctx, chain, map[string]any{"input_documents": chunks})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	text, _ := out["text"].(string)

	return &Summary{
		Path:    path,
		Chunks:  len(chunks),
		Tokens:  tokens,
		Summary: strings.TrimSpace(text),
	}, nil
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens estimates the token count of text with the cl100k_base
// encoding, or one token per four runes when the encoding is unavailable.
func CountTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Debug("tiktoken unavailable, estimating tokens", "error", err)
			return
		}
		enc = e
	})
	if enc == nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
