package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/privategpt-go/internal/llm"
	"github.com/raphaelgruber/privategpt-go/internal/parser"
)

func runeTokens(s string) int { return utf8.RuneCountInString(s) / 4 }

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "history.txt", strings.Repeat("Freedonia was founded long ago by explorers. ", 30))

	model := &fakeModel{reply: "A short history of Freedonia."}
	svc := NewSummarizeService(modelFactory(model), parser.ChunkConfig{Size: 400, Overlap: 0}, nil)
	svc.countTokens = runeTokens

	summary, err := svc.Summarize(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, summary.Path)
	assert.Greater(t, summary.Chunks, 1)
	assert.Positive(t, summary.Tokens)
	assert.Equal(t, "A short history of Freedonia.", summary.Summary)
	// One map call per chunk plus the combine step.
	assert.Greater(t, len(model.prompts), summary.Chunks)
}

func TestSummarize_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.txt", "   \n\n ")
	full := writeFile(t, dir, "full.txt", "Freedonia.")

	svc := NewSummarizeService(modelFactory(&fakeModel{}), parser.DefaultChunkConfig(), nil)
	svc.countTokens = runeTokens

	_, err := svc.Summarize(context.Background(), empty)
	assert.ErrorIs(t, err, ErrNothingToSummarize)

	_, err = svc.Summarize(context.Background(), dir+"/missing.txt")
	assert.Error(t, err)

	unsupported := NewSummarizeService(func(context.Context) (llms.Model, error) {
		return nil, llm.ErrUnsupportedModel
	}, parser.DefaultChunkConfig(), nil)
	unsupported.countTokens = runeTokens
	_, err = unsupported.Summarize(context.Background(), full)
	assert.ErrorIs(t, err, llm.ErrUnsupportedModel)

	failing := NewSummarizeService(modelFactory(&fakeModel{err: errors.New("model offline")}), parser.DefaultChunkConfig(), nil)
	failing.countTokens = runeTokens
	_, err = failing.Summarize(context.Background(), full)
	assert.ErrorContains(t, err, "model offline")
}
