package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/privategpt-go/internal/metrics"
)

type countingEmbedder struct {
	queryCalls int
	docCalls   int
	err        error
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.docCalls++
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	c.queryCalls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestEmbedderQueryCache(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapEmbedder(inner, "fake", WithQueryCache(2))
	ctx := context.Background()

	v1, err := e.EmbedQuery(ctx, "hello")
	require.NoError(t, err)
	v2, err := e.EmbedQuery(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.queryCalls)

	_, err = e.EmbedQuery(ctx, "a")
	require.NoError(t, err)
	_, err = e.EmbedQuery(ctx, "b")
	require.NoError(t, err)
	_, err = e.EmbedQuery(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.queryCalls, "evicted entry should be recomputed")
}

func TestEmbedderWithoutCache(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapEmbedder(inner, "fake")

	for range 3 {
		_, err := e.EmbedQuery(context.Background(), "q")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.queryCalls)
	assert.Equal(t, "fake", e.ModelName())
}

func TestEmbedderDocumentsRecordsMetrics(t *testing.T) {
	c := metrics.NewCollector()
	inner := &countingEmbedder{}
	e := WrapEmbedder(inner, "fake", WithMetrics(c))

	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	empty, err := e.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 1, inner.docCalls)

	inner.err = errors.New("down")
	_, err = e.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "down")

	op := c.Snapshot().Operations[metrics.OpEmbedding]
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(1), op.Errors)
}
