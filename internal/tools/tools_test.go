package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/privategpt-go/internal/llm"
	"github.com/raphaelgruber/privategpt-go/internal/service"
	"github.com/raphaelgruber/privategpt-go/internal/tools"
)

type fakeAnswerer struct {
	answer *service.Answer
	err    error
	got    string
}

func (f *fakeAnswerer) Answer(_ context.Context, query string) (*service.Answer, error) {
	f.got = query
	return f.answer, f.err
}

type fakeIngester struct {
	result service.IngestResult
	got    []string
	called bool
}

func (f *fakeIngester) Ingest(_ context.Context, paths []string) service.IngestResult {
	f.called = true
	f.got = paths
	return f.result
}

type fakeLister struct {
	docs []string
	err  error
}

func (f fakeLister) List(context.Context) ([]string, error) { return f.docs, f.err }

func testDeps() (*tools.Dependencies, *fakeAnswerer, *fakeIngester) {
	a := &fakeAnswerer{answer: &service.Answer{
		Answer: "Paris",
		SourceDocuments: []service.SourceDocument{
			{PageContent: "Paris is the capital of France.", Metadata: map[string]any{"source": "france.txt"}},
		},
	}}
	in := &fakeIngester{result: service.IngestResult{Message: "Ingestion complete.", ChunksIngested: 4, FilesProcessed: 2}}
	return &tools.Dependencies{
		Answerer:  a,
		Ingester:  in,
		Documents: fakeLister{docs: []string{"a.pdf", "b.txt"}},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, a, in
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestRegisterAll(t *testing.T) {
	deps, _, _ := testDeps()
	s := server.NewMCPServer("privategpt-test", "0.0.1-test")
	assert.NotPanics(t, func() { tools.RegisterAll(s, deps) })
}

func TestQueryHandler(t *testing.T) {
	deps, a, _ := testDeps()
	handler := tools.NewQueryHandler(deps)

	res, err := handler(context.Background(), callRequest("query_documents", map[string]any{"query": "  capital of France?  "}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "capital of France?", a.got)

	var got service.Answer
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, "Paris", got.Answer)
	require.Len(t, got.SourceDocuments, 1)
	assert.Equal(t, "france.txt", got.SourceDocuments[0].Metadata["source"])
}

func TestQueryHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		err     error
		wantMsg string
	}{
		{
			name:    "missing query",
			args:    map[string]any{},
			wantMsg: "Query cannot be empty",
		},
		{
			name:    "blank query",
			args:    map[string]any{"query": "   "},
			wantMsg: "Query cannot be empty",
		},
		{
			name:    "query error message is surfaced",
			args:    map[string]any{"query": "hi"},
			err:     &service.QueryError{Kind: llm.ErrModelRuntime, Msg: "model runtime failure"},
			wantMsg: "model runtime failure",
		},
		{
			name:    "unexpected error",
			args:    map[string]any{"query": "hi"},
			err:     errors.New("boom"),
			wantMsg: "Query failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, a, _ := testDeps()
			a.err = tt.err
			res, err := tools.NewQueryHandler(deps)(context.Background(), callRequest("query_documents", tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.wantMsg)
		})
	}
}

func TestListDocumentsHandler(t *testing.T) {
	deps, _, _ := testDeps()

	res, err := tools.NewListDocumentsHandler(deps)(context.Background(), callRequest("list_documents", nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got struct {
		Documents []string `json:"documents"`
		Count     int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, []string{"a.pdf", "b.txt"}, got.Documents)
	assert.Equal(t, 2, got.Count)

	deps.Documents = fakeLister{err: errors.New("permission denied")}
	res, err = tools.NewListDocumentsHandler(deps)(context.Background(), callRequest("list_documents", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestIngestHandler(t *testing.T) {
	t.Run("paths are passed through", func(t *testing.T) {
		deps, _, in := testDeps()
		res, err := tools.NewIngestHandler(deps)(context.Background(),
			callRequest("ingest_documents", map[string]any{"paths": []any{"a.pdf", "b.txt"}}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, []string{"a.pdf", "b.txt"}, in.got)

		var got service.IngestResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
		assert.Equal(t, 4, got.ChunksIngested)
	})

	t.Run("no paths ingests the source directory", func(t *testing.T) {
		deps, _, in := testDeps()
		_, err := tools.NewIngestHandler(deps)(context.Background(), callRequest("ingest_documents", nil))
		require.NoError(t, err)
		assert.True(t, in.called)
		assert.Nil(t, in.got)
	})

	t.Run("invalid paths", func(t *testing.T) {
		deps, _, in := testDeps()
		res, err := tools.NewIngestHandler(deps)(context.Background(),
			callRequest("ingest_documents", map[string]any{"paths": []any{"a.pdf", 3.0}}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.False(t, in.called)
	})

	t.Run("failed run", func(t *testing.T) {
		deps, _, in := testDeps()
		in.result = service.IngestResult{Error: "Error initializing embeddings: connection refused"}
		res, err := tools.NewIngestHandler(deps)(context.Background(), callRequest("ingest_documents", nil))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "connection refused")
	})
}
