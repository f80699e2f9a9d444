package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewListDocumentsHandler creates the list_documents tool handler.
func NewListDocumentsHandler(deps *Dependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docs, err := deps.Documents.List(ctx)
		if err != nil {
			deps.Logger.Error("list documents failed", "error", err)
			return ErrorResult("Failed to list documents", "Check SOURCE_DIRECTORY"), nil
		}
		if docs == nil {
			docs = []string{}
		}
		return JSONResult(map[string]any{
			"documents": docs,
			"count":     len(docs),
		}), nil
	}
}

// NewIngestHandler creates the ingest_documents tool handler. Ingestion
// runs synchronously; the result carries the outcome message or error.
func NewIngestHandler(deps *Dependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		paths, err := stringSlice(req.GetArguments()["paths"])
		if err != nil {
			return ErrorResult("Invalid paths", "Pass a list of file paths"), nil
		}

		result := deps.Ingester.Ingest(ctx, paths)
		if result.Failed() {
			deps.Logger.Error("ingest failed", "error", result.Error, "paths", len(paths))
			return ErrorResult(result.Error, ""), nil
		}

		deps.Logger.Info("ingest completed", "chunks", result.ChunksIngested, "files", result.FilesProcessed)
		return JSONResult(result), nil
	}
}

// stringSlice converts a decoded JSON array argument into strings.
func stringSlice(v any) ([]string, error) {
	switch vals := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("path %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("paths must be an array, got %T", v)
	}
}
