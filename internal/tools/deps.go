// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/privategpt-go/internal/service"
)

// Answerer answers questions about the ingested documents.
type Answerer interface {
	Answer(ctx context.Context, query string) (*service.Answer, error)
}

// Ingester runs an ingestion over the given paths, or the whole source
// directory when paths is empty.
type Ingester interface {
	Ingest(ctx context.Context, paths []string) service.IngestResult
}

// Lister lists the documents in the source directory.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Answerer  Answerer
	Ingester  Ingester
	Documents Lister
	Logger    *slog.Logger
}
