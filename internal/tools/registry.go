package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before serving.
func RegisterAll(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(
		mcp.NewTool(
			"query_documents",
			mcp.WithDescription("Answer a question using the ingested documents. Returns the answer and the source chunks it was based on."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer")),
		),
		NewQueryHandler(deps),
	)

	s.AddTool(
		mcp.NewTool(
			"list_documents",
			mcp.WithDescription("List the original names of the documents in the source directory"),
		),
		NewListDocumentsHandler(deps),
	)

	s.AddTool(
		mcp.NewTool(
			"ingest_documents",
			mcp.WithDescription("Ingest documents into the vector store. Without paths, the whole source directory is ingested and chunks of removed files are pruned."),
			mcp.WithArray("paths", mcp.Description("Optional file paths to ingest"), mcp.WithStringItems()),
		),
		NewIngestHandler(deps),
	)
}
