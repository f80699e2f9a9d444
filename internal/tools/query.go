package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/raphaelgruber/privategpt-go/internal/service"
)

// NewQueryHandler creates the query_documents tool handler.
func NewQueryHandler(deps *Dependencies) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		query, _ := args["query"].(string)
		query = strings.TrimSpace(query)
		if query == "" {
			return ErrorResult("Query cannot be empty", "Provide a question"), nil
		}

		answer, err := deps.Answerer.Answer(ctx, query)
		if err != nil {
			deps.Logger.Error("query failed", "error", err)
			var qe *service.QueryError
			if errors.As(err, &qe) {
				return ErrorResult(qe.Msg, ""), nil
			}
			return ErrorResult("Query failed", "Check that documents were ingested and the model is reachable"), nil
		}

		deps.Logger.Info("query completed", "query", truncate(query, 30), "sources", len(answer.SourceDocuments))
		return JSONResult(answer), nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
