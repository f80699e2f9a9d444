package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// Returns IsError=true so the calling model can see the error and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return mcp.NewToolResultError(text)
}

// JSONResult marshals v as indented JSON into a text result.
func JSONResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("Failed to encode result", err.Error())
	}
	return mcp.NewToolResultText(string(b))
}
