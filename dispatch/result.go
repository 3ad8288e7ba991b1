package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// successResult wraps a tool value. Objects are also returned as
// structured content.
func successResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	res := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
	if obj, ok := v.(map[string]any); ok {
		res.StructuredContent = obj
	}
	return res
}

// errorResult reports err as a tool-level failure.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// ErrorText returns the message of an error result, or "" if res succeeded.
func ErrorText(res *mcp.CallToolResult) string {
	if res == nil || !res.IsError {
		return ""
	}
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
