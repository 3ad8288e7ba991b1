package crawl

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolsynth/stage"
)

// ServeStage registers the introspection tool on server so that it answers
// with st's metadata document.
func ServeStage(server *mcp.Server, st *stage.Stage) error {
	doc, err := stage.Encode(st)
	if err != nil {
		return err
	}
	ServeMetadata(server, doc)
	return nil
}

// ServeMetadata registers the introspection tool with a fixed reply.
// The document is served as-is, without validation.
func ServeMetadata(server *mcp.Server, doc []byte) {
	text := string(doc)
	server.AddTool(&mcp.Tool{
		Name:        IntrospectionTool,
		Description: "Returns this stage's pipeline metadata document.",
		InputSchema: map[string]any{"type": "object"},
	}, func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	})
}
