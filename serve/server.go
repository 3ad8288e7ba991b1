package serve

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolsynth/dispatch"
)

// NewServer returns an MCP server whose tools and resources are answered by r.
// Calls to names r does not expose are answered with r's unknown-tool error
// result instead of a protocol error.
func NewServer(r *dispatch.Resolver, opts Options) *mcp.Server {
	opts.applyDefaults()
	server := mcp.NewServer(
		&mcp.Implementation{Name: opts.Name, Version: opts.Version},
		&mcp.ServerOptions{Logger: opts.Logger},
	)

	exposed := map[string]bool{}
	for _, tool := range r.Tools() {
		exposed[tool.Name] = true
		server.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return r.CallJSON(ctx, req.Params.Name, req.Params.Arguments), nil
		})
	}
	for _, res := range r.Resources() {
		server.AddResource(res, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return r.ReadResource(req.Params.URI)
		})
	}
	server.AddReceivingMiddleware(unknownTools(r, exposed))
	return server
}

func unknownTools(r *dispatch.Resolver, exposed map[string]bool) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			call, ok := req.(*mcp.CallToolRequest)
			if ok && call.Params != nil && !exposed[call.Params.Name] {
				return r.CallJSON(ctx, call.Params.Name, call.Params.Arguments), nil
			}
			return next(ctx, method, req)
		}
	}
}

// Handler mounts the streamable MCP endpoint at MCPPath and the health
// probe at HealthPath.
func Handler(server *mcp.Server, r *dispatch.Resolver, opts Options) http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle(MCPPath, requireToken(opts.Token, mcpHandler))
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"tools":     len(r.Tools()),
			"resources": len(r.Resources()),
		})
	})
	return mux
}

// requireToken rejects requests without the bearer token. An empty token
// disables the check.
func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="toolsynth"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req)
	})
}
