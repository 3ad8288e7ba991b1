package crawl

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Dialer opens an MCP client session to a stage address.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines while connecting.
// - Ownership: the caller closes the returned session.
type Dialer interface {
	Dial(ctx context.Context, addr string) (*mcp.ClientSession, error)
}

// HTTPDialer connects over the streamable HTTP transport.
type HTTPDialer struct {
	// HTTPClient is used for all requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Implementation identifies the crawler to stages.
	Implementation *mcp.Implementation
}

var _ Dialer = (*HTTPDialer)(nil)

// Dial connects to the stage at addr.
func (d *HTTPDialer) Dial(ctx context.Context, addr string) (*mcp.ClientSession, error) {
	impl := d.Implementation
	if impl == nil {
		impl = &mcp.Implementation{Name: "toolsynth-crawler", Version: "v0.1.0"}
	}
	client := mcp.NewClient(impl, nil)
	transport := &mcp.StreamableClientTransport{
		Endpoint:   addr,
		HTTPClient: d.HTTPClient,
		MaxRetries: -1,
	}
	return client.Connect(ctx, transport, nil)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string) (*mcp.ClientSession, error)

// Dial calls f(ctx, addr).
func (f DialerFunc) Dial(ctx context.Context, addr string) (*mcp.ClientSession, error) {
	return f(ctx, addr)
}
