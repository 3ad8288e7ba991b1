package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolsynth/internal/logging"
	"github.com/jonwraymond/toolsynth/stage"
)

// IntrospectionTool is the hidden tool every stage serves its metadata from.
const IntrospectionTool = "__stage_metadata"

// Default configuration values.
const (
	DefaultHopTimeout = 30 * time.Second
	DefaultMaxDepth   = 64
)

// Config holds the configuration for a Crawler.
type Config struct {
	// Dialer opens stage sessions. Defaults to an HTTPDialer.
	Dialer Dialer

	// HopTimeout bounds each connect-call-close round trip.
	// Defaults to DefaultHopTimeout.
	HopTimeout time.Duration

	// MaxDepth bounds the chain length. Defaults to DefaultMaxDepth.
	MaxDepth int

	// Logger is an optional logger for observability.
	Logger *slog.Logger
}

// Validate checks that all fields hold usable values.
// Returns ErrConfiguration if any field is invalid.
func (c *Config) Validate() error {
	var invalid []string
	if c.HopTimeout < 0 {
		invalid = append(invalid, "HopTimeout")
	}
	if c.MaxDepth < 0 {
		invalid = append(invalid, "MaxDepth")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: invalid fields: %s",
			ErrConfiguration, strings.Join(invalid, ", "))
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (c *Config) applyDefaults() {
	if c.Dialer == nil {
		c.Dialer = &HTTPDialer{}
	}
	if c.HopTimeout == 0 {
		c.HopTimeout = DefaultHopTimeout
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.Logger == nil {
		c.Logger = logging.New("crawl")
	}
}

// Crawler walks a stage chain back to its root.
type Crawler struct {
	cfg Config
}

// New creates a Crawler with the given configuration.
// Returns ErrConfiguration if any field is invalid.
func New(cfg Config) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &Crawler{cfg: cfg}, nil
}

// Crawl fetches the metadata of the stage at addr and of every stage
// upstream of it, one round trip at a time. The result is root-first.
// Any failure aborts the crawl; no partial chain is returned.
func (c *Crawler) Crawl(ctx context.Context, addr string) ([]*stage.Stage, error) {
	var (
		stages  []*stage.Stage
		chain   []string
		visited = map[string]bool{}
	)
	for next := addr; next != ""; {
		key := normalizeAddr(next)
		if visited[key] {
			return nil, &CycleError{Addr: next, Chain: chain}
		}
		if len(stages) >= c.cfg.MaxDepth {
			return nil, fmt.Errorf("%w: more than %d stages", ErrTooDeep, c.cfg.MaxDepth)
		}
		visited[key] = true
		chain = append(chain, next)

		st, err := c.fetch(ctx, next)
		if err != nil {
			return nil, err
		}
		c.cfg.Logger.Debug("crawled stage",
			"addr", next,
			"kind", string(st.Kind),
			"version", st.Version,
			"upstream", st.Upstream,
		)
		stages = append(stages, st)
		next = st.Upstream
	}
	slices.Reverse(stages)
	c.cfg.Logger.Info("crawl complete", "addr", addr, "stages", len(stages))
	return stages, nil
}

// fetch performs one connect-call-close round trip.
func (c *Crawler) fetch(ctx context.Context, addr string) (*stage.Stage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HopTimeout)
	defer cancel()

	session, err := c.cfg.Dialer.Dial(ctx, addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: IntrospectionTool})
	if err != nil {
		var wireErr *jsonrpc.Error
		if errors.As(err, &wireErr) {
			return nil, &stage.ProtocolError{Addr: addr, Reason: "introspection call rejected", Err: err}
		}
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	doc, err := metadataDocument(res)
	if err != nil {
		return nil, &stage.ProtocolError{Addr: addr, Reason: err.Error()}
	}
	st, err := stage.Decode(doc)
	if err != nil {
		var pe *stage.ProtocolError
		if errors.As(err, &pe) {
			pe.Addr = addr
		}
		return nil, err
	}
	return st, nil
}

// metadataDocument extracts the JSON document from an introspection reply,
// preferring structured content over the first text block.
func metadataDocument(res *mcp.CallToolResult) ([]byte, error) {
	if res.IsError {
		msg := "introspection tool returned an error"
		if text := firstText(res); text != "" {
			msg += ": " + text
		}
		return nil, errors.New(msg)
	}
	if res.StructuredContent != nil {
		return json.Marshal(res.StructuredContent)
	}
	if text := firstText(res); text != "" {
		return []byte(text), nil
	}
	return nil, errors.New("introspection reply has no content")
}

func firstText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// normalizeAddr canonicalizes an address for cycle detection.
func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(addr, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
