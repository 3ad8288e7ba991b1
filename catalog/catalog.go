// Package catalog indexes the exposed tool set of a synthesized artifact
// for search and documentation lookup.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolsynth/artifact"
)

// DefaultNamespace is used when Options.Namespace is empty.
const DefaultNamespace = "pipeline"

// ErrNotFound indicates a name the catalog does not hold.
var ErrNotFound = errors.New("tool not found")

// Options configures a Catalog.
type Options struct {
	// Namespace prefixes every tool ID ("namespace:name").
	Namespace string

	// Lexical selects the index's default lexical searcher instead of BM25.
	Lexical bool
}

// Catalog is a searchable, documented view of an exposed tool listing.
type Catalog struct {
	ns   string
	idx  index.Index
	docs tooldoc.Store
}

// New indexes the tools of m.
func New(m *artifact.Manifest, opts Options) (*Catalog, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	var idx index.Index
	if opts.Lexical {
		idx = index.NewInMemoryIndex()
	} else {
		idx = index.NewInMemoryIndex(index.IndexOptions{
			Searcher: search.NewBM25Searcher(search.BM25Config{}),
		})
	}
	docs := tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx})

	for _, t := range m.Tools {
		tool := model.Tool{
			Tool: mcp.Tool{
				Name:        t.Name,
				Title:       t.Title,
				Description: t.Description,
				InputSchema: t.InputSchema,
			},
			Namespace: ns,
			Tags:      tags(m, t),
		}
		if err := idx.RegisterTool(tool, model.NewLocalBackend(backendName(m, t))); err != nil {
			return nil, fmt.Errorf("index %q: %w", t.Name, err)
		}
		if err := docs.RegisterDoc(ns+":"+t.Name, tooldoc.DocEntry{
			Summary: t.Description,
			Notes:   notes(m, t),
		}); err != nil {
			return nil, fmt.Errorf("document %q: %w", t.Name, err)
		}
	}
	return &Catalog{ns: ns, idx: idx, docs: docs}, nil
}

// Namespace returns the namespace tool IDs are prefixed with.
func (c *Catalog) Namespace() string {
	return c.ns
}

// Search returns up to limit tools matching query, best match first.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]index.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.idx.Search(query, limit)
}

// Describe returns full documentation for the tool with the given name or ID.
func (c *Catalog) Describe(ctx context.Context, name string) (tooldoc.ToolDoc, error) {
	if err := ctx.Err(); err != nil {
		return tooldoc.ToolDoc{}, err
	}
	id := name
	if !strings.Contains(id, ":") {
		id = c.ns + ":" + name
	}
	if _, _, err := c.idx.GetTool(id); err != nil {
		return tooldoc.ToolDoc{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.docs.DescribeTool(id, tooldoc.DetailFull)
}

func tags(m *artifact.Manifest, t artifact.Tool) []string {
	out := []string{string(t.Kind)}
	if t.Kind == artifact.KindSynthetic {
		return out
	}
	backend := backendName(m, t)
	if h, ok := m.Handlers[backend]; ok && h.NeedsNetwork {
		out = append(out, "network")
	}
	for _, r := range m.Resources {
		if r.Tool == backend {
			out = append(out, "ui")
			break
		}
	}
	return out
}

// backendName names the fragment that answers t.
func backendName(m *artifact.Manifest, t artifact.Tool) string {
	switch t.Kind {
	case artifact.KindRouted:
		return m.Routes[t.Name]
	default:
		return t.Name
	}
}

func notes(m *artifact.Manifest, t artifact.Tool) string {
	switch t.Kind {
	case artifact.KindSynthetic:
		return "Composed by orchestration over root tools."
	case artifact.KindRouted:
		note := "Routed to root tool " + m.Routes[t.Name] + "."
		if _, ok := m.Transforms[t.Name]; ok {
			note += " Arguments or results are transformed."
		}
		return note
	default:
		return "Root tool exposed directly."
	}
}
