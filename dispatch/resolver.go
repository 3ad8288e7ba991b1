package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolsynth/artifact"
	"github.com/jonwraymond/toolsynth/sandbox"
)

type handler struct {
	fragment sandbox.Fragment
	network  bool
}

func (h handler) capability() sandbox.Capability {
	if h.network {
		return sandbox.CapNetwork
	}
	return sandbox.CapPure
}

type route struct {
	upstream string
	input    *sandbox.Fragment
	output   *sandbox.Fragment
}

type resource struct {
	meta *mcp.Resource
	text string
}

// Resolver answers tool calls for a synthesized artifact. It is immutable
// after New and safe for concurrent use.
type Resolver struct {
	cfg       Config
	direct    bool
	domains   []string
	handlers  map[string]handler
	routes    map[string]route
	synthetic map[string]sandbox.Fragment
	schemas   map[string]*jsonschema.Resolved
	tools     []*mcp.Tool
	resources map[string]resource
	listing   []*mcp.Resource
}

// Load reads the runtime IR from fsys and builds a Resolver over it.
func Load(fsys fs.FS, cfg Config) (*Resolver, error) {
	m, err := artifact.Load(fsys)
	if err != nil {
		return nil, err
	}
	return New(m, fsys, cfg)
}

// New builds a Resolver from a manifest and the bundle files it references.
// Every fragment, descriptor, and markup file is read up front.
func New(m *artifact.Manifest, fsys fs.FS, cfg Config) (*Resolver, error) {
	if m == nil || fsys == nil {
		return nil, fmt.Errorf("%w: manifest and files are required", ErrConfiguration)
	}
	cfg.applyDefaults()
	if cfg.Runner == nil {
		exec, err := sandbox.New(sandbox.Config{
			Timeout:      m.Sandbox.Timeout(),
			MaxToolCalls: m.Sandbox.MaxToolCalls,
			HTTPClient:   cfg.HTTPClient,
		})
		if err != nil {
			return nil, err
		}
		cfg.Runner = exec
	}

	r := &Resolver{
		cfg:       cfg,
		direct:    m.Direct,
		domains:   slices.Clone(m.Sandbox.AllowedDomains),
		handlers:  make(map[string]handler, len(m.Handlers)),
		routes:    make(map[string]route, len(m.Routes)),
		synthetic: make(map[string]sandbox.Fragment, len(m.Synthetic)),
		schemas:   map[string]*jsonschema.Resolved{},
		resources: make(map[string]resource, len(m.Resources)),
	}
	if err := r.load(m, fsys); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) load(m *artifact.Manifest, fsys fs.FS) error {
	for name, h := range m.Handlers {
		src, err := readFile(fsys, h.File)
		if err != nil {
			return err
		}
		r.handlers[name] = handler{
			fragment: sandbox.Fragment{Name: name, Role: sandbox.RoleHandler, Source: src},
			network:  h.NeedsNetwork,
		}
	}

	for exposed, upstream := range m.Routes {
		rt := route{upstream: upstream}
		if file, ok := m.Transforms[exposed]; ok {
			d, err := artifact.LoadTransform(fsys, file)
			if err != nil {
				return err
			}
			rt.input = transformFragment(exposed+".input", d.InputTransform)
			rt.output = transformFragment(exposed+".output", d.OutputTransform)
		}
		r.routes[exposed] = rt
	}

	for _, name := range m.Synthetic {
		src, err := readFile(fsys, m.Orchestrations[name])
		if err != nil {
			return err
		}
		r.synthetic[name] = sandbox.Fragment{Name: name, Role: sandbox.RoleOrchestration, Source: src}
	}

	for _, t := range m.Tools {
		r.tools = append(r.tools, &mcp.Tool{
			Meta:        mcp.Meta(t.Meta),
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
		if r.cfg.ValidateInput {
			r.compileSchema(t)
		}
	}

	for _, res := range m.Resources {
		text, err := readFile(fsys, res.File)
		if err != nil {
			return err
		}
		meta := &mcp.Resource{URI: res.URI, Name: res.Name, MIMEType: res.MIMEType}
		r.resources[res.URI] = resource{meta: meta, text: text}
		r.listing = append(r.listing, meta)
	}
	return nil
}

// compileSchema resolves a tool's input schema. Schemas that fail to
// resolve are skipped with a warning; the tool stays callable.
func (r *Resolver) compileSchema(t artifact.Tool) {
	data, err := json.Marshal(t.InputSchema)
	if err == nil {
		var s jsonschema.Schema
		if err = json.Unmarshal(data, &s); err == nil {
			var resolved *jsonschema.Resolved
			if resolved, err = s.Resolve(nil); err == nil {
				r.schemas[t.Name] = resolved
				return
			}
		}
	}
	r.cfg.Logger.Warn("input schema not enforced", "tool", t.Name, "error", err)
}

func transformFragment(name string, src *string) *sandbox.Fragment {
	if src == nil {
		return nil
	}
	return &sandbox.Fragment{Name: name, Role: sandbox.RoleTransform, Source: *src}
}

func readFile(fsys fs.FS, name string) (string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", artifact.ErrInvalidBundle, err)
	}
	return string(data), nil
}

// Tools returns the exposed tool listing. The slice is a copy; the tools
// themselves must not be modified.
func (r *Resolver) Tools() []*mcp.Tool {
	return slices.Clone(r.tools)
}

// Resources returns the markup resources, sorted by URI.
func (r *Resolver) Resources() []*mcp.Resource {
	return slices.Clone(r.listing)
}

// ReadResource returns the markup bound to uri.
func (r *Resolver) ReadResource(uri string) (*mcp.ReadResourceResult, error) {
	res, ok := r.resources[uri]
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: res.meta.MIMEType,
			Text:     res.text,
		}},
	}, nil
}

// Call answers a tool call. Failures of any kind, including unknown names,
// are returned as results with IsError set; Call never returns nil.
func (r *Resolver) Call(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	start := time.Now()
	value, err := r.Invoke(ctx, name, args)
	if err != nil {
		r.cfg.Logger.Info("tool call failed",
			"tool", name,
			"duration", time.Since(start),
			"error", err,
		)
		return errorResult(err)
	}
	r.cfg.Logger.Debug("tool call", "tool", name, "duration", time.Since(start))
	return successResult(value)
}

// CallJSON is Call with raw JSON arguments. Empty arguments mean {}.
func (r *Resolver) CallJSON(ctx context.Context, name string, raw json.RawMessage) *mcp.CallToolResult {
	args := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult(fmt.Errorf("%w: arguments must be a JSON object: %v", ErrInvalidInput, err))
		}
	}
	return r.Call(ctx, name, args)
}

// Invoke resolves name and runs it, returning the raw value or a typed
// error. Synthetic tools take precedence over routed ones; root tools are
// callable by their own names only when the chain has no transform stage.
func (r *Resolver) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := r.validate(name, args); err != nil {
		return nil, err
	}
	if frag, ok := r.synthetic[name]; ok {
		return r.orchestrate(ctx, frag, args)
	}
	if rt, ok := r.routes[name]; ok {
		return r.route(ctx, name, rt, args)
	}
	if r.direct {
		if _, ok := r.handlers[name]; ok {
			return r.callRoot(ctx, name, args)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

func (r *Resolver) validate(name string, args map[string]any) error {
	schema, ok := r.schemas[name]
	if !ok {
		return nil
	}
	if err := schema.Validate(args); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
	}
	return nil
}

// callRoot runs the root handler named name.
func (r *Resolver) callRoot(ctx context.Context, name string, args map[string]any) (any, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingHandler, name)
	}
	return r.run(ctx, sandbox.Invocation{
		Fragment:       h.fragment,
		Input:          args,
		Capability:     h.capability(),
		AllowedDomains: r.domains,
	})
}

// route runs input transform, upstream handler, and output transform in
// order. Transforms inherit the handler's capability.
func (r *Resolver) route(ctx context.Context, name string, rt route, args map[string]any) (any, error) {
	h, ok := r.handlers[rt.upstream]
	if !ok {
		return nil, fmt.Errorf("%w: %q routes to %q", ErrMissingHandler, name, rt.upstream)
	}

	input := args
	if rt.input != nil {
		v, err := r.transform(ctx, *rt.input, h, args)
		if err != nil {
			return nil, err
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: input transform for %q returned %T, want object", ErrTransform, name, v)
		}
		input = obj
	}

	value, err := r.callRoot(ctx, rt.upstream, input)
	if err != nil {
		return nil, err
	}

	if rt.output != nil {
		return r.transform(ctx, *rt.output, h, value)
	}
	return value, nil
}

// transform runs a transform fragment. A blank fragment is present but
// yields null.
func (r *Resolver) transform(ctx context.Context, frag sandbox.Fragment, h handler, value any) (any, error) {
	if strings.TrimSpace(frag.Source) == "" {
		return nil, nil
	}
	return r.run(ctx, sandbox.Invocation{
		Fragment:       frag,
		Input:          value,
		Capability:     h.capability(),
		AllowedDomains: r.domains,
	})
}

// orchestrate runs a synthetic tool with sub-tool calls bound to root
// dispatch only.
func (r *Resolver) orchestrate(ctx context.Context, frag sandbox.Fragment, args map[string]any) (any, error) {
	return r.run(ctx, sandbox.Invocation{
		Fragment:   frag,
		Input:      args,
		Capability: sandbox.CapPure,
		CallTool:   r.rootCaller(frag.Name),
	})
}

func (r *Resolver) rootCaller(caller string) sandbox.ToolCaller {
	return func(ctx context.Context, name string, args map[string]any) (any, error) {
		if _, ok := r.handlers[name]; ok {
			return r.callRoot(ctx, name, args)
		}
		if _, ok := r.synthetic[name]; ok {
			return nil, &sandbox.CapabilityError{
				Fragment:   caller,
				Capability: "call-tool",
				Target:     name,
				Reason:     "orchestrations may only call root tools",
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrMissingHandler, name)
	}
}

func (r *Resolver) run(ctx context.Context, inv sandbox.Invocation) (any, error) {
	res, err := r.cfg.Runner.Run(ctx, inv)
	if res.Stdout != "" {
		r.cfg.Logger.Debug("fragment output", "fragment", inv.Fragment.Name, "stdout", res.Stdout)
	}
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}
