package synth

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonwraymond/toolsynth/artifact"
	"github.com/jonwraymond/toolsynth/stage"
)

// MetaResourceURI is the tool _meta key that links a tool to its UI resource.
const MetaResourceURI = "ui/resourceUri"

// Plan is the outcome of the exposed-tool-set algorithm before any file is
// rendered.
type Plan struct {
	Manifest *artifact.Manifest

	// Problems lists reference inconsistencies. Outside strict mode they
	// are informational.
	Problems []string

	stages    []stage.Summary
	fragments map[string][]byte
}

// Analyze runs the exposed-tool-set algorithm over root-first stages.
func Analyze(stages []*stage.Stage, opts Options) (*Plan, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	p := plan(stages, opts)
	if opts.Strict && len(p.Problems) > 0 {
		return p, &ValidationError{Problems: slices.Clone(p.Problems)}
	}
	return p, nil
}

// Synthesize compiles root-first stages into a bundle. It is pure:
// identical input yields byte-identical files.
func Synthesize(stages []*stage.Stage, opts Options) (*artifact.Bundle, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	p := plan(stages, opts)
	if opts.Strict && len(p.Problems) > 0 {
		return nil, &ValidationError{Problems: p.Problems}
	}
	return emit(p, opts)
}

type planner struct {
	opts    Options
	plan    *Plan
	root    *stage.Root
	tr      *stage.Transform
	pres    *stage.Presentation
	listing map[string]artifact.Tool
}

func plan(stages []*stage.Stage, opts Options) *Plan {
	pl := &planner{
		opts: opts,
		plan: &Plan{
			Manifest: &artifact.Manifest{
				Routes:         map[string]string{},
				Synthetic:      []string{},
				Handlers:       map[string]artifact.Handler{},
				Transforms:     map[string]string{},
				Orchestrations: map[string]string{},
				Sandbox: artifact.SandboxSettings{
					TimeoutMs:      opts.SandboxTimeout.Milliseconds(),
					MaxToolCalls:   opts.MaxToolCalls,
					AllowedDomains: []string{},
				},
			},
			fragments: map[string][]byte{},
		},
		listing: map[string]artifact.Tool{},
	}
	pl.locate(stages)
	pl.handlers()
	if pl.tr == nil {
		pl.direct()
	} else {
		pl.routed()
		pl.synthetic()
		pl.hidden()
	}
	pl.resources()

	m := pl.plan.Manifest
	for _, name := range slices.Sorted(maps.Keys(pl.listing)) {
		m.Tools = append(m.Tools, pl.listing[name])
	}
	if m.Tools == nil {
		m.Tools = []artifact.Tool{}
	}
	sort.Strings(m.Synthetic)
	sort.Slice(m.Resources, func(i, j int) bool { return m.Resources[i].URI < m.Resources[j].URI })
	return pl.plan
}

func (pl *planner) problem(format string, args ...any) {
	pl.plan.Problems = append(pl.plan.Problems, fmt.Sprintf(format, args...))
}

// locate picks the first stage of each kind and records repeats.
func (pl *planner) locate(stages []*stage.Stage) {
	seen := map[stage.Kind]int{}
	for _, st := range stages {
		if st == nil {
			continue
		}
		pl.plan.stages = append(pl.plan.stages, st.Summarize())
		seen[st.Kind]++
		if seen[st.Kind] > 1 {
			pl.problem("repeated %s stage (version %s) ignored", st.Kind, st.Version)
			continue
		}
		switch st.Kind {
		case stage.KindRoot:
			pl.root = st.Root
		case stage.KindTransform:
			pl.tr = st.Transform
		case stage.KindPresentation:
			pl.pres = st.Presentation
		}
	}
	if pl.root == nil {
		pl.problem("no root stage in chain")
	}
}

func (pl *planner) handlers() {
	if pl.root == nil {
		return
	}
	m := pl.plan.Manifest
	domains := append([]string{}, pl.root.AllowedDomains...)
	sort.Strings(domains)
	m.Sandbox.AllowedDomains = slices.Compact(domains)

	for _, t := range pl.root.Tools {
		if _, dup := m.Handlers[t.Name]; dup {
			pl.problem("duplicate root tool %q ignored", t.Name)
			continue
		}
		file := artifact.ToolsDir + "/" + artifact.SafeName(t.Name) + ".go.frag"
		pl.plan.fragments[file] = []byte(t.Code)
		m.Handlers[t.Name] = artifact.Handler{File: file, NeedsNetwork: t.NeedsNetwork}
	}
}

// direct exposes every root tool unchanged.
func (pl *planner) direct() {
	m := pl.plan.Manifest
	m.Direct = true
	if pl.root == nil {
		return
	}
	for _, t := range pl.root.Tools {
		if _, dup := pl.listing[t.Name]; dup {
			continue
		}
		pl.listing[t.Name] = artifact.Tool{
			Name:        t.Name,
			Title:       title(t.Name),
			Description: t.Description,
			InputSchema: pl.objectSchema(t.Name, t.InputSchema),
			Kind:        artifact.KindDirect,
		}
	}
}

func (pl *planner) routed() {
	m := pl.plan.Manifest
	for _, e := range pl.tr.RoutedTools {
		if pl.tr.Hidden(e.ExposedName) {
			pl.problem("routed tool %q is also hidden; not exposed", e.ExposedName)
			continue
		}
		if _, dup := m.Routes[e.ExposedName]; dup {
			pl.problem("duplicate routed tool %q ignored", e.ExposedName)
			continue
		}

		var upstream stage.ToolDefinition
		found := false
		if pl.root != nil {
			upstream, found = pl.root.Tool(e.UpstreamName)
		}
		if !found {
			pl.problem("routed tool %q references unknown root tool %q", e.ExposedName, e.UpstreamName)
		}

		desc := upstream.Description
		if e.Description != nil {
			desc = *e.Description
		}
		schema := e.ExposedSchema
		if schema == nil {
			schema = upstream.InputSchema
		}

		m.Routes[e.ExposedName] = e.UpstreamName
		pl.listing[e.ExposedName] = artifact.Tool{
			Name:        e.ExposedName,
			Title:       title(e.ExposedName),
			Description: desc,
			InputSchema: pl.objectSchema(e.ExposedName, schema),
			Kind:        artifact.KindRouted,
		}

		if e.Modified() {
			file := artifact.TransformsDir + "/" + artifact.SafeName(e.ExposedName) + ".json"
			data, _ := json.MarshalIndent(artifact.TransformDescriptor{
				ExposedName:     e.ExposedName,
				UpstreamName:    e.UpstreamName,
				InputTransform:  e.InputTransform,
				OutputTransform: e.OutputTransform,
			}, "", "  ")
			pl.plan.fragments[file] = append(data, '\n')
			m.Transforms[e.ExposedName] = file
		}
	}
}

// synthetic registers orchestrations. A synthetic tool shadows a routed
// tool of the same name, matching dispatch precedence.
func (pl *planner) synthetic() {
	m := pl.plan.Manifest
	for _, s := range pl.tr.SyntheticTools {
		if pl.tr.Hidden(s.Name) {
			pl.problem("synthetic tool %q is also hidden; not exposed", s.Name)
			continue
		}
		if _, dup := m.Orchestrations[s.Name]; dup {
			pl.problem("duplicate synthetic tool %q ignored", s.Name)
			continue
		}
		if _, routed := m.Routes[s.Name]; routed {
			pl.problem("synthetic tool %q shadows routed tool of the same name", s.Name)
			if file, ok := m.Transforms[s.Name]; ok {
				delete(pl.plan.fragments, file)
				delete(m.Transforms, s.Name)
			}
			delete(m.Routes, s.Name)
		}
		for _, ref := range s.References {
			if pl.root == nil {
				break
			}
			if _, ok := pl.root.Tool(ref); !ok {
				pl.problem("synthetic tool %q references unknown root tool %q", s.Name, ref)
			}
		}

		file := artifact.OrchestrationsDir + "/" + artifact.SafeName(s.Name) + ".go.frag"
		pl.plan.fragments[file] = []byte(s.Orchestration)
		m.Orchestrations[s.Name] = file
		m.Synthetic = append(m.Synthetic, s.Name)
		pl.listing[s.Name] = artifact.Tool{
			Name:        s.Name,
			Title:       title(s.Name),
			Description: s.Description,
			InputSchema: pl.objectSchema(s.Name, s.InputSchema),
			Kind:        artifact.KindSynthetic,
		}
	}
}

func (pl *planner) hidden() {
	if pl.root == nil {
		return
	}
	for _, name := range pl.tr.HiddenTools {
		if _, ok := pl.root.Tool(name); !ok {
			pl.problem("hidden tool %q is not a root tool", name)
		}
	}
}

// resources binds presentation markup to root tools and tags the exposed
// tools backed by them.
func (pl *planner) resources() {
	if pl.pres == nil {
		return
	}
	m := pl.plan.Manifest
	seen := map[string]bool{}
	for _, b := range pl.pres.UIBindings {
		if pl.root == nil {
			break
		}
		if _, ok := pl.root.Tool(b.ToolName); !ok {
			pl.problem("ui binding %q references unknown root tool %q", b.ResourceID, b.ToolName)
			continue
		}
		uri := resourceURI(b.ResourceID)
		if seen[uri] {
			pl.problem("duplicate ui resource %q ignored", uri)
			continue
		}
		seen[uri] = true

		file := artifact.UIDir + "/" + artifact.SafeName(b.ResourceID) + ".html"
		pl.plan.fragments[file] = []byte(b.Markup)
		m.Resources = append(m.Resources, artifact.Resource{
			URI:      uri,
			Name:     b.ResourceID,
			Tool:     b.ToolName,
			MIMEType: "text/html",
			File:     file,
		})

		for name, t := range pl.listing {
			if pl.backingTool(name) != b.ToolName {
				continue
			}
			if _, tagged := t.Meta[MetaResourceURI]; tagged {
				continue
			}
			t.Meta = map[string]any{MetaResourceURI: uri}
			pl.listing[name] = t
		}
	}
}

// backingTool returns the root tool that answers an exposed name, if any.
func (pl *planner) backingTool(exposed string) string {
	m := pl.plan.Manifest
	if m.IsSynthetic(exposed) {
		return ""
	}
	if up, ok := m.Routes[exposed]; ok {
		return up
	}
	if m.Direct {
		return exposed
	}
	return ""
}

func resourceURI(id string) string {
	if strings.Contains(id, "://") {
		return id
	}
	return "ui://" + id
}

// objectSchema returns a copy of s whose top-level type is "object", the
// only input schema type an MCP server accepts. Any other declared type is
// replaced and reported as a problem.
func (pl *planner) objectSchema(tool string, s map[string]any) map[string]any {
	out := maps.Clone(s)
	if out == nil {
		out = map[string]any{}
	}
	typ, ok := out["type"]
	if ok && typ != "object" {
		pl.problem("tool %q input schema type %v replaced with \"object\"", tool, typ)
	}
	out["type"] = "object"
	return out
}

// title derives a display title from a tool name: "get_user-info" -> "Get User Info".
func title(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	return cases.Title(language.English).String(strings.Join(words, " "))
}
