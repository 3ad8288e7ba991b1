package stage

import "slices"

// Kind identifies which variant a Stage carries.
type Kind string

// Stage kinds as they appear in the "stage" field of a metadata document.
const (
	KindRoot         Kind = "root"
	KindTransform    Kind = "transform"
	KindPresentation Kind = "presentation"
)

// Valid reports whether k is one of the known stage kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRoot, KindTransform, KindPresentation:
		return true
	}
	return false
}

// Stage is one layer of a pipeline, decoded from a stage's metadata document.
// Exactly one of Root, Transform, or Presentation is non-nil, matching Kind.
//
// Contract:
// - Ownership: stages are read-only after decoding; callers must not mutate them.
// - Nil/zero: an empty Upstream marks the chain root.
type Stage struct {
	Kind     Kind
	Version  string
	Upstream string

	Root         *Root
	Transform    *Transform
	Presentation *Presentation
}

// IsChainRoot reports whether the stage has no upstream pointer.
func (s *Stage) IsChainRoot() bool {
	return s.Upstream == ""
}

// Root is the base stage that implements tools directly.
type Root struct {
	Tools []ToolDefinition

	// AllowedDomains is the network allowlist for tools that declare
	// NeedsNetwork. A domain also admits its subdomains.
	AllowedDomains []string
}

// Tool returns the tool definition with the given name.
func (r *Root) Tool(name string) (ToolDefinition, bool) {
	for _, t := range r.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDefinition{}, false
}

// ToolDefinition is a directly implemented tool of a root stage.
type ToolDefinition struct {
	Name         string
	Description  string
	InputSchema  map[string]any
	Code         string
	NeedsNetwork bool
}

// Transform hides, renames, reshapes, or synthesizes tools over its upstream.
type Transform struct {
	HiddenTools    []string
	RoutedTools    []RoutingEntry
	SyntheticTools []SyntheticTool
}

// Hidden reports whether name is in the hidden set.
func (t *Transform) Hidden(name string) bool {
	return slices.Contains(t.HiddenTools, name)
}

// RoutingEntry maps one exposed tool onto one upstream root tool.
//
// Optional fields are pointers so that an absent value can be told apart
// from an empty one.
type RoutingEntry struct {
	ExposedName     string
	UpstreamName    string
	ExposedSchema   map[string]any
	Description     *string
	InputTransform  *string
	OutputTransform *string
}

// Modified reports whether the entry carries at least one transform fragment.
// A rename, exposed schema or description override alone does not count.
func (e RoutingEntry) Modified() bool {
	return e.InputTransform != nil || e.OutputTransform != nil
}

// SyntheticTool is a tool defined purely by orchestration code.
type SyntheticTool struct {
	Name          string
	Description   string
	InputSchema   map[string]any
	Orchestration string

	// References lists the upstream tool names the orchestration declares
	// it calls. It is informational; calls are resolved at run time.
	References []string
}

// Presentation binds interactive markup to existing tools.
type Presentation struct {
	UIBindings []UIBinding
}

// UIBinding attaches markup to a root tool.
type UIBinding struct {
	ToolName   string
	ResourceID string
	Markup     string
}

// Summary is a compact description of a stage used in manifests and logs.
type Summary struct {
	Kind     Kind   `json:"kind"`
	Version  string `json:"version"`
	Upstream string `json:"upstream,omitempty"`
}

// Summarize returns the stage's summary.
func (s *Stage) Summarize() Summary {
	return Summary{Kind: s.Kind, Version: s.Version, Upstream: s.Upstream}
}
