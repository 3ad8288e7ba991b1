package artifact

import (
	"time"

	"github.com/jonwraymond/toolsynth/stage"
)

// Well-known bundle paths.
const (
	RuntimeFile  = "runtime.json"
	ManifestFile = "manifest.json"
	EntryPoint   = "main.go"
	ModFile      = "go.mod"

	ToolsDir          = "fragments/tools"
	TransformsDir     = "fragments/transforms"
	OrchestrationsDir = "fragments/orchestrations"
	UIDir             = "ui"
)

// ToolKind records how an exposed tool is answered.
type ToolKind string

const (
	KindSynthetic ToolKind = "synthetic"
	KindRouted    ToolKind = "routed"
	KindDirect    ToolKind = "direct"
)

// Manifest is the runtime IR serialized to runtime.json. It carries every
// table the dispatch resolver needs; fragments are referenced by bundle path.
type Manifest struct {
	// Direct is true when the chain had no transform stage, which makes
	// root tools callable by their own names.
	Direct bool `json:"direct"`

	// Tools is the exposed listing, sorted by name.
	Tools []Tool `json:"tools"`

	// Routes maps exposed names to root tool names.
	Routes map[string]string `json:"routes"`

	// Synthetic lists exposed names answered by orchestration, sorted.
	Synthetic []string `json:"synthetic"`

	// Handlers maps root tool names to their fragment files.
	Handlers map[string]Handler `json:"handlers"`

	// Transforms maps exposed names to transform descriptor files.
	Transforms map[string]string `json:"transforms"`

	// Orchestrations maps synthetic names to orchestration fragment files.
	Orchestrations map[string]string `json:"orchestrations"`

	// Resources lists presentation bindings, sorted by URI.
	Resources []Resource `json:"resources,omitempty"`

	Sandbox SandboxSettings `json:"sandbox"`
}

// Tool is one entry of the exposed listing.
type Tool struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
	Kind        ToolKind       `json:"kind"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

// Handler locates a root tool fragment.
type Handler struct {
	File         string `json:"file"`
	NeedsNetwork bool   `json:"needsNetwork"`
}

// Resource is a read-only markup binding.
type Resource struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	Tool     string `json:"tool"`
	MIMEType string `json:"mimeType"`
	File     string `json:"file"`
}

// SandboxSettings carries the fragment execution limits.
type SandboxSettings struct {
	TimeoutMs      int64    `json:"timeoutMs"`
	MaxToolCalls   int      `json:"maxToolCalls,omitempty"`
	AllowedDomains []string `json:"allowedDomains"`
}

// Timeout returns the sandbox timeout as a duration.
func (s SandboxSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// TransformDescriptor pairs the transform fragments of one routing entry.
// Absent fragments are serialized as null so that "no transform" differs
// from "empty transform".
type TransformDescriptor struct {
	ExposedName     string  `json:"exposed_name"`
	UpstreamName    string  `json:"upstream_name"`
	InputTransform  *string `json:"input_transform"`
	OutputTransform *string `json:"output_transform"`
}

// Package is the bundle description serialized to manifest.json.
type Package struct {
	Name         string          `json:"name"`
	Module       string          `json:"module"`
	GoVersion    string          `json:"goVersion"`
	EntryPoint   string          `json:"entryPoint"`
	Runtime      string          `json:"runtime"`
	Dependencies []Dependency    `json:"dependencies"`
	Files        []string        `json:"files"`
	Stages       []stage.Summary `json:"stages"`
}

// Dependency is one module requirement of the generated program.
type Dependency struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}
