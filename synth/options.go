package synth

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jonwraymond/toolsynth/sandbox"
)

// Default configuration values.
const (
	DefaultName           = "pipeline"
	DefaultModule         = "example.com/pipeline"
	DefaultGoVersion      = "1.25"
	DefaultRuntimeModule  = "github.com/jonwraymond/toolsynth"
	DefaultRuntimeVersion = "v0.1.0"
)

// Options configures a synthesis run.
type Options struct {
	// Name is the artifact name served as the MCP implementation name.
	// Default: "pipeline"
	Name string

	// Module is the module path of the generated program.
	// Default: "example.com/pipeline"
	Module string

	// GoVersion is written to the generated go.mod.
	// Default: "1.25"
	GoVersion string

	// RuntimeModule and RuntimeVersion name the dispatch runtime the
	// generated program requires. The emitted go.mod has no go.sum and
	// no indirect requirements, so building the program needs a published
	// RuntimeVersion of RuntimeModule followed by "go mod tidy". An
	// unpublished runtime needs a replace directive to a local checkout.
	// Default: "github.com/jonwraymond/toolsynth" at "v0.1.0"
	RuntimeModule  string
	RuntimeVersion string

	// SandboxTimeout bounds every fragment run of the generated program.
	// Default: sandbox.DefaultTimeout
	SandboxTimeout time.Duration

	// MaxToolCalls limits host.CallTool invocations per orchestration.
	// Zero means unlimited.
	MaxToolCalls int

	// Strict turns reference inconsistencies into a ValidationError
	// instead of deferring them to call time.
	Strict bool
}

// Validate checks that all set fields hold usable values.
// Returns ErrConfiguration if any field is invalid.
func (o *Options) Validate() error {
	var invalid []string

	if o.Module != "" && !validModulePath(o.Module) {
		invalid = append(invalid, "Module")
	}
	if o.RuntimeModule != "" && !validModulePath(o.RuntimeModule) {
		invalid = append(invalid, "RuntimeModule")
	}
	if strings.ContainsFunc(o.GoVersion, notVersionRune) {
		invalid = append(invalid, "GoVersion")
	}
	if strings.ContainsFunc(o.RuntimeVersion, unicode.IsSpace) {
		invalid = append(invalid, "RuntimeVersion")
	}
	if o.SandboxTimeout < 0 {
		invalid = append(invalid, "SandboxTimeout")
	}
	if o.MaxToolCalls < 0 {
		invalid = append(invalid, "MaxToolCalls")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: invalid fields: %s",
			ErrConfiguration, strings.Join(invalid, ", "))
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (o *Options) applyDefaults() {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Module == "" {
		o.Module = DefaultModule
	}
	if o.GoVersion == "" {
		o.GoVersion = DefaultGoVersion
	}
	if o.RuntimeModule == "" {
		o.RuntimeModule = DefaultRuntimeModule
	}
	if o.RuntimeVersion == "" {
		o.RuntimeVersion = DefaultRuntimeVersion
	}
	if o.SandboxTimeout == 0 {
		o.SandboxTimeout = sandbox.DefaultTimeout
	}
}

func validModulePath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return false
	}
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-._~/", r):
		default:
			return false
		}
	}
	return !strings.Contains(p, "..") && !strings.Contains(p, "//")
}

func notVersionRune(r rune) bool {
	return !(r >= '0' && r <= '9') && r != '.'
}
