package sandbox

import (
	"context"
	"time"
)

// Role selects the entry point a fragment must define.
type Role string

const (
	// RoleHandler fragments define func Handle(args map[string]any) (any, error).
	RoleHandler Role = "handler"

	// RoleTransform fragments define func Transform(value any) (any, error).
	RoleTransform Role = "transform"

	// RoleOrchestration fragments define func Orchestrate(args map[string]any) (any, error).
	RoleOrchestration Role = "orchestration"
)

// Entry returns the name of the function the role requires.
func (r Role) Entry() string {
	switch r {
	case RoleTransform:
		return "Transform"
	case RoleOrchestration:
		return "Orchestrate"
	default:
		return "Handle"
	}
}

// Capability is the grant a fragment runs under.
type Capability int

const (
	// CapPure grants only data and utility primitives.
	CapPure Capability = iota

	// CapNetwork additionally grants host.Fetch, restricted to the
	// invocation's domain allowlist.
	CapNetwork
)

// String returns the capability name.
func (c Capability) String() string {
	if c == CapNetwork {
		return "network"
	}
	return "pure"
}

// Fragment is a unit of Go source carried as data.
type Fragment struct {
	// Name identifies the fragment in errors and traces.
	Name string

	// Role selects the entry point.
	Role Role

	// Source is the fragment text. A missing package clause is supplied.
	Source string
}

// ToolCaller invokes a tool by name on behalf of an orchestration fragment.
type ToolCaller func(ctx context.Context, name string, args map[string]any) (any, error)

// Invocation describes one fragment run.
type Invocation struct {
	Fragment Fragment

	// Input is passed to the entry point. Handler and orchestration inputs
	// must be JSON objects; nil is treated as an empty object.
	Input any

	Capability Capability

	// AllowedDomains bounds host.Fetch when Capability is CapNetwork.
	AllowedDomains []string

	// CallTool backs host.CallTool. It is only bound for orchestration fragments.
	CallTool ToolCaller
}

// ToolCallRecord captures one host.CallTool invocation made by an
// orchestration fragment.
type ToolCallRecord struct {
	// Tool is the name of the tool that was called.
	Tool string `json:"tool"`

	// Args contains the arguments passed to the tool.
	Args map[string]any `json:"args,omitempty"`

	// Result contains the value returned by a successful call.
	Result any `json:"result,omitempty"`

	// Error contains the error message if the call failed.
	Error string `json:"error,omitempty"`

	// DurationMs is the call time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// Result contains the outcome of a fragment run.
type Result struct {
	// Value is the entry point's return value normalized to JSON shapes.
	Value any `json:"value,omitempty"`

	// Stdout contains output written via host.Println.
	Stdout string `json:"stdout,omitempty"`

	// ToolCalls records host.CallTool invocations.
	ToolCalls []ToolCallRecord `json:"toolCalls,omitempty"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`
}
