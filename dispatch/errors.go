package dispatch

import "errors"

// Sentinel errors for error classification.
var (
	// ErrUnknownTool indicates a call to a name the artifact does not expose.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMissingHandler indicates a routing entry or sub-tool call naming a
	// root tool that has no handler fragment.
	ErrMissingHandler = errors.New("missing root handler")

	// ErrInvalidInput indicates arguments rejected by the tool's input schema.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransform indicates a transform produced an unusable value.
	ErrTransform = errors.New("transform error")

	// ErrConfiguration indicates an invalid resolver configuration.
	ErrConfiguration = errors.New("configuration error")
)
