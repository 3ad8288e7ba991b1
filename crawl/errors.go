package crawl

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for error classification.
var (
	// ErrConnection indicates a stage address could not be reached.
	ErrConnection = errors.New("connection error")

	// ErrCycle indicates the upstream chain revisits an address.
	ErrCycle = errors.New("stage chain cycle")

	// ErrTooDeep indicates the chain exceeded the configured maximum depth.
	ErrTooDeep = errors.New("stage chain too deep")

	// ErrConfiguration indicates an invalid crawler configuration.
	ErrConfiguration = errors.New("configuration error")
)

// ConnectionError reports a failure to reach or talk to a stage.
type ConnectionError struct {
	Addr string
	Err  error
}

// Error returns the error message.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s: %v", e.Addr, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target.
// ConnectionError matches ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// CycleError reports an upstream pointer back to an address already visited.
type CycleError struct {
	// Addr is the repeated address.
	Addr string

	// Chain lists the addresses visited before the repeat, downstream first.
	Chain []string
}

// Error returns the error message.
func (e *CycleError) Error() string {
	return fmt.Sprintf("stage chain cycle: %s -> %s", strings.Join(e.Chain, " -> "), e.Addr)
}

// Is reports whether this error matches the target.
// CycleError matches ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}
