package sandbox

import (
	"errors"
	"fmt"
)

// Sentinel errors for error classification.
var (
	// ErrSandbox matches every SandboxError regardless of kind.
	ErrSandbox = errors.New("sandbox error")

	// ErrTimeout indicates a fragment ran past its wall-clock bound.
	ErrTimeout = errors.New("fragment timed out")

	// ErrFragmentException indicates a fragment failed to compile, returned
	// an error, panicked, or produced an unusable result.
	ErrFragmentException = errors.New("fragment exception")

	// ErrCapability indicates a fragment attempted an operation it was not
	// granted, such as fetching a host outside the domain allowlist.
	ErrCapability = errors.New("capability denied")

	// ErrConfiguration indicates an invalid executor configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrLimitExceeded indicates that an execution limit was reached,
	// such as the maximum number of tool calls.
	ErrLimitExceeded = errors.New("limit exceeded")
)

// ErrorKind classifies a SandboxError.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindFragmentException ErrorKind = "fragment-exception"
)

// SandboxError is returned when a fragment times out or fails.
type SandboxError struct {
	// Kind is the failure class.
	Kind ErrorKind

	// Fragment names the fragment that failed.
	Fragment string

	// Message describes the failure.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the error message.
func (e *SandboxError) Error() string {
	msg := fmt.Sprintf("sandbox %s in %s", e.Kind, e.Fragment)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *SandboxError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target.
// SandboxError matches ErrSandbox and the sentinel for its kind.
func (e *SandboxError) Is(target error) bool {
	switch target {
	case ErrSandbox:
		return true
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrFragmentException:
		return e.Kind == KindFragmentException
	}
	return false
}

// CapabilityError is returned when a fragment uses a capability outside its
// grant. The check runs before any side effect.
type CapabilityError struct {
	// Fragment names the fragment that made the attempt.
	Fragment string

	// Capability is the capability involved ("network" or "call-tool").
	Capability string

	// Target is the host or tool the fragment tried to reach.
	Target string

	// Reason describes why the attempt was denied.
	Reason string
}

// Error returns the error message.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s denied for %s: %s: %s", e.Capability, e.Fragment, e.Target, e.Reason)
}

// Is reports whether this error matches the target.
// CapabilityError matches ErrCapability.
func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapability
}
