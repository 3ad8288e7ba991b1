package synth

import (
	"errors"
	"strings"
)

// Sentinel errors for error classification.
var (
	// ErrValidation indicates reference inconsistencies across stages.
	// It is only raised in strict mode.
	ErrValidation = errors.New("validation error")

	// ErrConfiguration indicates invalid synthesis options.
	ErrConfiguration = errors.New("configuration error")
)

// ValidationError lists every cross-stage inconsistency found in one run.
type ValidationError struct {
	Problems []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return "validation error: " + strings.Join(e.Problems, "; ")
}

// Is reports whether this error matches the target.
// ValidationError matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
