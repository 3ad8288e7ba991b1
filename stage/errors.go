package stage

import (
	"errors"
	"fmt"
)

// ErrProtocol indicates a malformed or incomplete stage metadata document.
var ErrProtocol = errors.New("protocol error")

// ProtocolError describes why a metadata document was rejected.
type ProtocolError struct {
	// Addr is the stage address the document came from, when known.
	Addr string

	// Field is the JSON path of the offending field, if any.
	Field string

	// Reason describes the violation.
	Reason string

	// Err is the underlying decode error, if any.
	Err error
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	msg := "protocol error"
	if e.Addr != "" {
		msg += " from " + e.Addr
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s: %s", msg, e.Field, e.Reason)
	} else {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target.
// ProtocolError matches ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func missing(field string) *ProtocolError {
	return &ProtocolError{Field: field, Reason: "required field missing"}
}
