// Package toolerr carries the error taxonomy (kinds, not types): Transport,
// Protocol, Schema, Registration, and Configuration errors, grounded on
// internal/agent/errors.go's ToolErrorType/ToolError shape.
package toolerr

import (
	"errors"
	"fmt"
)

// Kind classifies where in the system an error originated.
type Kind string

const (
	// KindTransport covers connect/send/receive failures against an
	// upstream MCP server. The pooled client is discarded; a later
	// acquire recreates it.
	KindTransport Kind = "transport"

	// KindProtocol covers a malformed MCP message or an unknown tool.
	// Non-fatal to the turn: surfaces as an error-flagged ToolResult.
	KindProtocol Kind = "protocol"

	// KindSchema covers tool arguments failing an input schema, whether
	// caught locally before dispatch or reported back by the server.
	// Treated as a protocol error for retry purposes.
	KindSchema Kind = "schema"

	// KindRegistration covers a duplicate tool name registered from a
	// different origin. The whole batch is rejected; no partial state.
	KindRegistration Kind = "registration"

	// KindConfiguration covers missing environment or a bad CLI
	// invocation. Fatal at startup.
	KindConfiguration Kind = "configuration"
)

// IsRetryable reports whether retrying the operation might succeed.
// Transport errors are retryable (a fresh dial may work); everything else
// reflects a durable condition.
func (k Kind) IsRetryable() bool {
	return k == KindTransport
}

// Error is a structured, kind-tagged error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind.
func New(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// Wrap constructs an Error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, a ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is a toolerr.Error whose Kind is
// retryable.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind.IsRetryable()
	}
	return false
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
