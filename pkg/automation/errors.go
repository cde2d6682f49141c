// Package automation implements the compiled-rule binary format: the
// string intern table, the JSON-to-binary compiler, and the fixed-layout
// serializer/deserializer described for compiled automations.
package automation

import "errors"

var (
	// ErrInvalidArgument indicates a caller-supplied value was out of range
	// or a required field was missing.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidFormat indicates a binary blob failed the magic, version,
	// or bounds checks during deserialization.
	ErrInvalidFormat = errors.New("invalid compiled-rule format")

	// ErrInvalidRule indicates a rule document failed semantic validation.
	// Use errors.As to retrieve the *CompileError carrying the stable
	// short reason string.
	ErrInvalidRule = errors.New("invalid rule document")

	// ErrOutOfMemory indicates a declared size in a compiled blob exceeds
	// the sanity ceiling this port enforces in place of an allocator
	// failure signal.
	ErrOutOfMemory = errors.New("compiled-rule buffer too large")

	// ErrCapacityExceeded indicates a rule document compiles to more
	// triggers, conditions, actions, or string-table bytes than the
	// store's static per-entry limits allow.
	ErrCapacityExceeded = errors.New("compiled rule exceeds static limits")
)

// CompileError carries the stable short reason string the compiler
// reports on a semantic validation miss; the reason names the offending
// field. It wraps ErrInvalidRule so callers can use errors.Is.
type CompileError struct {
	Reason string // stable short reason, e.g. "bad action.mireds"
}

func (e *CompileError) Error() string { return e.Reason }

func (e *CompileError) Unwrap() error { return ErrInvalidRule }

func invalidRule(reason string) error {
	return &CompileError{Reason: reason}
}
