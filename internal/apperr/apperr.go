// Package apperr defines the structured error kinds surfaced by core
// operations. Callers receive a kind plus a human-readable message; internal
// causes stay wrapped underneath via eris.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind string

const (
	// KindValidation marks malformed input: out-of-range weight, missing
	// required field, dangling dimension reference. Always recoverable.
	KindValidation Kind = "validation"
	// KindNotFound marks an unknown entity id.
	KindNotFound Kind = "not_found"
	// KindInvalidState marks an illegal state transition, e.g. approving
	// an already-approved submission.
	KindInvalidState Kind = "invalid_state"
	// KindConflict marks a delete blocked by a referencing entity, or a
	// lost-update detected by optimistic versioning.
	KindConflict Kind = "conflict"
)

// Error is a classified operation failure.
type Error struct {
	Kind  Kind
	Field string // offending field for validation errors, else empty
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf builds a validation error for the given field.
func Validationf(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error for an entity id.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s not found: %s", entity, id)}
}

// InvalidStatef builds an illegal-transition error.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error naming the blocking reference.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvalidState reports whether err is an illegal-transition error.
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
