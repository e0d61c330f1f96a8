// Package apperr defines the error taxonomy shared by the store, the
// inference compiler and the scalar codecs. Callers match on kind with
// errors.Is against the sentinel values, or read it with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindTypeMismatch        Kind = "type_mismatch"
	KindInvalidRule         Kind = "invalid_rule"
	KindReferentialConflict Kind = "referential_conflict"
	KindEncoding            Kind = "encoding"
	KindDuplicate           Kind = "duplicate" // unique label already taken
)

// Error is a typed failure with an optional wrapped cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, apperr.ErrNotFound) matches any not-found failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrTypeMismatch        = &Error{Kind: KindTypeMismatch, Message: "type mismatch"}
	ErrInvalidRule         = &Error{Kind: KindInvalidRule, Message: "invalid rule"}
	ErrReferentialConflict = &Error{Kind: KindReferentialConflict, Message: "referential conflict"}
	ErrEncoding            = &Error{Kind: KindEncoding, Message: "encoding error"}
	ErrDuplicate           = &Error{Kind: KindDuplicate, Message: "duplicate"}
)

// New creates an error of the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause. The result has
// exactly one kind: kinds already in the cause's chain are hidden from
// errors.Is, errors.As and KindOf. The cause's text and any untyped root
// cause stay reachable.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if KindOf(err) != "" {
		err = untyped{err}
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// untyped shows a typed chain as plain text, unwrapping past every *Error
// layer to the causes beneath it
type untyped struct {
	err error
}

func (u untyped) Error() string {
	return u.err.Error()
}

func (u untyped) Unwrap() error {
	var e *Error
	if !errors.As(u.err, &e) {
		return u.err
	}
	if e.Err == nil {
		return nil
	}
	return untyped{e.Err}
}

// NotFound reports that an id of the given entity kind has no backing row
func NotFound(entity string, id int64) *Error {
	return New(KindNotFound, "%s %d not found", entity, id)
}

// TypeMismatch reports a value whose shape disagrees with a data type
func TypeMismatch(format string, args ...any) *Error {
	return New(KindTypeMismatch, format, args...)
}

// InvalidRule reports a malformed or non-compilable inference rule
func InvalidRule(format string, args ...any) *Error {
	return New(KindInvalidRule, format, args...)
}

// ReferentialConflict reports a delete blocked by live references
func ReferentialConflict(format string, args ...any) *Error {
	return New(KindReferentialConflict, format, args...)
}

// Encoding reports a scalar that fails type-specific validation
func Encoding(format string, args ...any) *Error {
	return New(KindEncoding, format, args...)
}

// Duplicate reports a unique name that is already in use
func Duplicate(format string, args ...any) *Error {
	return New(KindDuplicate, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
