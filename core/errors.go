package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// Kind classifies domain errors that are not validation failures.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
)

// Error is a domain error tagged with its Kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (err Error) Error() string { return err.Msg }

func NewUnauthorizedError(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }
func NewForbiddenError(msg string) error    { return &Error{Kind: KindForbidden, Msg: msg} }
func NewNotFoundError(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func NewConflictError(msg string) error     { return &Error{Kind: KindConflict, Msg: msg} }
func NewUnavailableError(msg string) error  { return &Error{Kind: KindUnavailable, Msg: msg} }

// IsKind reports whether the root cause of err is a domain Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := errors.Cause(err).(*Error)
	return ok && e.Kind == kind
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
