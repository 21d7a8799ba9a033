// Package apperr defines the error kinds shared by every domain package.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it without knowing the domain.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindStateConflict
	KindPermissionDenied
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindPermissionDenied:
		return "permission_denied"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Two Errors match under errors.Is when kind and code agree,
// so a sentinel still matches after WithMessage or Wrap.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code && t.Kind == e.Kind
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e with err attached as the cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindStateConflict, code, message)
}

func Forbidden(code, message string) *Error {
	return New(KindPermissionDenied, code, message)
}

// ErrPersistence is the sentinel for store failures.
var ErrPersistence = New(KindPersistence, "PERSISTENCE_FAILURE", "storage operation failed")

// Persistence classifies err as a store failure unless it already carries a kind.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return ErrPersistence.Wrap(err)
}

// KindOf reports the kind of err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
