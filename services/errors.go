package services

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-checkable category of an engine error.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindGenerationExhausted ErrorKind = "generation_exhausted"
	KindAlreadyFinal        ErrorKind = "already_final"
	KindNoStatusChange      ErrorKind = "no_status_change"
	KindSubmissionClosed    ErrorKind = "submission_closed"
	KindEmailMismatch       ErrorKind = "email_mismatch"
	KindWindowExpired       ErrorKind = "window_expired"
	KindNotPending          ErrorKind = "not_pending"
	KindInvalidStatus       ErrorKind = "invalid_status"
	KindValidation          ErrorKind = "validation"
	KindDuplicate           ErrorKind = "duplicate"
	KindUnauthorized        ErrorKind = "unauthorized"
	// KindInternal marks a bulk item that failed on a store or context
	// error. It is never returned as an *Error.
	KindInternal ErrorKind = "internal"
)

// Error is returned for every expected failure of an engine operation. Reason
// is safe to show to the caller.
type Error struct {
	Kind   ErrorKind
	Reason string
	// Reference of an existing application, set for duplicates.
	ExistingReference string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches on kind so callers can use the sentinels below with errors.Is.
// A NoStatusChange error also matches ErrAlreadyFinal: repeating a decision
// is a special case of touching a decided application.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindNoStatusChange && t.Kind == KindAlreadyFinal
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrGenerationExhausted = &Error{Kind: KindGenerationExhausted}
	ErrAlreadyFinal        = &Error{Kind: KindAlreadyFinal}
	ErrNoStatusChange      = &Error{Kind: KindNoStatusChange}
	ErrSubmissionClosed    = &Error{Kind: KindSubmissionClosed}
	ErrEmailMismatch       = &Error{Kind: KindEmailMismatch}
	ErrWindowExpired       = &Error{Kind: KindWindowExpired}
	ErrNotPending          = &Error{Kind: KindNotPending}
	ErrInvalidStatus       = &Error{Kind: KindInvalidStatus}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrDuplicate           = &Error{Kind: KindDuplicate}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
)

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func notFound(reference string) *Error {
	return newError(KindNotFound, "application %s not found", reference)
}
