package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every cross-component failure into a closed set so
// callers can branch on class instead of string matching.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindTransientUpstream ErrorKind = "transient_upstream"
	KindPermanentUpstream ErrorKind = "permanent_upstream"
	KindPrecondition      ErrorKind = "precondition"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindCancelled         ErrorKind = "cancelled"
	KindInternal          ErrorKind = "internal"
)

// AppError is the error type carried across service boundaries.
type AppError struct {
	Kind    ErrorKind
	Op      string // operation that failed, e.g. "findata.complete_data"
	Message string
	Err     error
}

func (e *AppError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on kind so errors.Is(err, &AppError{Kind: KindNotFound}) works.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// E builds an AppError.
func E(kind ErrorKind, op, message string) *AppError {
	return &AppError{Kind: kind, Op: op, Message: message}
}

// Wrap builds an AppError around a cause.
func Wrap(kind ErrorKind, op string, err error) *AppError {
	return &AppError{Kind: kind, Op: op, Err: err}
}

// Wrapf builds an AppError around a cause with a message.
func Wrapf(kind ErrorKind, op string, err error, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from any error chain; non-AppError chains are
// internal.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the failure class is worth retrying.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientUpstream
}

// IsNotFound reports whether an error chain is a not_found failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
