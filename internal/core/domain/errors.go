// Package domain defines the core types and business errors. No HTTP or
// storage details live here; the adapter layers translate both ways.
package domain

import "errors"

// Error kinds. Handlers match on these with errors.Is to pick a status code;
// the message carried by the concrete error is what callers see.
var (
	// ErrNotFound: a referenced account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument: the request violates a business rule
	// (non-positive amount, self-transfer, insufficient balance).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInternal: post-commit verification failed. This is a storage or
	// consistency bug, never a business-rule violation, and every effect of
	// the attempt has been rolled back by the time it surfaces.
	ErrInternal = errors.New("internal inconsistency")
)

// Error pairs a kind with a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap lets errors.Is match the kind sentinel.
func (e *Error) Unwrap() error { return e.Kind }

// NotFound builds a not-found error with the given message.
func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// InvalidArgument builds a validation error with the given message.
func InvalidArgument(msg string) error { return &Error{Kind: ErrInvalidArgument, Message: msg} }

// Internal builds a consistency error with the given message.
func Internal(msg string) error { return &Error{Kind: ErrInternal, Message: msg} }
