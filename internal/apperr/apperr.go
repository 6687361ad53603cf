// Package apperr defines the typed error taxonomy shared across the
// ingestion pipeline, the query engine, and the HTTP layer. Every failure
// documented in the error handling design is a value of this type so the
// HTTP layer can map kinds to statuses in one table instead of inspecting
// error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind enumerates the stable, machine-readable error codes.
type Kind string

const (
	ValidationFailed    Kind = "ValidationFailed"
	Unauthorized        Kind = "Unauthorized"
	Forbidden           Kind = "Forbidden"
	NotFound            Kind = "NotFound"
	Conflict            Kind = "Conflict"
	PayloadTooLarge     Kind = "PayloadTooLarge"
	UnsupportedFormat   Kind = "UnsupportedFormat"
	CorruptInput        Kind = "CorruptInput"
	EmptyContent        Kind = "EmptyContent"
	RobotsDenied        Kind = "RobotsDenied"
	InsufficientContent Kind = "InsufficientContent"
	EmbeddingFailed     Kind = "EmbeddingFailed"
	ContextOverflow     Kind = "ContextOverflow"
	ProviderUnavailable Kind = "ProviderUnavailable"
	ProviderRejected    Kind = "ProviderRejected"
	RateLimited         Kind = "RateLimited"
	DomainNotAllowed    Kind = "DomainNotAllowed"
	Expired             Kind = "Expired"
	Cancelled           Kind = "Cancelled"
	Internal            Kind = "Internal"
)

// Error is a structured, typed application error.
type Error struct {
	Kind    Kind
	Message string
	// RetryAfterSeconds is set for RateLimited errors.
	RetryAfterSeconds int
	// BatchIndex and Cause are set for EmbeddingFailed errors.
	BatchIndex int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind, carrying cause for %w chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// RateLimitedErr builds a RateLimited error with the retry-after hint.
func RateLimitedErr(retryAfterSeconds int) *Error {
	return &Error{
		Kind:              RateLimited,
		Message:           "rate limit exceeded",
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// EmbeddingFailedErr builds an EmbeddingFailed error carrying the failing batch.
func EmbeddingFailedErr(batchIndex int, cause error) *Error {
	return &Error{
		Kind:       EmbeddingFailed,
		Message:    "embedding batch failed",
		BatchIndex: batchIndex,
		Cause:      cause,
	}
}

// As extracts an *Error from err, if any frame in its chain is one.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or a wrapped cause) is an *Error,
// else Internal.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}
