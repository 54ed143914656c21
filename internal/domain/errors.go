package domain

import (
	"context"
	"errors"
)

// Error taxonomy shared by every component. Wrap with fmt.Errorf("...: %w", ErrX)
// and classify with errors.Is.
var (
	// ErrConfiguration means credentials or settings are missing. Fatal for the action.
	ErrConfiguration = errors.New("configuration error")
	// ErrExtractionFailed means the extraction service failed or answered garbage.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrInvalidInput means the caller supplied something unusable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAdvisoryUnavailable means the insights call failed. Never fatal.
	ErrAdvisoryUnavailable = errors.New("advisory unavailable")
	// ErrNotFound means a record id is not in the store.
	ErrNotFound = errors.New("not found")
)

// ErrorKind names an error class for logs and API responses.
type ErrorKind string

const (
	KindConfiguration       ErrorKind = "ConfigurationError"
	KindExtractionFailed    ErrorKind = "ExtractionFailed"
	KindInvalidInput        ErrorKind = "InvalidInput"
	KindAdvisoryUnavailable ErrorKind = "AdvisoryUnavailable"
	KindNotFound            ErrorKind = "NotFound"
	KindCanceled            ErrorKind = "Canceled"
	KindInternal            ErrorKind = "Internal"
)

// KindOf classifies err. Unknown errors are Internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrExtractionFailed):
		return KindExtractionFailed
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrAdvisoryUnavailable):
		return KindAdvisoryUnavailable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
