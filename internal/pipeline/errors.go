package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors for transport mapping
type Kind string

const (
	KindConfiguration     Kind = "configuration_error"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindValidation        Kind = "validation_error"
	KindDetectorFault     Kind = "detector_fault"
	KindRateLimitExceeded Kind = "rate_limit_exceeded"
	KindTimeout           Kind = "timeout"
)

// Error carries a classification alongside the underlying cause
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors report as detector faults, the conservative default.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindDetectorFault
}
