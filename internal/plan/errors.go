package plan

import (
	"errors"
	"fmt"
)

// Error is a categorized failure of the sync core.
//
// Errors include:
//   - Payload too large: state does not fit the token budget even after truncation
//   - Malformed token: text could not be reversed or parsed as JSON
//   - Unknown shape: JSON matched neither the compact nor the legacy payload
//   - Storage unavailable: persistence read or write failed
//   - Transport unavailable: link or clipboard access failed
//
// None of these is fatal. Callers keep the previous valid state.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes sync core errors.
type ErrorCode string

const (
	ErrCodePayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeMalformedToken       ErrorCode = "MALFORMED_TOKEN"
	ErrCodeUnknownShape         ErrorCode = "UNKNOWN_SHAPE"
	ErrCodeStorageUnavailable   ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeTransportUnavailable ErrorCode = "TRANSPORT_UNAVAILABLE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsPayloadTooLarge returns true if err is a PAYLOAD_TOO_LARGE error.
// Uses errors.As to handle wrapped errors.
func IsPayloadTooLarge(err error) bool {
	return CodeOf(err) == ErrCodePayloadTooLarge
}

// IsDecodeError returns true if err is a MALFORMED_TOKEN or UNKNOWN_SHAPE error.
func IsDecodeError(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeMalformedToken || code == ErrCodeUnknownShape
}

// IsStorageUnavailable returns true if err is a STORAGE_UNAVAILABLE error.
func IsStorageUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeStorageUnavailable
}

// IsTransportUnavailable returns true if err is a TRANSPORT_UNAVAILABLE error.
func IsTransportUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeTransportUnavailable
}
