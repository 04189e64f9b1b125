package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure. The kind drives retry policy in the
// upstream client, the HTTP status on the plain endpoints, and the
// user-facing message on the enveloped endpoints.
type ErrorKind string

const (
	// KindInvalidInput: the request supplied neither messages nor a usable
	// prompt, or is otherwise malformed. Client-caused, never retried.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindConfig: the service is missing its upstream credential.
	// Operator-caused, never retried.
	KindConfig ErrorKind = "configuration"
	// KindAuth: the upstream rejected the credential (401). Never retried.
	KindAuth ErrorKind = "upstream_auth"
	// KindTimeout: a transport timeout, or a response that arrived after the
	// business-layer timeout bound.
	KindTimeout ErrorKind = "timeout"
	// KindConnection: the upstream could not be reached.
	KindConnection ErrorKind = "connection"
	// KindUpstream: the upstream returned a non-auth error status.
	KindUpstream ErrorKind = "upstream"
	// KindMalformed: a success response missing the expected fields.
	KindMalformed ErrorKind = "malformed_response"
	// KindExhausted: every retry attempt failed.
	KindExhausted ErrorKind = "retries_exhausted"
	// KindInternal: an unclassified service-side fault.
	KindInternal ErrorKind = "internal"
)

// Error is a structured failure with a classified kind. The message is safe
// to surface to clients.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorResponse wraps an Error for JSON serialization as the top-level error
// response of the plain endpoints.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// KindOf extracts the kind from err, unwrapping as needed. Errors that are
// not *Error classify as KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// NewInvalidInputError creates an Error for malformed client input.
func NewInvalidInputError(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

// NewConfigError creates an Error for a missing or unusable service
// configuration value.
func NewConfigError(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// NewAuthError creates an Error for an upstream credential rejection.
func NewAuthError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// NewTimeoutError creates an Error for a transport or business-layer
// timeout.
func NewTimeoutError(message string) *Error {
	return &Error{Kind: KindTimeout, Message: message}
}

// NewConnectionError creates an Error for an unreachable upstream.
func NewConnectionError(message string) *Error {
	return &Error{Kind: KindConnection, Message: message}
}

// NewUpstreamError creates an Error for a non-auth upstream error status.
func NewUpstreamError(message string) *Error {
	return &Error{Kind: KindUpstream, Message: message}
}

// NewMalformedError creates an Error for an unparseable upstream success
// body.
func NewMalformedError(message string) *Error {
	return &Error{Kind: KindMalformed, Message: message}
}

// NewExhaustedError creates an Error for a retry budget spent without
// success.
func NewExhaustedError(message string) *Error {
	return &Error{Kind: KindExhausted, Message: message}
}

// NewInternalError creates an Error for an unclassified service fault.
func NewInternalError(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}
