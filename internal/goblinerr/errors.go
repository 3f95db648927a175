// Package goblinerr defines the shared error taxonomy surfaced at the
// runtime's core boundary: configuration failures, provider failures, tool
// permission denials, and the HTTP/parse errors the server maps to status
// codes.
package goblinerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories the runtime distinguishes at
// its boundary. Handlers switch on Kind rather than matching error strings.
type Kind string

const (
	KindConfiguration     Kind = "configuration_error"
	KindNoProvider        Kind = "no_provider_available"
	KindAgentNotFound     Kind = "agent_not_found"
	KindProviderTransport Kind = "provider_transport"
	KindProviderAuth      Kind = "provider_auth"
	KindProviderRateLimit Kind = "provider_rate_limited"
	KindProviderTimeout   Kind = "provider_timeout"
	KindProviderInvalid   Kind = "provider_invalid_response"
	KindToolTimeout       Kind = "tool_timeout"
	KindTaskFailed        Kind = "task_failed"
	KindParse             Kind = "parse_error"
	KindPermissionDenied  Kind = "permission_denied"
	KindUnauthorized      Kind = "unauthorized"
)

// Retryable reports whether a caller's retry policy should retry an error of
// this kind. Transport, timeout, and rate-limited provider failures are
// retryable; auth and invalid-response failures are not.
func (k Kind) Retryable() bool {
	switch k {
	case KindProviderTransport, KindProviderTimeout, KindProviderRateLimit:
		return true
	default:
		return false
	}
}

// GoblinError is a structured runtime error carrying a stable Kind plus the
// wrapped cause. All boundary errors in this module satisfy it.
type GoblinError struct {
	kind    Kind
	message string
	cause   error
}

// New builds a GoblinError with a message and no further context.
func New(kind Kind, message string) *GoblinError {
	return &GoblinError{kind: kind, message: message}
}

// Wrap builds a GoblinError that chains an underlying cause.
func Wrap(kind Kind, message string, cause error) *GoblinError {
	return &GoblinError{kind: kind, message: message, cause: cause}
}

func (e *GoblinError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *GoblinError) Unwrap() error { return e.cause }

// Kind returns the error's category.
func (e *GoblinError) Kind() Kind { return e.kind }

// As extracts a GoblinError and its Kind from an error chain, if present.
func As(err error) (*GoblinError, bool) {
	var ge *GoblinError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// GoblinError, or "" otherwise.
func KindOf(err error) Kind {
	if ge, ok := As(err); ok {
		return ge.kind
	}
	return ""
}

// ConfigurationError reports a fatal startup-time validation failure. It
// aggregates every problem found rather than stopping at the first.
type ConfigurationError struct {
	Errors []error
}

func (e *ConfigurationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %v", e.Errors[0])
	}
	return fmt.Sprintf("configuration error: %d problems found (first: %v)", len(e.Errors), e.Errors[0])
}

// NewConfigurationError builds a ConfigurationError from a non-empty error
// list, or returns nil if errs is empty.
func NewConfigurationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Errors: errs}
}
