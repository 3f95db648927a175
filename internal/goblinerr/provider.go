package goblinerr

import (
	"net/http"
	"strings"
)

// ProviderError is the structured failure type every llm.Provider
// implementation returns for generation failures. Its Kind classifies
// whether the caller's retry policy should retry.
type ProviderError struct {
	kind     Kind
	Provider string
	Model    string
	Status   int
	Cause    error
}

func (e *ProviderError) Error() string {
	msg := string(e.kind)
	if e.Provider != "" {
		msg += " provider=" + e.Provider
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func (e *ProviderError) Kind() Kind { return e.kind }

// NewProviderError classifies cause into a ProviderError using status code
// first, falling back to message heuristics when the status code does not
// determine a kind.
func NewProviderError(provider, model string, status int, cause error) *ProviderError {
	kind := classifyStatus(status)
	if kind == "" {
		kind = classifyMessage(cause)
	}
	return &ProviderError{kind: kind, Provider: provider, Model: model, Status: status, Cause: cause}
}

func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindProviderAuth
	case status == http.StatusTooManyRequests:
		return KindProviderRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindProviderTimeout
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindProviderInvalid
	case status >= 500:
		return KindProviderTransport
	default:
		return ""
	}
}

func classifyMessage(err error) Kind {
	if err == nil {
		return KindProviderTransport
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return KindProviderTimeout
	case strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests"):
		return KindProviderRateLimit
	case strings.Contains(s, "unauthorized") || strings.Contains(s, "invalid api key") || strings.Contains(s, "authentication"):
		return KindProviderAuth
	case strings.Contains(s, "invalid") || strings.Contains(s, "malformed"):
		return KindProviderInvalid
	default:
		return KindProviderTransport
	}
}

// IsRetryable reports whether err (a *ProviderError or any error) should be
// retried per the caller's retry policy.
func IsRetryable(err error) bool {
	if pe, ok := err.(*ProviderError); ok {
		return pe.kind.Retryable()
	}
	return KindOf(err).Retryable()
}
