// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package derrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Code identifies a domain error variant. Codes are stable and part of the
// wire contract, they should never be renamed.
type Code string

const (
	CodeResourceNotFound   Code = "RESOURCE_NOT_FOUND"
	CodeResourceExists     Code = "RESOURCE_EXISTS"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeValidation         Code = "VALIDATION"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeAuthenticationFail Code = "AUTHENTICATION_FAILED"
	CodeAuthorizationFail  Code = "AUTHORIZATION_FAILED"
	CodeTimeout            Code = "TIMEOUT"
	CodeCircuitBreakerOpen Code = "CIRCUIT_BREAKER_OPEN"
	CodeConfiguration      Code = "CONFIGURATION"
	CodeMedia              Code = "MEDIA"
	CodeNetwork            Code = "NETWORK"
	CodeInternal           Code = "INTERNAL"
)

var names = map[Code]string{
	CodeResourceNotFound:   "ResourceNotFoundError",
	CodeResourceExists:     "ResourceExistsError",
	CodeInvalidState:       "InvalidStateError",
	CodeValidation:         "ValidationError",
	CodeRateLimitExceeded:  "RateLimitExceededError",
	CodeAuthenticationFail: "AuthenticationError",
	CodeAuthorizationFail:  "AuthorizationError",
	CodeTimeout:            "TimeoutError",
	CodeCircuitBreakerOpen: "CircuitBreakerOpenError",
	CodeConfiguration:      "ConfigurationError",
	CodeMedia:              "MediaError",
	CodeNetwork:            "NetworkError",
	CodeInternal:           "InternalError",
}

// Error is a structured domain error carrying a stable code, a human
// readable message and optional context for logging and serialization.
type Error struct {
	Code    Code
	Message string
	Context map[string]any

	wrapped error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Name returns the error's variant name (e.g. "ResourceNotFoundError").
func (e *Error) Name() string {
	if name := names[e.Code]; name != "" {
		return name
	}
	return names[CodeInternal]
}

// WithContext returns a copy of the error with the given key set in its
// context map. The receiver is not modified.
func (e *Error) WithContext(key string, value any) *Error {
	clone := *e
	clone.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		clone.Context[k] = v
	}
	clone.Context[key] = value
	return &clone
}

// ToJSON serializes the error to its wire shape.
func (e *Error) ToJSON() ([]byte, error) {
	out := struct {
		Name    string         `json:"name"`
		Code    Code           `json:"code"`
		Message string         `json:"message"`
		Context map[string]any `json:"context,omitempty"`
	}{
		Name:    e.Name(),
		Code:    e.Code,
		Message: e.Message,
		Context: e.Context,
	}
	return json.Marshal(&out)
}

func newError(code Code, msg string) *Error {
	return &Error{
		Code:    code,
		Message: msg,
	}
}

func NewResourceNotFound(resource, id string) *Error {
	return newError(CodeResourceNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).WithContext("id", id)
}

func NewResourceExists(resource, id string) *Error {
	return newError(CodeResourceExists, fmt.Sprintf("%s already exists", resource)).
		WithContext("resource", resource).WithContext("id", id)
}

func NewInvalidState(msg string) *Error {
	return newError(CodeInvalidState, msg)
}

func NewValidation(msg string) *Error {
	return newError(CodeValidation, msg)
}

// NewRateLimitExceeded carries the time after which the caller may retry.
func NewRateLimitExceeded(retryAfter time.Duration) *Error {
	return newError(CodeRateLimitExceeded, "rate limit exceeded").
		WithContext("retryAfter", retryAfter.Milliseconds())
}

func NewAuthenticationFailed(msg string) *Error {
	return newError(CodeAuthenticationFail, msg)
}

func NewAuthorizationFailed(msg string) *Error {
	return newError(CodeAuthorizationFail, msg)
}

func NewTimeout(op string, timeout time.Duration) *Error {
	return newError(CodeTimeout, fmt.Sprintf("%s timed out", op)).
		WithContext("timeoutMs", timeout.Milliseconds())
}

func NewCircuitBreakerOpen(name string) *Error {
	return newError(CodeCircuitBreakerOpen, "circuit breaker is open").
		WithContext("name", name)
}

func NewConfiguration(msg string) *Error {
	return newError(CodeConfiguration, msg)
}

func NewMedia(msg string) *Error {
	return newError(CodeMedia, msg)
}

func NewNetwork(msg string) *Error {
	return newError(CodeNetwork, msg)
}

func NewInternal(msg string) *Error {
	return newError(CodeInternal, msg)
}

// ToDomainError normalizes any error into a domain error. Domain errors are
// returned as-is, anything else is wrapped as Internal with the original
// error kind recorded in context.
func ToDomainError(err error) *Error {
	if err == nil {
		return nil
	}

	var derr *Error
	if errors.As(err, &derr) {
		return derr
	}

	wrapped := newError(CodeInternal, err.Error()).
		WithContext("cause", fmt.Sprintf("%T", err))
	wrapped.wrapped = err

	return wrapped
}
