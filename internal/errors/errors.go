/*
Copyright 2026 Brightline Collections.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors defines the orchestrator's typed error taxonomy: a single
// AppError carrying a stable error code, an HTTP status mapping, and an
// optional underlying cause, so every layer from the resilience substrate up
// to the HTTP ingress can classify and report failures consistently.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies the kind of failure independent of any particular
// transport or storage technology.
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeBusinessRule    ErrorType = "business_rule"
	ErrorTypeWorkflow        ErrorType = "workflow"
	ErrorTypeAuth            ErrorType = "auth"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeConflict        ErrorType = "conflict"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeServiceUnavail  ErrorType = "service_unavailable"
	ErrorTypeExternalService ErrorType = "external_service"
	ErrorTypeDegradedService ErrorType = "degraded_service"
	ErrorTypeDatabase        ErrorType = "database"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeAIService       ErrorType = "ai_service"
	ErrorTypeInternal        ErrorType = "internal"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:      http.StatusBadRequest,
	ErrorTypeBusinessRule:    http.StatusUnprocessableEntity,
	ErrorTypeWorkflow:        http.StatusConflict,
	ErrorTypeAuth:            http.StatusUnauthorized,
	ErrorTypeNotFound:        http.StatusNotFound,
	ErrorTypeConflict:        http.StatusConflict,
	ErrorTypeTimeout:         http.StatusRequestTimeout,
	ErrorTypeRateLimit:       http.StatusTooManyRequests,
	ErrorTypeServiceUnavail:  http.StatusServiceUnavailable,
	ErrorTypeExternalService: http.StatusBadGateway,
	ErrorTypeDegradedService: http.StatusOK,
	ErrorTypeDatabase:        http.StatusInternalServerError,
	ErrorTypeNetwork:         http.StatusInternalServerError,
	ErrorTypeAIService:       http.StatusBadGateway,
	ErrorTypeInternal:        http.StatusInternalServerError,
}

// AppError is the core's single structured error type. Code follows the
// ORC_NNN[_TAG] convention from the error handling design.
type AppError struct {
	Type       ErrorType
	Code       string
	Message    string
	Details    string
	Cause      error
	StatusCode int
	RetryAfter time.Duration
	Correlation string
}

// New creates an AppError of the given type with the default status code.
func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusByType[t],
	}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap creates an AppError of the given type carrying an underlying cause.
func Wrap(cause error, t ErrorType, message string) *AppError {
	err := New(t, message)
	err.Cause = cause
	return err
}

// Wrapf creates a wrapped AppError with a formatted message.
func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

// WithDetails attaches extra context to an existing error, in place, and
// returns it for chaining.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf attaches formatted extra context.
func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// WithCode attaches a stable ORC_NNN[_TAG] error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithRetryAfter propagates a downstream Retry-After hint.
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	e.RetryAfter = d
	return e
}

// WithCorrelation attaches the ingress-assigned correlation id.
func (e *AppError) WithCorrelation(id string) *AppError {
	e.Correlation = id
	return e
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Predefined constructors for the most common cases.

func Validation(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func BusinessRule(message string) *AppError {
	return New(ErrorTypeBusinessRule, message)
}

func WorkflowState(message string) *AppError {
	return New(ErrorTypeWorkflow, message)
}

// ServiceUnavailable is produced by the circuit breaker when it short-circuits
// a call; it carries the breaker's name so callers can report which
// dependency is degraded.
func ServiceUnavailable(service string) *AppError {
	return Newf(ErrorTypeServiceUnavail, "service unavailable: %s", service).WithCode("ORC_503_CB_OPEN")
}

func ExternalService(service string, statusCode int, cause error) *AppError {
	err := Wrapf(cause, ErrorTypeExternalService, "external service %s returned status %d", service, statusCode)
	err.StatusCode = statusCode
	return err
}

func DegradedService(service string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDegradedService, "served via fallback for %s", service)
}

func Database(message string, cause error) *AppError {
	return Wrap(cause, ErrorTypeDatabase, message)
}

func AIServiceTimeout(provider string) *AppError {
	return Newf(ErrorTypeAIService, "%s: request timed out", provider).WithCode("ORC_504_AI_TIMEOUT")
}

func AIServiceRateLimit(provider string, retryAfter time.Duration) *AppError {
	return Newf(ErrorTypeAIService, "%s: rate limited", provider).
		WithCode("ORC_429_AI_RATE_LIMIT").
		WithRetryAfter(retryAfter)
}

func AIServiceAuthentication(provider string) *AppError {
	return Newf(ErrorTypeAIService, "%s: authentication failed", provider).WithCode("ORC_401_AI_AUTH")
}

// AlreadyActioned reports a second manager action on an already-terminal
// approval queue entry.
func AlreadyActioned(queueID string) *AppError {
	return Newf(ErrorTypeConflict, "queue entry %s already actioned", queueID).WithCode("ORC_409_ALREADY_ACTIONED")
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Type == t
}

// As extracts an *AppError from err, if it is one.
func As(err error) (*AppError, bool) {
	ae, ok := err.(*AppError)
	return ae, ok
}
