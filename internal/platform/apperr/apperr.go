// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for Coursehub.

Every failure that crosses a boundary (remote marketplace API, storage, HTTP)
is mapped into an [AppError] tagged with a [Kind]. The kind is the closed union
the rest of the code switches on:

  - KindAuth: a 401 from any endpoint. Clears the local session.
  - KindValidation: a 400-class rejection. Message is shown verbatim.
  - KindServer: a 5xx from upstream. Last-known-good state is kept.
  - KindNetwork: the request never reached the server.
  - KindTimeout: the request ran out of time. Handled like KindNetwork.

The remaining kinds (Forbidden, NotFound, Conflict, RateLimited, Internal) cover
this service's own HTTP surface.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an [AppError].
type Kind string

const (
	KindAuth        Kind = "auth"
	KindValidation  Kind = "validation"
	KindServer      Kind = "server"
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindRateLimited Kind = "rate_limited"
	KindInternal    Kind = "internal"
)

// AppError is the canonical error type for Coursehub.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details.
type AppError struct {
	// Kind is the taxonomy tag used for control flow.
	Kind Kind `json:"-"`
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "UPSTREAM_TIMEOUT").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// Retryable reports whether the failure is transient (server, network, timeout).
func (e *AppError) Retryable() bool {
	switch e.Kind {
	case KindServer, KindNetwork, KindTimeout:
		return true
	}
	return false
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
func NotFound(resource string) *AppError {
	return &AppError{
		Kind:       KindNotFound,
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Kind:       KindAuth,
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Kind:       KindForbidden,
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError].
func Conflict(msg string) *AppError {
	return &AppError{
		Kind:       KindConflict,
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Kind:       KindValidation,
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// PaymentRequired creates a 402 [AppError] for a payment that was refused or
// could not be verified. The message is shown to the user verbatim.
func PaymentRequired(msg string) *AppError {
	if msg == "" {
		msg = "Payment could not be verified"
	}
	return &AppError{
		Kind:       KindValidation,
		Code:       "PAYMENT_NOT_VERIFIED",
		Message:    msg,
		HTTPStatus: http.StatusPaymentRequired,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Kind:       KindRateLimited,
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Server & Upstream Errors

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Kind:       KindInternal,
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// Server creates an [AppError] for a 5xx answered by the upstream marketplace API.
// It is rendered to our own clients as 502.
func Server(upstreamStatus int, msg string) *AppError {
	if msg == "" {
		msg = "The course service is temporarily unavailable. Please try again."
	}
	return &AppError{
		Kind:       KindServer,
		Code:       "UPSTREAM_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadGateway,
		Cause:      fmt.Errorf("upstream status %d", upstreamStatus),
	}
}

// Network creates an [AppError] for a request that never reached the upstream server.
func Network(cause error) *AppError {
	return &AppError{
		Kind:       KindNetwork,
		Code:       "UPSTREAM_UNREACHABLE",
		Message:    "Could not reach the course service. Check your connection and try again.",
		HTTPStatus: http.StatusBadGateway,
		Cause:      cause,
	}
}

// Timeout creates an [AppError] for an upstream request that ran out of time.
func Timeout(cause error) *AppError {
	return &AppError{
		Kind:       KindTimeout,
		Code:       "UPSTREAM_TIMEOUT",
		Message:    "The course service took too long to respond. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError].
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Kind:       KindServer,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// KindOf returns the [Kind] of err. Errors outside the taxonomy are KindInternal;
// a nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ae := As(err); ae != nil {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
