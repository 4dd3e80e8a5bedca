// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package apperrors defines the error taxonomy shared across the concierge
// pipeline. Every component classifies failures into one of a fixed set of
// kinds so the orchestrator, the metrics collector, and the API layer can
// make policy decisions without inspecting provider-specific error strings.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error classification.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindRateLimit      Kind = "rate_limit"
	KindTimeout        Kind = "timeout"
	KindExternalAPI    Kind = "external_api"
	KindDatabase       Kind = "database"
	KindInternal       Kind = "internal"
)

// Severity indicates operational impact, used by alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FieldIssue describes a single field-level validation problem.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIDetails carries provider call context for external_api errors.
type APIDetails struct {
	Provider   string `json:"provider,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Error is the taxonomy error type. Origin names the component that raised
// it; Details and Fields are optional structured context.
type Error struct {
	Kind     Kind         `json:"kind"`
	Severity Severity     `json:"severity"`
	Origin   string       `json:"origin"`
	Message  string       `json:"message"`
	Fields   []FieldIssue `json:"fields,omitempty"`
	API      *APIDetails  `json:"api,omitempty"`
	Cause    error        `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Origin, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a taxonomy error with an explicit kind and severity.
func New(kind Kind, severity Severity, origin, message string) *Error {
	return &Error{Kind: kind, Severity: severity, Origin: origin, Message: message}
}

// Wrap creates a taxonomy error around an underlying cause.
func Wrap(kind Kind, severity Severity, origin, message string, cause error) *Error {
	return &Error{Kind: kind, Severity: severity, Origin: origin, Message: message, Cause: cause}
}

// Validation creates a validation error with field-level issues.
func Validation(origin, message string, fields ...FieldIssue) *Error {
	return &Error{Kind: KindValidation, Severity: SeverityLow, Origin: origin, Message: message, Fields: fields}
}

// Authentication creates an authentication error.
func Authentication(origin, message string) *Error {
	return &Error{Kind: KindAuthentication, Severity: SeverityHigh, Origin: origin, Message: message}
}

// NotFound creates a not_found error.
func NotFound(origin, message string) *Error {
	return &Error{Kind: KindNotFound, Severity: SeverityLow, Origin: origin, Message: message}
}

// RateLimit creates a rate_limit error.
func RateLimit(origin, message string) *Error {
	return &Error{Kind: KindRateLimit, Severity: SeverityMedium, Origin: origin, Message: message}
}

// Timeout creates a timeout error.
func Timeout(origin, message string) *Error {
	return &Error{Kind: KindTimeout, Severity: SeverityMedium, Origin: origin, Message: message}
}

// ExternalAPI creates an external_api error with provider call context.
func ExternalAPI(origin, message string, details *APIDetails, cause error) *Error {
	return &Error{
		Kind:     KindExternalAPI,
		Severity: SeverityMedium,
		Origin:   origin,
		Message:  message,
		API:      details,
		Cause:    cause,
	}
}

// Database creates a database error.
func Database(origin, message string, cause error) *Error {
	return &Error{Kind: KindDatabase, Severity: SeverityHigh, Origin: origin, Message: message, Cause: cause}
}

// Internal creates an internal error.
func Internal(origin, message string, cause error) *Error {
	return &Error{Kind: KindInternal, Severity: SeverityHigh, Origin: origin, Message: message, Cause: cause}
}

// KindOf reports the taxonomy kind of err. Non-taxonomy errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// SeverityOf reports the severity of err. Non-taxonomy errors are medium.
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityMedium
}

// IsKind reports whether err classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// WithSeverity returns a copy of e with the severity overridden.
func (e *Error) WithSeverity(severity Severity) *Error {
	clone := *e
	clone.Severity = severity
	return &clone
}
