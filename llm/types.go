// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package llm provides a unified interface and types for LLM providers.
// It defines the common abstractions used by every agent in the concierge,
// enabling pluggable provider implementations with automatic fallback.
package llm

import (
	"fmt"
	"net/http"
	"time"
)

// ProviderType identifies the type of LLM provider.
type ProviderType string

const (
	// ProviderTypeAnthropic represents Anthropic's Claude models.
	ProviderTypeAnthropic ProviderType = "anthropic"

	// ProviderTypeOpenAI represents OpenAI's GPT models.
	ProviderTypeOpenAI ProviderType = "openai"

	// ProviderTypeBedrock represents AWS Bedrock managed models.
	ProviderTypeBedrock ProviderType = "bedrock"
)

// Message is a single turn in a conversation history.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// CompletionRequest encapsulates all parameters for an LLM completion.
// This is the unified request type used across all providers.
type CompletionRequest struct {
	// Prompt is the user's input text. Ignored when History is non-empty
	// and already ends with a user turn.
	Prompt string `json:"prompt"`

	// History is the optional preceding conversation.
	History []Message `json:"history,omitempty"`

	// SystemPrompt is an optional system message that sets behavior.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the response length. 0 uses provider defaults.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64 `json:"temperature,omitempty"`

	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`
}

// CompletionResponse contains the result of an LLM completion.
type CompletionResponse struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model is the actual model used (may differ from requested).
	Model string `json:"model"`

	// Provider is the name of the provider that served the request.
	Provider string `json:"provider"`

	// Usage contains token usage statistics.
	Usage UsageStats `json:"usage"`

	// Latency is the time taken to generate the response.
	Latency time.Duration `json:"latency"`
}

// UsageStats tracks token usage for cost accounting and monitoring.
type UsageStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorClass is the provider-independent classification of a call failure.
// The Manager's fallback policy keys off this, never off provider-specific
// error strings.
type ErrorClass string

const (
	ErrorClassAuthentication      ErrorClass = "authentication"
	ErrorClassRateLimit           ErrorClass = "rate_limit"
	ErrorClassInvalidRequest      ErrorClass = "invalid_request"
	ErrorClassServerError         ErrorClass = "server_error"
	ErrorClassProviderUnavailable ErrorClass = "provider_unavailable"
	ErrorClassUnknown             ErrorClass = "unknown"
)

// ProviderError represents an error from an LLM provider.
type ProviderError struct {
	// Provider is the name of the provider that returned the error.
	Provider string `json:"provider"`

	// Class is the normalized error classification.
	Class ErrorClass `json:"class"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// StatusCode is the HTTP status code (if applicable).
	StatusCode int `json:"status_code,omitempty"`

	// RawResponse carries the offending provider output, when the failure
	// was a parse or schema problem, for diagnosis.
	RawResponse string `json:"raw_response,omitempty"`

	// Cause is the underlying error (if any).
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d, %s): %s", e.Provider, e.StatusCode, e.Class, e.Message)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Provider, e.Class, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether retrying the same provider can help.
func (e *ProviderError) Retryable() bool {
	switch e.Class {
	case ErrorClassRateLimit, ErrorClassServerError:
		return true
	}
	return false
}

// NewProviderError creates a ProviderError with the given classification.
func NewProviderError(provider string, class ErrorClass, message string) *ProviderError {
	return &ProviderError{Provider: provider, Class: class, Message: message}
}

// ClassifyStatusCode maps an HTTP status code to an error class.
func ClassifyStatusCode(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusServiceUnavailable:
		return ErrorClassProviderUnavailable
	case status >= 500:
		return ErrorClassServerError
	case status >= 400:
		return ErrorClassInvalidRequest
	default:
		return ErrorClassUnknown
	}
}

// ClassifyError normalizes any provider error into an ErrorClass.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	if pe, ok := err.(*ProviderError); ok {
		return pe.Class
	}
	return ErrorClassUnknown
}
