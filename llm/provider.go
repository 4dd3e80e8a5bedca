// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package llm

import "context"

// Provider defines the interface that all LLM provider implementations
// must satisfy. Implementations translate the unified request/response
// types to and from their native wire formats and classify their errors
// into ProviderError values.
type Provider interface {
	// Name returns the provider's identifier (e.g., "anthropic", "openai").
	Name() string

	// Complete generates a completion for the given request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// IsHealthy checks if the provider is available and responsive.
	IsHealthy(ctx context.Context) bool

	// EstimateCost returns the estimated cost in USD for the request.
	EstimateCost(req *CompletionRequest) float64
}
