// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"tripweaver/concierge/resilience"
)

// ManagerConfig controls the Manager's fallback and retry behavior.
type ManagerConfig struct {
	// RetryBudget is the maximum number of attempts per provider for
	// transient failures (rate limits, server errors). Minimum 1.
	RetryBudget int

	// RetryDelay is the fixed pause between same-provider retries.
	RetryDelay time.Duration

	// BreakerConfig configures the per-provider circuit breakers.
	BreakerConfig resilience.CircuitBreakerConfig
}

// DefaultManagerConfig returns sensible production defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		RetryBudget:   2,
		RetryDelay:    500 * time.Millisecond,
		BreakerConfig: resilience.DefaultCircuitBreakerConfig(),
	}
}

// Attempt records the outcome of a single provider call for observability.
type Attempt struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model,omitempty"`
	Success  bool          `json:"success"`
	Class    ErrorClass    `json:"error_class,omitempty"`
	Latency  time.Duration `json:"latency"`
	Usage    UsageStats    `json:"usage"`
}

// Manager routes completion requests across an ordered list of providers.
// The first provider is primary; subsequent providers are fallbacks tried
// in order when the primary fails. Transient failures are retried against
// the same provider within the retry budget, while authentication and
// invalid-request failures advance to the next provider immediately since
// retrying them cannot succeed. Each provider gets its own circuit breaker
// so a persistently failing provider is skipped without paying its timeout.
type Manager struct {
	providers []Provider
	breakers  map[string]*resilience.CircuitBreaker
	config    ManagerConfig

	// OnAttempt, when set, is invoked once per provider call, success or
	// failure. Used to feed per-attempt performance metrics.
	OnAttempt func(Attempt)
}

// NewManager creates a Manager over the given providers in fallback order.
func NewManager(config ManagerConfig, providers ...Provider) (*Manager, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("manager requires at least one provider")
	}
	if config.RetryBudget < 1 {
		config.RetryBudget = 1
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = resilience.NewCircuitBreaker(p.Name(), config.BreakerConfig)
	}
	return &Manager{
		providers: providers,
		breakers:  breakers,
		config:    config,
	}, nil
}

// Providers returns the provider names in fallback order.
func (m *Manager) Providers() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// BreakerState returns the circuit state for a provider, for health reporting.
func (m *Manager) BreakerState(provider string) (resilience.CircuitState, bool) {
	cb, ok := m.breakers[provider]
	if !ok {
		return resilience.CircuitClosed, false
	}
	return cb.State(), true
}

// Complete runs the request through the fallback chain and returns the
// first successful response. When every provider is exhausted the last
// error is returned.
func (m *Manager) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var lastErr error

	for _, provider := range m.providers {
		resp, err := m.completeWithRetry(ctx, provider, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		class := ClassifyError(err)
		log.Printf("[LLMManager] Provider %s failed (%s), advancing to fallback: %v",
			provider.Name(), class, err)
	}

	return nil, fmt.Errorf("all providers exhausted: %w", lastErr)
}

// completeWithRetry calls a single provider, retrying transient failures
// up to the retry budget. Non-retryable failures return immediately.
func (m *Manager) completeWithRetry(ctx context.Context, provider Provider, req *CompletionRequest) (*CompletionResponse, error) {
	cb := m.breakers[provider.Name()]
	var lastErr error

	for attempt := 1; attempt <= m.config.RetryBudget; attempt++ {
		resp, err := m.callOnce(ctx, cb, provider, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if err == resilience.ErrCircuitOpen {
			// The breaker rejected the call without reaching the provider;
			// retrying within the same window cannot change the outcome.
			return nil, err
		}

		pe, ok := err.(*ProviderError)
		if !ok || !pe.Retryable() {
			return nil, err
		}
		if attempt == m.config.RetryBudget {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.config.RetryDelay):
		}
	}

	return nil, lastErr
}

// callOnce performs a single breaker-guarded provider call and records
// the attempt outcome. Breaker rejections are not recorded as attempts
// since the provider was never reached.
func (m *Manager) callOnce(ctx context.Context, cb *resilience.CircuitBreaker, provider Provider, req *CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	start := time.Now()

	err := cb.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = provider.Complete(ctx, req)
		return callErr
	})
	if err == resilience.ErrCircuitOpen {
		return nil, err
	}

	attempt := Attempt{
		Provider: provider.Name(),
		Latency:  time.Since(start),
	}
	if err != nil {
		attempt.Class = ClassifyError(err)
		if m.OnAttempt != nil {
			m.OnAttempt(attempt)
		}
		return nil, err
	}

	attempt.Success = true
	attempt.Model = resp.Model
	attempt.Usage = resp.Usage
	if m.OnAttempt != nil {
		m.OnAttempt(attempt)
	}
	return resp, nil
}

// GenerateText is a convenience wrapper for single-prompt completions.
func (m *Manager) GenerateText(ctx context.Context, prompt, systemPrompt string, maxTokens int) (*CompletionResponse, error) {
	return m.Complete(ctx, &CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxTokens:    maxTokens,
	})
}

// Chat continues a conversation history with a new user message.
func (m *Manager) Chat(ctx context.Context, history []Message, userMessage, systemPrompt string) (*CompletionResponse, error) {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Content: userMessage})
	return m.Complete(ctx, &CompletionRequest{
		History:      msgs,
		SystemPrompt: systemPrompt,
	})
}

// GenerateJSON completes the request with a JSON-only instruction appended,
// strips markdown code fences from the output, unmarshals into a generic
// map, and verifies the required top-level fields are present. Parse and
// schema failures are surfaced as invalid_request errors carrying the raw
// model output for diagnosis.
func (m *Manager) GenerateJSON(ctx context.Context, req *CompletionRequest, requiredFields []string) (map[string]interface{}, *CompletionResponse, error) {
	jsonReq := *req
	jsonReq.Prompt = req.Prompt + "\n\nRespond with valid JSON only. No prose, no markdown."

	resp, err := m.Complete(ctx, &jsonReq)
	if err != nil {
		return nil, nil, err
	}

	cleaned := StripCodeFences(resp.Content)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, resp, &ProviderError{
			Provider:    resp.Provider,
			Class:       ErrorClassInvalidRequest,
			Message:     fmt.Sprintf("response is not valid JSON: %v", err),
			RawResponse: resp.Content,
			Cause:       err,
		}
	}

	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			return nil, resp, &ProviderError{
				Provider:    resp.Provider,
				Class:       ErrorClassInvalidRequest,
				Message:     fmt.Sprintf("response missing required field %q", field),
				RawResponse: resp.Content,
			}
		}
	}

	return parsed, resp, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or
// without a language tag, from model output. Text without fences is
// returned trimmed but otherwise untouched.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (e.g., "json").
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || isLanguageTag(first) {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) <= 12
}
