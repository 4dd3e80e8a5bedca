// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tripweaver/concierge/resilience"
)

// mockProvider returns scripted results in sequence, then repeats the last.
type mockProvider struct {
	name    string
	mu      sync.Mutex
	results []mockResult
	calls   int
}

type mockResult struct {
	content string
	err     error
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	m.calls++

	r := m.results[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &CompletionResponse{
		Content:  r.content,
		Model:    "mock-model",
		Provider: m.name,
		Usage:    UsageStats{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (m *mockProvider) IsHealthy(ctx context.Context) bool   { return true }
func (m *mockProvider) EstimateCost(req *CompletionRequest) float64 { return 0.001 }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func fastConfig() ManagerConfig {
	return ManagerConfig{
		RetryBudget: 2,
		RetryDelay:  5 * time.Millisecond,
		BreakerConfig: resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     50 * time.Millisecond,
		},
	}
}

func TestManagerPrimarySuccess(t *testing.T) {
	primary := &mockProvider{name: "primary", results: []mockResult{{content: "hello"}}}
	fallback := &mockProvider{name: "fallback", results: []mockResult{{content: "unused"}}}

	m, err := NewManager(fastConfig(), primary, fallback)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	resp, err := m.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("expected primary content, got %q", resp.Content)
	}
	if fallback.callCount() != 0 {
		t.Errorf("fallback should not be called, got %d calls", fallback.callCount())
	}
}

func TestManagerAuthFailureSkipsRetry(t *testing.T) {
	authErr := NewProviderError("primary", ErrorClassAuthentication, "bad key")
	primary := &mockProvider{name: "primary", results: []mockResult{{err: authErr}}}
	fallback := &mockProvider{name: "fallback", results: []mockResult{{content: "rescued"}}}

	var attempts []Attempt
	m, _ := NewManager(fastConfig(), primary, fallback)
	m.OnAttempt = func(a Attempt) { attempts = append(attempts, a) }

	resp, err := m.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "rescued" {
		t.Errorf("expected fallback content, got %q", resp.Content)
	}
	// Auth errors must not be retried against the same provider.
	if primary.callCount() != 1 {
		t.Errorf("primary should be called exactly once, got %d", primary.callCount())
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts recorded, got %d", len(attempts))
	}
	if attempts[0].Success || attempts[0].Class != ErrorClassAuthentication {
		t.Errorf("first attempt should be failed auth, got %+v", attempts[0])
	}
	if !attempts[1].Success || attempts[1].Provider != "fallback" {
		t.Errorf("second attempt should be fallback success, got %+v", attempts[1])
	}
}

func TestManagerRetriesRateLimit(t *testing.T) {
	rateErr := NewProviderError("primary", ErrorClassRateLimit, "slow down")
	primary := &mockProvider{name: "primary", results: []mockResult{
		{err: rateErr},
		{content: "second try"},
	}}

	m, _ := NewManager(fastConfig(), primary)

	start := time.Now()
	resp, err := m.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "second try" {
		t.Errorf("expected retry to succeed, got %q", resp.Content)
	}
	if primary.callCount() != 2 {
		t.Errorf("expected 2 calls, got %d", primary.callCount())
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("retry should pause for the configured delay, elapsed %v", elapsed)
	}
}

func TestManagerExhaustionReturnsLastError(t *testing.T) {
	srvErr := NewProviderError("only", ErrorClassServerError, "boom")
	only := &mockProvider{name: "only", results: []mockResult{{err: srvErr}}}

	m, _ := NewManager(fastConfig(), only)

	_, err := m.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected wrapped ProviderError, got %T: %v", err, err)
	}
	if pe.Class != ErrorClassServerError {
		t.Errorf("expected last error class server_error, got %s", pe.Class)
	}
	// Retry budget of 2 means exactly 2 calls.
	if only.callCount() != 2 {
		t.Errorf("expected 2 calls, got %d", only.callCount())
	}
}

func TestManagerBreakerSkipsOpenProvider(t *testing.T) {
	srvErr := NewProviderError("flaky", ErrorClassServerError, "boom")
	flaky := &mockProvider{name: "flaky", results: []mockResult{{err: srvErr}}}
	stable := &mockProvider{name: "stable", results: []mockResult{{content: "ok"}}}

	cfg := fastConfig()
	cfg.RetryBudget = 1
	m, _ := NewManager(cfg, flaky, stable)

	// Trip the breaker: threshold 3 failures.
	for i := 0; i < 3; i++ {
		if _, err := m.Complete(context.Background(), &CompletionRequest{Prompt: "hi"}); err != nil {
			t.Fatalf("fallback should rescue request %d: %v", i, err)
		}
	}
	if state, _ := m.BreakerState("flaky"); state != resilience.CircuitOpen {
		t.Fatalf("expected flaky breaker open, got %s", state)
	}

	before := flaky.callCount()
	if _, err := m.Complete(context.Background(), &CompletionRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("Complete with open breaker: %v", err)
	}
	if flaky.callCount() != before {
		t.Errorf("open breaker should short-circuit flaky provider")
	}
}

func TestGenerateJSON(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		required []string
		wantErr  bool
	}{
		{
			name:     "plain json",
			content:  `{"title": "Tokyo Trip", "days": 3}`,
			required: []string{"title", "days"},
		},
		{
			name:     "fenced json",
			content:  "```json\n{\"title\": \"Tokyo Trip\"}\n```",
			required: []string{"title"},
		},
		{
			name:     "missing field",
			content:  `{"title": "Tokyo Trip"}`,
			required: []string{"title", "days"},
			wantErr:  true,
		},
		{
			name:    "not json",
			content: "Sure! Here is your itinerary:",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{name: "p", results: []mockResult{{content: tt.content}}}
			m, _ := NewManager(fastConfig(), p)

			parsed, resp, err := m.GenerateJSON(context.Background(), &CompletionRequest{Prompt: "plan"}, tt.required)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				var pe *ProviderError
				if !errors.As(err, &pe) {
					t.Fatalf("expected ProviderError, got %T", err)
				}
				if pe.Class != ErrorClassInvalidRequest {
					t.Errorf("expected invalid_request, got %s", pe.Class)
				}
				if pe.RawResponse != tt.content {
					t.Errorf("error should carry raw output for diagnosis")
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateJSON: %v", err)
			}
			if parsed["title"] != "Tokyo Trip" {
				t.Errorf("unexpected parsed value: %v", parsed)
			}
			if resp == nil {
				t.Error("expected non-nil raw response")
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{`{"a": 1}`, `{"a": 1}`},
		{"  {\"a\": 1}  \n", `{"a": 1}`},
	}
	for i, tt := range tests {
		if got := StripCodeFences(tt.in); got != tt.want {
			t.Errorf("case %d: got %q, want %q", i, got, tt.want)
		}
	}
}

func TestManagerRequiresProviders(t *testing.T) {
	if _, err := NewManager(DefaultManagerConfig()); err == nil {
		t.Error("expected error for empty provider list")
	}
}

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{401, ErrorClassAuthentication},
		{403, ErrorClassAuthentication},
		{429, ErrorClassRateLimit},
		{400, ErrorClassInvalidRequest},
		{500, ErrorClassServerError},
		{503, ErrorClassProviderUnavailable},
		{200, ErrorClassUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			if got := ClassifyStatusCode(tt.status); got != tt.want {
				t.Errorf("ClassifyStatusCode(%d) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}
