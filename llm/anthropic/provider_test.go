// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"tripweaver/concierge/llm"
)

// fakeClient returns a canned HTTP response and captures the request.
type fakeClient struct {
	status  int
	body    string
	lastReq *http.Request
	lastBody []byte
	err     error
}

func (f *fakeClient) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if req.Body != nil {
		f.lastBody, _ = io.ReadAll(req.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
		Header:     make(http.Header),
	}, nil
}

func newTestProvider(t *testing.T, client HTTPClient) *Provider {
	t.Helper()
	p, err := NewProvider(Config{APIKey: "test-key", Client: client})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestNewProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestCompleteSuccess(t *testing.T) {
	client := &fakeClient{
		status: http.StatusOK,
		body: `{
			"id": "msg_1",
			"model": "claude-3-5-sonnet-20241022",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "Visit the Senso-ji temple."}],
			"usage": {"input_tokens": 12, "output_tokens": 8}
		}`,
	}
	p := newTestProvider(t, client)

	resp, err := p.Complete(context.Background(), &llm.CompletionRequest{
		Prompt:       "What should I see in Tokyo?",
		SystemPrompt: "You are a travel expert.",
		MaxTokens:    256,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Visit the Senso-ji temple." {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("expected 20 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if resp.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %q", resp.Provider)
	}

	// Verify the wire request carries the system prompt and headers.
	var sent anthropicRequest
	if err := json.Unmarshal(client.lastBody, &sent); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if sent.System != "You are a travel expert." {
		t.Errorf("system prompt not forwarded: %q", sent.System)
	}
	if sent.MaxTokens != 256 {
		t.Errorf("max tokens not forwarded: %d", sent.MaxTokens)
	}
	if got := client.lastReq.Header.Get("x-api-key"); got != "test-key" {
		t.Errorf("missing api key header, got %q", got)
	}
	if got := client.lastReq.Header.Get("anthropic-version"); got != DefaultAPIVersion {
		t.Errorf("missing version header, got %q", got)
	}
}

func TestCompleteWithHistory(t *testing.T) {
	client := &fakeClient{
		status: http.StatusOK,
		body:   `{"model": "m", "content": [{"type": "text", "text": "ok"}], "usage": {"input_tokens": 1, "output_tokens": 1}}`,
	}
	p := newTestProvider(t, client)

	_, err := p.Complete(context.Background(), &llm.CompletionRequest{
		History: []llm.Message{
			{Role: "user", Content: "Plan a trip"},
			{Role: "assistant", Content: "Where to?"},
		},
		Prompt: "Kyoto",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var sent anthropicRequest
	if err := json.Unmarshal(client.lastBody, &sent); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(sent.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sent.Messages))
	}
	if sent.Messages[2].Role != "user" || sent.Messages[2].Content != "Kyoto" {
		t.Errorf("prompt should be final user turn, got %+v", sent.Messages[2])
	}
}

func TestCompleteErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantClass llm.ErrorClass
	}{
		{
			name:      "auth error",
			status:    401,
			body:      `{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`,
			wantClass: llm.ErrorClassAuthentication,
		},
		{
			name:      "rate limit",
			status:    429,
			body:      `{"type": "error", "error": {"type": "rate_limit_error", "message": "rate limited"}}`,
			wantClass: llm.ErrorClassRateLimit,
		},
		{
			name:      "invalid request",
			status:    400,
			body:      `{"type": "error", "error": {"type": "invalid_request_error", "message": "max_tokens required"}}`,
			wantClass: llm.ErrorClassInvalidRequest,
		},
		{
			name:      "overloaded",
			status:    529,
			body:      `{"type": "error", "error": {"type": "overloaded_error", "message": "overloaded"}}`,
			wantClass: llm.ErrorClassProviderUnavailable,
		},
		{
			name:      "server error without json body",
			status:    500,
			body:      `internal error`,
			wantClass: llm.ErrorClassServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, &fakeClient{status: tt.status, body: tt.body})

			_, err := p.Complete(context.Background(), &llm.CompletionRequest{Prompt: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *llm.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %T: %v", err, err)
			}
			if pe.Class != tt.wantClass {
				t.Errorf("got class %s, want %s", pe.Class, tt.wantClass)
			}
			if pe.StatusCode != tt.status {
				t.Errorf("got status %d, want %d", pe.StatusCode, tt.status)
			}
		})
	}
}

func TestCompleteNetworkFailureMarksUnhealthy(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	p := newTestProvider(t, client)

	_, err := p.Complete(context.Background(), &llm.CompletionRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *llm.ProviderError
	if !errors.As(err, &pe) || pe.Class != llm.ErrorClassProviderUnavailable {
		t.Errorf("expected provider_unavailable, got %v", err)
	}
	if p.IsHealthy(context.Background()) {
		t.Error("provider should be unhealthy after network failure")
	}
}

func TestEstimateCost(t *testing.T) {
	p := newTestProvider(t, &fakeClient{})
	cost := p.EstimateCost(&llm.CompletionRequest{Prompt: "plan a trip to Kyoto", MaxTokens: 1000})
	if cost <= 0 {
		t.Errorf("expected positive cost estimate, got %f", cost)
	}
}
