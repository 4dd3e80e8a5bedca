// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package openai

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

type fakeClient struct {
	status   int
	body     string
	lastReq  *http.Request
	lastBody []byte
	err      error
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

func TestCompleteSuccess(t *testing.T) {
	client := &fakeClient{
		status: http.StatusOK,
		body: `{
			"id": "chatcmpl-1",
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Try Shinjuku."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 15, "completion_tokens": 5, "total_tokens": 20}
		}`,
	}
	p, err := NewProvider(Config{APIKey: "sk-test", Client: client})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	resp, err := p.Complete(context.Background(), &llm.CompletionRequest{
		Prompt:       "Where to stay in Tokyo?",
		SystemPrompt: "You are a travel expert.",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Try Shinjuku." {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 15 || resp.Usage.CompletionTokens != 5 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if got := client.lastReq.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("missing bearer token, got %q", got)
	}

	var sent chatRequest
	if err := json.Unmarshal(client.lastBody, &sent); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if len(sent.Messages) != 2 || sent.Messages[0].Role != "system" {
		t.Errorf("system prompt should lead the messages, got %+v", sent.Messages)
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
			name:      "invalid api key",
			status:    401,
			body:      `{"error": {"message": "Incorrect API key", "type": "invalid_request_error", "code": "invalid_api_key"}}`,
			wantClass: llm.ErrorClassAuthentication,
		},
		{
			name:      "quota exhausted",
			status:    429,
			body:      `{"error": {"message": "quota exceeded", "type": "insufficient_quota"}}`,
			wantClass: llm.ErrorClassRateLimit,
		},
		{
			name:      "bad request",
			status:    400,
			body:      `{"error": {"message": "unknown model", "type": "invalid_request_error"}}`,
			wantClass: llm.ErrorClassInvalidRequest,
		},
		{
			name:      "server error",
			status:    500,
			body:      `{"error": {"message": "upstream failure", "type": "server_error"}}`,
			wantClass: llm.ErrorClassServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := NewProvider(Config{APIKey: "sk-test", Client: &fakeClient{status: tt.status, body: tt.body}})

			_, err := p.Complete(context.Background(), &llm.CompletionRequest{Prompt: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *llm.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %T", err)
			}
			if pe.Class != tt.wantClass {
				t.Errorf("got class %s, want %s", pe.Class, tt.wantClass)
			}
		})
	}
}

func TestCompleteNetworkFailure(t *testing.T) {
	p, _ := NewProvider(Config{APIKey: "sk-test", Client: &fakeClient{err: errors.New("dial timeout")}})

	_, err := p.Complete(context.Background(), &llm.CompletionRequest{Prompt: "hi"})
	var pe *llm.ProviderError
	if !errors.As(err, &pe) || pe.Class != llm.ErrorClassProviderUnavailable {
		t.Errorf("expected provider_unavailable, got %v", err)
	}
	if p.IsHealthy(context.Background()) {
		t.Error("provider should be unhealthy after network failure")
	}
}
