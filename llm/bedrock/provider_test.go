// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"tripweaver/concierge/llm"
)

type fakeInvoker struct {
	output   *bedrockruntime.InvokeModelOutput
	err      error
	lastBody []byte
	lastModel string
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastBody = params.Body
	if params.ModelId != nil {
		f.lastModel = *params.ModelId
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func TestCompleteSuccess(t *testing.T) {
	invoker := &fakeInvoker{
		output: &bedrockruntime.InvokeModelOutput{
			Body: []byte(`{
				"content": [{"type": "text", "text": "Stay in Gion."}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 9, "output_tokens": 4}
			}`),
		},
	}
	p, err := NewProvider(context.Background(), Config{Client: invoker})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	resp, err := p.Complete(context.Background(), &llm.CompletionRequest{
		Prompt:       "Where to stay in Kyoto?",
		SystemPrompt: "You are a travel expert.",
		MaxTokens:    128,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Stay in Gion." {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 13 {
		t.Errorf("expected 13 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if invoker.lastModel != DefaultModel {
		t.Errorf("expected default model, got %q", invoker.lastModel)
	}

	var sent invokeRequest
	if err := json.Unmarshal(invoker.lastBody, &sent); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if sent.AnthropicVersion != anthropicVersion {
		t.Errorf("anthropic_version not set, got %q", sent.AnthropicVersion)
	}
	if sent.System != "You are a travel expert." {
		t.Errorf("system prompt not forwarded: %q", sent.System)
	}
	if sent.MaxTokens != 128 {
		t.Errorf("max tokens not forwarded: %d", sent.MaxTokens)
	}
}

func TestNewProviderRejectsNonAnthropicModel(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Model:  "amazon.titan-text-express-v1",
		Client: &fakeInvoker{},
	})
	if err == nil {
		t.Error("expected error for unsupported model family")
	}
}

func TestClassifyInvokeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClass llm.ErrorClass
	}{
		{"throttling", errors.New("operation error Bedrock Runtime: InvokeModel, ThrottlingException: slow down"), llm.ErrorClassRateLimit},
		{"access denied", errors.New("operation error Bedrock Runtime: InvokeModel, AccessDeniedException: no access"), llm.ErrorClassAuthentication},
		{"validation", errors.New("operation error Bedrock Runtime: InvokeModel, ValidationException: bad input"), llm.ErrorClassInvalidRequest},
		{"model error", errors.New("operation error Bedrock Runtime: InvokeModel, ModelErrorException: failed"), llm.ErrorClassServerError},
		{"network", errors.New("dial tcp: connection refused"), llm.ErrorClassProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := NewProvider(context.Background(), Config{Client: &fakeInvoker{err: tt.err}})

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
			if p.IsHealthy(context.Background()) {
				t.Error("provider should be unhealthy after failure")
			}
		})
	}
}
