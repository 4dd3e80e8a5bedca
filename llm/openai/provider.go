// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package openai provides an LLM provider implementation for OpenAI's
// GPT models via the Chat Completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"tripweaver/concierge/llm"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint
	DefaultBaseURL = "https://api.openai.com"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions
	DefaultMaxTokens = 4096

	// DefaultModel is the default GPT model
	DefaultModel = "gpt-4o"

	// Input/output pricing per token for GPT-4o
	inputCostPerToken  = 0.0000025
	outputCostPerToken = 0.00001
)

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider implements the llm.Provider interface for OpenAI.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
	client  HTTPClient
	healthy bool
	mu      sync.RWMutex
}

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey  string        // Required: OpenAI API key
	BaseURL string        // Optional: API base URL (default: https://api.openai.com)
	Model   string        // Optional: Default model (default: gpt-4o)
	Timeout time.Duration // Optional: HTTP timeout (default: 120s)
	Client  HTTPClient    // Optional: custom HTTP client for testing
}

// NewProvider creates a new OpenAI provider instance
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  client,
		healthy: true,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return string(llm.ProviderTypeOpenAI)
}

// IsHealthy returns whether the provider is believed healthy
func (p *Provider) IsHealthy(ctx context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy && p.apiKey != ""
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// EstimateCost estimates the USD cost for the request assuming the full
// max-token completion.
func (p *Provider) EstimateCost(req *llm.CompletionRequest) float64 {
	chars := len(req.Prompt) + len(req.SystemPrompt)
	for _, m := range req.History {
		chars += len(m.Content)
	}
	promptTokens := chars / 4
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return float64(promptTokens)*inputCostPerToken + float64(maxTokens)*outputCostPerToken
}

// Complete generates a completion for the given request
func (p *Provider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	apiReq := chatRequest{
		Model:     model,
		Messages:  buildMessages(req),
		MaxTokens: maxTokens,
	}
	if req.Temperature >= 0 {
		temp := req.Temperature
		apiReq.Temperature = &temp
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		return nil, &llm.ProviderError{
			Provider: p.Name(),
			Class:    llm.ErrorClassProviderUnavailable,
			Message:  fmt.Sprintf("request failed: %v", err),
			Cause:    err,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			p.setHealthy(false)
		}
		return nil, p.parseAPIError(resp.StatusCode, body)
	}

	p.setHealthy(true)

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &llm.ProviderError{
			Provider: p.Name(),
			Class:    llm.ErrorClassServerError,
			Message:  fmt.Sprintf("failed to decode response: %v", err),
			Cause:    err,
		}
	}

	content := ""
	if len(apiResp.Choices) > 0 {
		content = apiResp.Choices[0].Message.Content
	}

	return &llm.CompletionResponse{
		Content:  content,
		Model:    apiResp.Model,
		Provider: p.Name(),
		Usage: llm.UsageStats{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// buildMessages converts the unified request into chat turns. The system
// prompt becomes the leading system message.
func buildMessages(req *llm.CompletionRequest) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.History {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	if len(req.History) == 0 || req.History[len(req.History)-1].Role != "user" {
		if req.Prompt != "" {
			msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})
		}
	}
	return msgs
}

// parseAPIError parses an API error response into a classified ProviderError.
func (p *Provider) parseAPIError(statusCode int, body []byte) error {
	class := llm.ClassifyStatusCode(statusCode)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		switch errResp.Error.Type {
		case "invalid_request_error":
			if errResp.Error.Code == "invalid_api_key" {
				class = llm.ErrorClassAuthentication
			} else {
				class = llm.ErrorClassInvalidRequest
			}
		case "insufficient_quota", "rate_limit_error":
			class = llm.ErrorClassRateLimit
		case "server_error":
			class = llm.ErrorClassServerError
		}
	}

	return &llm.ProviderError{
		Provider:   p.Name(),
		Class:      class,
		Message:    message,
		StatusCode: statusCode,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
