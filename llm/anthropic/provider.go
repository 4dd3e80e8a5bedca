// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides an LLM provider implementation for Anthropic's
// Claude models via the Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tripweaver/concierge/llm"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is the Anthropic API version
	DefaultAPIVersion = "2023-06-01"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions
	DefaultMaxTokens = 4096

	// DefaultModel is the default Claude model
	DefaultModel = "claude-3-5-sonnet-20241022"

	// Input/output pricing per token for Claude 3.5 Sonnet
	inputCostPerToken  = 0.000003
	outputCostPerToken = 0.000015
)

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider implements the llm.Provider interface for Anthropic Claude.
type Provider struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	client     HTTPClient
	healthy    bool
	mu         sync.RWMutex
}

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey     string        // Required: Anthropic API key
	BaseURL    string        // Optional: API base URL (default: https://api.anthropic.com)
	APIVersion string        // Optional: API version (default: 2023-06-01)
	Model      string        // Optional: Default model (default: claude-3-5-sonnet-20241022)
	Timeout    time.Duration // Optional: HTTP timeout (default: 120s)
	Client     HTTPClient    // Optional: custom HTTP client for testing
}

// NewProvider creates a new Anthropic provider instance
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
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
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		model:      cfg.Model,
		client:     client,
		healthy:    true,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return string(llm.ProviderTypeAnthropic)
}

// IsHealthy returns whether the provider is believed healthy. The flag is
// updated on every call outcome rather than probing the API.
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
// max-token completion. Rough estimate of 4 characters per prompt token.
func (p *Provider) EstimateCost(req *llm.CompletionRequest) float64 {
	promptTokens := estimateTokens(req)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return float64(promptTokens)*inputCostPerToken + float64(maxTokens)*outputCostPerToken
}

func estimateTokens(req *llm.CompletionRequest) int {
	chars := len(req.Prompt) + len(req.SystemPrompt)
	for _, m := range req.History {
		chars += len(m.Content)
	}
	return chars / 4
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

	apiReq := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  buildMessages(req),
	}
	// 0.0 is valid (deterministic); only negative means unset
	if req.Temperature >= 0 {
		temp := req.Temperature
		apiReq.Temperature = &temp
	}
	if req.SystemPrompt != "" {
		apiReq.System = req.SystemPrompt
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.apiVersion)

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

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &llm.ProviderError{
			Provider: p.Name(),
			Class:    llm.ErrorClassServerError,
			Message:  fmt.Sprintf("failed to decode response: %v", err),
			Cause:    err,
		}
	}

	var contentBuilder strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			contentBuilder.WriteString(block.Text)
		}
	}

	return &llm.CompletionResponse{
		Content:  contentBuilder.String(),
		Model:    apiResp.Model,
		Provider: p.Name(),
		Usage: llm.UsageStats{
			PromptTokens:     apiResp.Usage.InputTokens,
			CompletionTokens: apiResp.Usage.OutputTokens,
			TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// buildMessages converts the unified request into Anthropic message turns.
// History takes precedence; a trailing Prompt becomes the final user turn.
func buildMessages(req *llm.CompletionRequest) []anthropicMessage {
	if len(req.History) == 0 {
		return []anthropicMessage{{Role: "user", Content: req.Prompt}}
	}
	msgs := make([]anthropicMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		msgs = append(msgs, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	if req.Prompt != "" && msgs[len(msgs)-1].Role != "user" {
		msgs = append(msgs, anthropicMessage{Role: "user", Content: req.Prompt})
	}
	return msgs
}

// parseAPIError parses an API error response into a classified ProviderError.
func (p *Provider) parseAPIError(statusCode int, body []byte) error {
	class := llm.ClassifyStatusCode(statusCode)

	var errResp struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		// The API error type is more precise than the status code alone.
		switch errResp.Error.Type {
		case "authentication_error", "permission_error":
			class = llm.ErrorClassAuthentication
		case "rate_limit_error":
			class = llm.ErrorClassRateLimit
		case "invalid_request_error":
			class = llm.ErrorClassInvalidRequest
		case "overloaded_error":
			class = llm.ErrorClassProviderUnavailable
		case "api_error":
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

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
