// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package bedrock provides an LLM provider implementation for AWS Bedrock
// using the AWS SDK v2. Requests are signed with AWS Signature V4 via the
// standard credential chain, so IAM roles work without static keys.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"tripweaver/concierge/llm"
)

const (
	// DefaultRegion is used when no region is configured
	DefaultRegion = "us-east-1"

	// DefaultModel is the default Bedrock model identifier
	DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	// DefaultMaxTokens is the default max tokens for completions
	DefaultMaxTokens = 4096

	// anthropicVersion is the Bedrock-specific Anthropic API version
	anthropicVersion = "bedrock-2023-05-31"

	// Approximate blended cost per token for Claude on Bedrock
	costPerToken = 0.000009
)

// InvokeClient is the subset of the Bedrock runtime client used by the
// provider (enables testing).
type InvokeClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements the llm.Provider interface for AWS Bedrock.
// Only the Anthropic model family is supported; the concierge's prompts
// assume Claude semantics.
type Provider struct {
	client  InvokeClient
	region  string
	model   string
	healthy bool
	mu      sync.RWMutex
}

// Config contains configuration for the Bedrock provider
type Config struct {
	Region string       // Optional: AWS region (default: us-east-1)
	Model  string       // Optional: model identifier (default: Claude 3.5 Sonnet)
	Client InvokeClient // Optional: custom client for testing
}

// NewProvider creates a Bedrock provider. When no client is supplied the
// AWS configuration is loaded from the environment and credential chain.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if !strings.HasPrefix(cfg.Model, "anthropic.") {
		return nil, fmt.Errorf("unsupported bedrock model family: %s", cfg.Model)
	}

	client := cfg.Client
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", cfg.Region, err)
		}
		client = bedrockruntime.NewFromConfig(awsCfg)
	}

	return &Provider{
		client:  client,
		region:  cfg.Region,
		model:   cfg.Model,
		healthy: true,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return string(llm.ProviderTypeBedrock)
}

// IsHealthy returns whether the provider is believed healthy
func (p *Provider) IsHealthy(ctx context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy
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
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return float64(chars/4+maxTokens) * costPerToken
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

	body := invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages:         buildMessages(req),
	}
	if req.Temperature >= 0 {
		temp := req.Temperature
		body.Temperature = &temp
	}
	if req.SystemPrompt != "" {
		body.System = req.SystemPrompt
	}

	requestJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		p.setHealthy(false)
		return nil, classifyInvokeError(err)
	}

	p.setHealthy(true)

	var resp invokeResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, &llm.ProviderError{
			Provider: "bedrock",
			Class:    llm.ErrorClassServerError,
			Message:  fmt.Sprintf("failed to unmarshal response: %v", err),
			Cause:    err,
		}
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &llm.CompletionResponse{
		Content:  content.String(),
		Model:    model,
		Provider: "bedrock",
		Usage: llm.UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Latency: time.Since(start),
	}, nil
}

func buildMessages(req *llm.CompletionRequest) []invokeMessage {
	if len(req.History) == 0 {
		return []invokeMessage{{Role: "user", Content: req.Prompt}}
	}
	msgs := make([]invokeMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		msgs = append(msgs, invokeMessage{Role: m.Role, Content: m.Content})
	}
	if req.Prompt != "" && msgs[len(msgs)-1].Role != "user" {
		msgs = append(msgs, invokeMessage{Role: "user", Content: req.Prompt})
	}
	return msgs
}

// classifyInvokeError maps SDK errors to the unified taxonomy. The SDK
// wraps service errors with their API error codes, so string matching on
// the code names is the practical option here.
func classifyInvokeError(err error) error {
	msg := err.Error()
	class := llm.ErrorClassProviderUnavailable
	switch {
	case strings.Contains(msg, "ThrottlingException"), strings.Contains(msg, "TooManyRequests"):
		class = llm.ErrorClassRateLimit
	case strings.Contains(msg, "AccessDeniedException"), strings.Contains(msg, "UnrecognizedClientException"),
		strings.Contains(msg, "ExpiredTokenException"):
		class = llm.ErrorClassAuthentication
	case strings.Contains(msg, "ValidationException"):
		class = llm.ErrorClassInvalidRequest
	case strings.Contains(msg, "ModelErrorException"), strings.Contains(msg, "InternalServerException"):
		class = llm.ErrorClassServerError
	case strings.Contains(msg, "ServiceUnavailableException"), strings.Contains(msg, "ModelNotReadyException"):
		class = llm.ErrorClassProviderUnavailable
	}
	return &llm.ProviderError{
		Provider: "bedrock",
		Class:    class,
		Message:  msg,
		Cause:    err,
	}
}

type invokeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []invokeMessage `json:"messages"`
	System           string          `json:"system,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
}

type invokeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
