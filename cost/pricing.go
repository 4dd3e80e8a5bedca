// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package cost tracks token usage and USD cost across a concierge run.
// Pricing is per 1K tokens, keyed by provider and model with a wildcard
// fallback per provider for unknown model versions.
package cost

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
)

// ModelPricing contains pricing per 1K tokens for a model
type ModelPricing struct {
	InputPer1K  float64 `json:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k"`
}

// PricingConfig holds pricing information for all providers and models
type PricingConfig struct {
	Providers map[string]map[string]ModelPricing `json:"providers"`
	mu        sync.RWMutex
}

// DefaultPricing contains default pricing for the providers the concierge
// routes to. Prices are per 1K tokens in USD.
var DefaultPricing = &PricingConfig{
	Providers: map[string]map[string]ModelPricing{
		"anthropic": {
			"claude-3-5-sonnet":          {InputPer1K: 0.003, OutputPer1K: 0.015},
			"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
			"claude-3-5-haiku":           {InputPer1K: 0.0008, OutputPer1K: 0.004},
			"claude-3-5-haiku-20241022":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
			"claude-3-opus":              {InputPer1K: 0.015, OutputPer1K: 0.075},
			"claude-3-haiku":             {InputPer1K: 0.00025, OutputPer1K: 0.00125},
			"*":                          {InputPer1K: 0.003, OutputPer1K: 0.015},
		},
		"openai": {
			"gpt-4o":        {InputPer1K: 0.0025, OutputPer1K: 0.01},
			"gpt-4o-mini":   {InputPer1K: 0.00015, OutputPer1K: 0.0006},
			"gpt-4-turbo":   {InputPer1K: 0.01, OutputPer1K: 0.03},
			"gpt-4":         {InputPer1K: 0.03, OutputPer1K: 0.06},
			"gpt-3.5-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015},
			"*":             {InputPer1K: 0.01, OutputPer1K: 0.03},
		},
		"bedrock": {
			"anthropic.claude-3-5-sonnet-20240620-v1:0": {InputPer1K: 0.003, OutputPer1K: 0.015},
			"anthropic.claude-3-5-sonnet-20241022-v2:0": {InputPer1K: 0.003, OutputPer1K: 0.015},
			"anthropic.claude-3-haiku-20240307-v1:0":    {InputPer1K: 0.00025, OutputPer1K: 0.00125},
			"*": {InputPer1K: 0.003, OutputPer1K: 0.015},
		},
	},
}

// NewPricingConfig creates a new pricing configuration with defaults
func NewPricingConfig() *PricingConfig {
	return &PricingConfig{
		Providers: copyProviders(DefaultPricing.Providers),
	}
}

// LoadPricingFromEnv loads custom pricing from the CONCIERGE_PRICING_CONFIG
// env var (a JSON PricingConfig) merged over the defaults.
func LoadPricingFromEnv() *PricingConfig {
	config := NewPricingConfig()

	pricingJSON := os.Getenv("CONCIERGE_PRICING_CONFIG")
	if pricingJSON != "" {
		var custom PricingConfig
		if err := json.Unmarshal([]byte(pricingJSON), &custom); err == nil {
			config.merge(&custom)
		}
	}

	return config
}

// LoadPricingFromFile loads pricing from a JSON file merged over defaults.
func LoadPricingFromFile(path string) (*PricingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := NewPricingConfig()
	var custom PricingConfig
	if err := json.Unmarshal(data, &custom); err != nil {
		return nil, err
	}
	config.merge(&custom)
	return config, nil
}

func (p *PricingConfig) merge(custom *PricingConfig) {
	for provider, models := range custom.Providers {
		if p.Providers[provider] == nil {
			p.Providers[provider] = make(map[string]ModelPricing)
		}
		for model, pricing := range models {
			p.Providers[provider][model] = pricing
		}
	}
}

// CalculateCost calculates the USD cost for a call. Unknown providers cost
// zero; unknown models fall back to the provider wildcard.
func (p *PricingConfig) CalculateCost(provider, model string, tokensIn, tokensOut int) float64 {
	pricing, ok := p.GetModelPricing(provider, model)
	if !ok {
		return 0
	}

	inputCost := float64(tokensIn) / 1000.0 * pricing.InputPer1K
	outputCost := float64(tokensOut) / 1000.0 * pricing.OutputPer1K
	return inputCost + outputCost
}

// GetModelPricing returns pricing for a specific model, falling back to the
// provider wildcard entry.
func (p *PricingConfig) GetModelPricing(provider, model string) (ModelPricing, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	providerPricing, ok := p.Providers[strings.ToLower(provider)]
	if !ok {
		return ModelPricing{}, false
	}

	if pricing, ok := providerPricing[model]; ok {
		return pricing, true
	}
	if pricing, ok := providerPricing[strings.ToLower(model)]; ok {
		return pricing, true
	}
	if pricing, ok := providerPricing["*"]; ok {
		return pricing, true
	}
	return ModelPricing{}, false
}

// SetModelPricing overrides pricing for a model at runtime.
func (p *PricingConfig) SetModelPricing(provider, model string, pricing ModelPricing) {
	p.mu.Lock()
	defer p.mu.Unlock()

	provider = strings.ToLower(provider)
	if p.Providers[provider] == nil {
		p.Providers[provider] = make(map[string]ModelPricing)
	}
	p.Providers[provider][model] = pricing
}

func copyProviders(src map[string]map[string]ModelPricing) map[string]map[string]ModelPricing {
	dst := make(map[string]map[string]ModelPricing, len(src))
	for provider, models := range src {
		dst[provider] = make(map[string]ModelPricing, len(models))
		for model, pricing := range models {
			dst[provider][model] = pricing
		}
	}
	return dst
}
