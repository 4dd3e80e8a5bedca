// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package cost

import (
	"math"
	"sync"
	"testing"
)

func TestCalculateCost(t *testing.T) {
	pricing := NewPricingConfig()

	tests := []struct {
		name      string
		provider  string
		model     string
		tokensIn  int
		tokensOut int
		want      float64
	}{
		{
			name:     "claude sonnet exact match",
			provider: "anthropic",
			model:    "claude-3-5-sonnet-20241022",
			tokensIn: 1000, tokensOut: 1000,
			want: 0.003 + 0.015,
		},
		{
			name:     "unknown model falls back to wildcard",
			provider: "anthropic",
			model:    "claude-99-experimental",
			tokensIn: 1000, tokensOut: 0,
			want: 0.003,
		},
		{
			name:     "provider name is case insensitive",
			provider: "OpenAI",
			model:    "gpt-4o",
			tokensIn: 2000, tokensOut: 0,
			want: 0.005,
		},
		{
			name:     "unknown provider is free",
			provider: "nonexistent",
			model:    "whatever",
			tokensIn: 1000, tokensOut: 1000,
			want: 0,
		},
		{
			name:     "zero tokens",
			provider: "anthropic",
			model:    "claude-3-5-sonnet",
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pricing.CalculateCost(tt.provider, tt.model, tt.tokensIn, tt.tokensOut)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateCost = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSetModelPricing(t *testing.T) {
	pricing := NewPricingConfig()
	pricing.SetModelPricing("anthropic", "claude-custom", ModelPricing{InputPer1K: 0.001, OutputPer1K: 0.002})

	got := pricing.CalculateCost("anthropic", "claude-custom", 1000, 1000)
	if math.Abs(got-0.003) > 1e-9 {
		t.Errorf("custom pricing not applied: %f", got)
	}

	// Defaults must not be mutated.
	if DefaultPricing.CalculateCost("anthropic", "claude-custom", 1000, 0) != 0.003 {
		t.Error("DefaultPricing should still use the wildcard for unknown models")
	}
}

func TestTrackerSummary(t *testing.T) {
	tracker := NewTracker("run-1", NewPricingConfig())

	tracker.Record("lodging", "anthropic", "claude-3-5-sonnet", 1000, 1000)
	tracker.Record("dining", "anthropic", "claude-3-5-sonnet", 500, 500)
	tracker.Record("activities", "openai", "gpt-4o", 1000, 0)

	s := tracker.Summary()
	if s.TotalCalls != 3 {
		t.Errorf("expected 3 calls, got %d", s.TotalCalls)
	}
	if s.TotalTokens != 4000 {
		t.Errorf("expected 4000 tokens, got %d", s.TotalTokens)
	}
	if len(s.ByAgent) != 3 {
		t.Errorf("expected 3 agents, got %d", len(s.ByAgent))
	}
	if s.ByProvider["anthropic"] <= s.ByProvider["openai"] {
		t.Errorf("anthropic should cost more in this scenario: %+v", s.ByProvider)
	}
	if math.Abs(s.TotalCost-(0.018+0.009+0.0025)) > 1e-9 {
		t.Errorf("unexpected total cost %f", s.TotalCost)
	}
}

func TestTrackerConcurrentRecords(t *testing.T) {
	tracker := NewTracker("run-2", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record("agent", "anthropic", "claude-3-5-sonnet", 100, 100)
		}()
	}
	wg.Wait()

	if got := len(tracker.Records()); got != 10 {
		t.Errorf("expected 10 records, got %d", got)
	}
}
