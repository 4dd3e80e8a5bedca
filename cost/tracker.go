// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package cost

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// UsageRecord represents a single tracked LLM call.
type UsageRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Agent     string    `json:"agent"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
	CostUSD   float64   `json:"cost_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// TotalTokens returns the total token count for the record.
func (r *UsageRecord) TotalTokens() int {
	return r.TokensIn + r.TokensOut
}

// RunSummary aggregates usage across one concierge run.
type RunSummary struct {
	RunID       string             `json:"run_id"`
	TotalCalls  int                `json:"total_calls"`
	TotalTokens int                `json:"total_tokens"`
	TotalCost   float64            `json:"total_cost_usd"`
	ByAgent     map[string]float64 `json:"cost_by_agent"`
	ByProvider  map[string]float64 `json:"cost_by_provider"`
}

// Tracker accumulates usage records for a single run and prices them.
// Safe for concurrent use; research agents record from parallel goroutines.
type Tracker struct {
	runID   string
	pricing *PricingConfig
	mu      sync.Mutex
	records []UsageRecord
}

// NewTracker creates a tracker for one run.
func NewTracker(runID string, pricing *PricingConfig) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing
	}
	return &Tracker{runID: runID, pricing: pricing}
}

// Record prices and stores one LLM call, returning the priced record.
func (t *Tracker) Record(agent, provider, model string, tokensIn, tokensOut int) UsageRecord {
	rec := UsageRecord{
		ID:        uuid.New().String(),
		RunID:     t.runID,
		Agent:     agent,
		Provider:  provider,
		Model:     model,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		CostUSD:   t.pricing.CalculateCost(provider, model, tokensIn, tokensOut),
		Timestamp: time.Now().UTC(),
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	t.mu.Unlock()

	return rec
}

// Records returns a copy of all recorded usage.
func (t *Tracker) Records() []UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]UsageRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Summary aggregates all recorded usage for the run.
func (t *Tracker) Summary() RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := RunSummary{
		RunID:      t.runID,
		ByAgent:    make(map[string]float64),
		ByProvider: make(map[string]float64),
	}
	for _, rec := range t.records {
		summary.TotalCalls++
		summary.TotalTokens += rec.TotalTokens()
		summary.TotalCost += rec.CostUSD
		summary.ByAgent[rec.Agent] += rec.CostUSD
		summary.ByProvider[rec.Provider] += rec.CostUSD
	}
	return summary
}
