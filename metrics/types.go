// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package metrics collects per-invocation agent performance records,
// maintains rolling benchmarks per agent type, and raises threshold alerts.
// Records are buffered and flushed to storage in batches; alert evaluation
// happens per-event at ingestion, independent of the flush cadence.
package metrics

import (
	"time"
)

// AgentPerformanceMetrics is one record per agent invocation. Append-only;
// never mutated after creation.
type AgentPerformanceMetrics struct {
	ID               string        `json:"id"`
	AgentType        string        `json:"agent_type"`
	RunID            string        `json:"run_id"`
	RequestID        string        `json:"request_id,omitempty"`
	ExecutionTime    time.Duration `json:"execution_time"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Confidence       float64       `json:"confidence"`
	Success          bool          `json:"success"`
	Fallback         bool          `json:"fallback"`
	Model            string        `json:"model,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
}

// TotalTokens returns the combined token count for the invocation.
func (m *AgentPerformanceMetrics) TotalTokens() int {
	return m.PromptTokens + m.CompletionTokens
}

// TrendDirection classifies recent benchmark movement.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendDegrading TrendDirection = "degrading"
)

// AgentBenchmark is a rolling aggregate for one (agent type, period) pair.
// Averages are incremental running means over all samples in the period.
type AgentBenchmark struct {
	AgentType      string         `json:"agent_type"`
	Period         string         `json:"period"`
	SampleCount    int            `json:"sample_count"`
	AvgDuration    time.Duration  `json:"avg_duration"`
	AvgConfidence  float64        `json:"avg_confidence"`
	AvgTokens      float64        `json:"avg_tokens"`
	SuccessRate    float64        `json:"success_rate"`
	DurationTrend  TrendDirection `json:"duration_trend"`
	ConfidenceTrend TrendDirection `json:"confidence_trend"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AlertSeverity grades how badly a threshold was crossed.
type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertKind names which threshold was crossed.
type AlertKind string

const (
	AlertKindSlowExecution  AlertKind = "slow_execution"
	AlertKindLowConfidence  AlertKind = "low_confidence"
	AlertKindHighTokenUsage AlertKind = "high_token_usage"
)

// PerformanceAlert is a derived fact about a threshold breach. Alerts are
// deduplicated only by a per (agent type, kind) cooldown window.
type PerformanceAlert struct {
	ID        string        `json:"id"`
	AgentType string        `json:"agent_type"`
	Kind      AlertKind     `json:"kind"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Observed  float64       `json:"observed"`
	Threshold float64       `json:"threshold"`
	Timestamp time.Time     `json:"timestamp"`
}

// Thresholds define alert bounds for one agent type. Zero values disable
// the corresponding check.
type Thresholds struct {
	MaxExecutionTime time.Duration `json:"max_execution_time" yaml:"max_execution_time"`
	MinConfidence    float64       `json:"min_confidence" yaml:"min_confidence"`
	MaxTokens        int           `json:"max_tokens" yaml:"max_tokens"`
}

// DefaultThresholds returns the global defaults applied when no per-agent
// override is configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxExecutionTime: 30 * time.Second,
		MinConfidence:    0.4,
		MaxTokens:        8000,
	}
}

// Report summarizes stored records for one agent type over a window.
type Report struct {
	AgentType     string        `json:"agent_type"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	TotalRuns     int           `json:"total_runs"`
	SuccessRate   float64       `json:"success_rate"`
	FallbackRate  float64       `json:"fallback_rate"`
	AvgDuration   time.Duration `json:"avg_duration"`
	AvgConfidence float64       `json:"avg_confidence"`
	TotalTokens   int           `json:"total_tokens"`
}
