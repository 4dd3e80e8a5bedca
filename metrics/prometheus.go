// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "agent",
		Name:      "invocations_total",
		Help:      "Agent invocations by type and outcome.",
	}, []string{"agent_type", "outcome"})

	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "concierge",
		Subsystem: "agent",
		Name:      "invocation_duration_seconds",
		Help:      "Agent invocation latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"agent_type"})

	invocationTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "agent",
		Name:      "tokens_total",
		Help:      "Tokens consumed by agent type and direction.",
	}, []string{"agent_type", "direction"})

	invocationConfidence = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "concierge",
		Subsystem: "agent",
		Name:      "confidence",
		Help:      "Reported confidence per invocation.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"agent_type"})

	alertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "agent",
		Name:      "alerts_total",
		Help:      "Performance alerts by agent type, kind, and severity.",
	}, []string{"agent_type", "kind", "severity"})

	providerAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "concierge",
		Subsystem: "llm",
		Name:      "provider_attempts_total",
		Help:      "Individual provider calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	providerAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "concierge",
		Subsystem: "llm",
		Name:      "provider_attempt_duration_seconds",
		Help:      "Latency of individual provider calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"provider"})
)

// ObserveProviderAttempt records one provider call. The outcome label is
// "success" or the provider error class.
func ObserveProviderAttempt(provider string, success bool, errorClass string, latency time.Duration) {
	outcome := "success"
	if !success {
		outcome = errorClass
		if outcome == "" {
			outcome = "error"
		}
	}
	providerAttempts.WithLabelValues(provider, outcome).Inc()
	providerAttemptDuration.WithLabelValues(provider).Observe(latency.Seconds())
}

// observeRecord updates the Prometheus instruments for one record.
func observeRecord(record AgentPerformanceMetrics) {
	outcome := "success"
	switch {
	case record.Fallback:
		outcome = "fallback"
	case !record.Success:
		outcome = "failure"
	}

	invocationsTotal.WithLabelValues(record.AgentType, outcome).Inc()
	invocationDuration.WithLabelValues(record.AgentType).Observe(record.ExecutionTime.Seconds())
	invocationTokens.WithLabelValues(record.AgentType, "prompt").Add(float64(record.PromptTokens))
	invocationTokens.WithLabelValues(record.AgentType, "completion").Add(float64(record.CompletionTokens))
	invocationConfidence.WithLabelValues(record.AgentType).Observe(record.Confidence)
}
