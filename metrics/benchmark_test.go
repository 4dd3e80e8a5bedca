// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"
	"time"
)

func record(agentType string, execMs int, confidence float64, success bool) AgentPerformanceMetrics {
	return AgentPerformanceMetrics{
		AgentType:        agentType,
		RunID:            "run-1",
		ExecutionTime:    time.Duration(execMs) * time.Millisecond,
		PromptTokens:     100,
		CompletionTokens: 50,
		Confidence:       confidence,
		Success:          success,
		Timestamp:        time.Now().UTC(),
	}
}

func TestBenchmarkRunningAverages(t *testing.T) {
	tracker := NewBenchmarkTracker()

	tracker.Observe(record("lodging", 1000, 0.8, true), "all")
	tracker.Observe(record("lodging", 3000, 0.6, true), "all")
	tracker.Observe(record("lodging", 2000, 0.7, false), "all")

	b, ok := tracker.Benchmark("lodging", "all")
	if !ok {
		t.Fatal("expected benchmark")
	}
	if b.SampleCount != 3 {
		t.Errorf("expected 3 samples, got %d", b.SampleCount)
	}
	if b.AvgDuration != 2000*time.Millisecond {
		t.Errorf("expected avg 2s, got %v", b.AvgDuration)
	}
	if b.AvgConfidence < 0.699 || b.AvgConfidence > 0.701 {
		t.Errorf("expected avg confidence 0.7, got %f", b.AvgConfidence)
	}
	if b.AvgTokens != 150 {
		t.Errorf("expected avg 150 tokens, got %f", b.AvgTokens)
	}
	if b.SuccessRate < 0.666 || b.SuccessRate > 0.667 {
		t.Errorf("expected success rate 2/3, got %f", b.SuccessRate)
	}
}

func TestDurationTrendImproving(t *testing.T) {
	tracker := NewBenchmarkTracker()

	// First 5 slow, last 5 strictly faster, well beyond the 5% band.
	for i := 0; i < 5; i++ {
		tracker.Observe(record("dining", 2000, 0.7, true), "all")
	}
	for i := 0; i < 5; i++ {
		tracker.Observe(record("dining", 1000, 0.7, true), "all")
	}

	b, _ := tracker.Benchmark("dining", "all")
	if b.DurationTrend != TrendImproving {
		t.Errorf("expected improving duration trend, got %s", b.DurationTrend)
	}
	if b.ConfidenceTrend != TrendStable {
		t.Errorf("expected stable confidence trend, got %s", b.ConfidenceTrend)
	}
}

func TestDurationTrendStableOnIdenticalSamples(t *testing.T) {
	tracker := NewBenchmarkTracker()
	for i := 0; i < 10; i++ {
		tracker.Observe(record("dining", 1500, 0.7, true), "all")
	}

	b, _ := tracker.Benchmark("dining", "all")
	if b.DurationTrend != TrendStable {
		t.Errorf("expected stable trend, got %s", b.DurationTrend)
	}
}

func TestDurationTrendDegrading(t *testing.T) {
	tracker := NewBenchmarkTracker()
	for i := 0; i < 5; i++ {
		tracker.Observe(record("activities", 1000, 0.9, true), "all")
	}
	for i := 0; i < 5; i++ {
		tracker.Observe(record("activities", 2000, 0.5, true), "all")
	}

	b, _ := tracker.Benchmark("activities", "all")
	if b.DurationTrend != TrendDegrading {
		t.Errorf("expected degrading duration trend, got %s", b.DurationTrend)
	}
	if b.ConfidenceTrend != TrendDegrading {
		t.Errorf("expected degrading confidence trend, got %s", b.ConfidenceTrend)
	}
}

func TestTrendFewSamples(t *testing.T) {
	tracker := NewBenchmarkTracker()

	tracker.Observe(record("lodging", 1000, 0.7, true), "all")
	b, _ := tracker.Benchmark("lodging", "all")
	if b.DurationTrend != TrendStable {
		t.Errorf("single sample must be stable, got %s", b.DurationTrend)
	}

	// Fewer than two full windows: split evenly and still classify.
	tracker.Observe(record("lodging", 100, 0.7, true), "all")
	tracker.Observe(record("lodging", 100, 0.7, true), "all")
	tracker.Observe(record("lodging", 100, 0.7, true), "all")
	b, _ = tracker.Benchmark("lodging", "all")
	if b.DurationTrend != TrendImproving {
		t.Errorf("expected improving with partial windows, got %s", b.DurationTrend)
	}
}

func TestBenchmarkMissingAgent(t *testing.T) {
	tracker := NewBenchmarkTracker()
	if _, ok := tracker.Benchmark("nope", "all"); ok {
		t.Error("expected no benchmark for unknown agent")
	}
}
