// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"
)

const (
	// PeriodAll is the benchmark period spanning the process lifetime.
	PeriodAll = "all"

	// dailyPeriodLayout keys the per-UTC-day benchmark periods.
	dailyPeriodLayout = "2006-01-02"

	// trendWindow is the number of samples in each comparison window.
	trendWindow = 5

	// trendBand is the relative change below which movement counts as stable.
	trendBand = 0.05

	// sampleHistory bounds the retained per-benchmark sample tail.
	sampleHistory = 2 * trendWindow
)

// benchmarkState holds the incremental aggregates for one (agent type,
// period) pair. Running means are exact over all samples; the sample tail
// is retained only for trend computation.
type benchmarkState struct {
	sampleCount   int
	successCount  int
	sumDurationMs float64
	sumConfidence float64
	sumTokens     float64

	recentDurations  []float64
	recentConfidence []float64
	updatedAt        time.Time
}

// BenchmarkTracker maintains rolling benchmarks keyed by agent type and
// period. Safe for concurrent use.
type BenchmarkTracker struct {
	mu     sync.RWMutex
	states map[string]*benchmarkState
}

// NewBenchmarkTracker creates an empty tracker.
func NewBenchmarkTracker() *BenchmarkTracker {
	return &BenchmarkTracker{states: make(map[string]*benchmarkState)}
}

func benchmarkKey(agentType, period string) string {
	return agentType + "|" + period
}

// Observe folds one record into the benchmark for the given period.
func (t *BenchmarkTracker) Observe(record AgentPerformanceMetrics, period string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := benchmarkKey(record.AgentType, period)
	state, ok := t.states[key]
	if !ok {
		state = &benchmarkState{}
		t.states[key] = state
	}

	state.sampleCount++
	if record.Success {
		state.successCount++
	}
	state.sumDurationMs += float64(record.ExecutionTime.Milliseconds())
	state.sumConfidence += record.Confidence
	state.sumTokens += float64(record.TotalTokens())
	state.updatedAt = record.Timestamp

	state.recentDurations = appendBounded(state.recentDurations, float64(record.ExecutionTime.Milliseconds()))
	state.recentConfidence = appendBounded(state.recentConfidence, record.Confidence)
}

func appendBounded(samples []float64, v float64) []float64 {
	samples = append(samples, v)
	if len(samples) > sampleHistory {
		samples = samples[len(samples)-sampleHistory:]
	}
	return samples
}

// Benchmark returns the current aggregate for an agent type and period.
// The second return is false when no samples have been observed.
func (t *BenchmarkTracker) Benchmark(agentType, period string) (AgentBenchmark, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.states[benchmarkKey(agentType, period)]
	if !ok || state.sampleCount == 0 {
		return AgentBenchmark{}, false
	}

	n := float64(state.sampleCount)
	return AgentBenchmark{
		AgentType:       agentType,
		Period:          period,
		SampleCount:     state.sampleCount,
		AvgDuration:     time.Duration(state.sumDurationMs/n) * time.Millisecond,
		AvgConfidence:   state.sumConfidence / n,
		AvgTokens:       state.sumTokens / n,
		SuccessRate:     float64(state.successCount) / n,
		DurationTrend:   trend(state.recentDurations, false),
		ConfidenceTrend: trend(state.recentConfidence, true),
		UpdatedAt:       state.updatedAt,
	}, true
}

// Benchmarks returns all current benchmarks.
func (t *BenchmarkTracker) Benchmarks() []AgentBenchmark {
	t.mu.RLock()
	keys := make([]string, 0, len(t.states))
	for k := range t.states {
		keys = append(keys, k)
	}
	t.mu.RUnlock()

	out := make([]AgentBenchmark, 0, len(keys))
	for _, key := range keys {
		agentType, period := splitKey(key)
		if b, ok := t.Benchmark(agentType, period); ok {
			out = append(out, b)
		}
	}
	return out
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// trend compares the mean of the most recent window against the preceding
// window. For higherIsBetter metrics (confidence) an increase beyond the
// band is improving; for durations a decrease is. Fewer than 2 samples is
// always stable; with fewer than 2 full windows the samples split evenly.
func trend(samples []float64, higherIsBetter bool) TrendDirection {
	n := len(samples)
	if n < 2 {
		return TrendStable
	}

	window := trendWindow
	if n < 2*trendWindow {
		window = n / 2
	}

	recent := mean(samples[n-window:])
	prior := mean(samples[n-2*window : n-window])

	if prior == 0 {
		if recent == 0 {
			return TrendStable
		}
		if higherIsBetter {
			return TrendImproving
		}
		return TrendDegrading
	}

	change := (recent - prior) / prior
	if change > -trendBand && change < trendBand {
		return TrendStable
	}
	if (change < 0) != higherIsBetter {
		return TrendImproving
	}
	return TrendDegrading
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}
