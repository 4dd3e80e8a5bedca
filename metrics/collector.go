// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripweaver/concierge/shared/logger"
)

const (
	// DefaultSampleRate records every invocation.
	DefaultSampleRate = 1.0

	// DefaultBatchSize triggers a storage flush when the buffer fills.
	DefaultBatchSize = 50

	// DefaultFlushInterval bounds how long a record can sit unflushed.
	DefaultFlushInterval = 10 * time.Second

	// DefaultAlertCooldown suppresses repeat alerts per agent/kind pair.
	DefaultAlertCooldown = 5 * time.Minute

	// maxRetainedAlerts bounds the in-memory alert history.
	maxRetainedAlerts = 500
)

// CollectorConfig controls sampling, flushing, and alerting.
type CollectorConfig struct {
	SampleRate      float64
	BatchSize       int
	FlushInterval   time.Duration
	AlertCooldown   time.Duration
	Defaults        Thresholds
	AgentThresholds map[string]Thresholds
}

// DefaultCollectorConfig returns production defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		SampleRate:    DefaultSampleRate,
		BatchSize:     DefaultBatchSize,
		FlushInterval: DefaultFlushInterval,
		AlertCooldown: DefaultAlertCooldown,
		Defaults:      DefaultThresholds(),
	}
}

// Collector buffers performance records, flushes them to storage in
// batches, folds them into rolling benchmarks, and evaluates alert
// thresholds per event.
type Collector struct {
	config     CollectorConfig
	store      Store
	benchmarks *BenchmarkTracker
	log        *logger.Logger

	mu            sync.Mutex
	buffer        []AgentPerformanceMetrics
	alerts        []PerformanceAlert
	lastAlertTime map[string]time.Time

	done     chan struct{}
	closeOne sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a collector flushing to the given store and starts
// its background flush timer. Call Close to stop it and flush the tail.
func NewCollector(config CollectorConfig, store Store) *Collector {
	if config.SampleRate <= 0 || config.SampleRate > 1 {
		config.SampleRate = DefaultSampleRate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultFlushInterval
	}
	if config.AlertCooldown <= 0 {
		config.AlertCooldown = DefaultAlertCooldown
	}
	if config.Defaults == (Thresholds{}) {
		config.Defaults = DefaultThresholds()
	}

	c := &Collector{
		config:        config,
		store:         store,
		benchmarks:    NewBenchmarkTracker(),
		log:           logger.New("metrics-collector"),
		lastAlertTime: make(map[string]time.Time),
		done:          make(chan struct{}),
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c
}

// Collect ingests one record. Sampling applies first; sampled-out records
// are dropped entirely. Alert evaluation and benchmark updates happen
// immediately; the storage write is deferred to the next flush. Collect
// never returns an error: a monitoring failure must not break the caller.
func (c *Collector) Collect(record AgentPerformanceMetrics) {
	if c.config.SampleRate < 1.0 && rand.Float64() >= c.config.SampleRate {
		return
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	observeRecord(record)
	c.benchmarks.Observe(record, PeriodAll)
	c.benchmarks.Observe(record, record.Timestamp.UTC().Format(dailyPeriodLayout))
	c.evaluateAlerts(record)

	var flush []AgentPerformanceMetrics
	c.mu.Lock()
	c.buffer = append(c.buffer, record)
	if len(c.buffer) >= c.config.BatchSize {
		flush = c.drainLocked()
	}
	c.mu.Unlock()

	if flush != nil {
		c.writeBatch(flush)
	}
}

// drainLocked swaps the buffer out under the lock so appends never race a
// flush slot. Caller must hold c.mu.
func (c *Collector) drainLocked() []AgentPerformanceMetrics {
	if len(c.buffer) == 0 {
		return nil
	}
	flush := c.buffer
	c.buffer = nil
	return flush
}

// Flush force-writes any buffered records.
func (c *Collector) Flush() {
	c.mu.Lock()
	flush := c.drainLocked()
	c.mu.Unlock()
	if flush != nil {
		c.writeBatch(flush)
	}
}

func (c *Collector) writeBatch(batch []AgentPerformanceMetrics) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.store.StoreBatch(ctx, batch); err != nil {
		// A storage failure is logged and the batch dropped; metrics must
		// never take down the main pipeline.
		c.log.ErrorWithCause("failed to flush metrics batch", err, map[string]interface{}{
			"batch_size": len(batch),
		})
	}
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Flush()
		case <-c.done:
			return
		}
	}
}

// Close stops the background flusher and writes any remaining records.
func (c *Collector) Close() {
	c.closeOne.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
	c.Flush()
}

// thresholdsFor returns the per-agent override or the global defaults.
func (c *Collector) thresholdsFor(agentType string) Thresholds {
	if t, ok := c.config.AgentThresholds[agentType]; ok {
		return t
	}
	return c.config.Defaults
}

// evaluateAlerts checks one record against its thresholds. Evaluation is
// per-event so operators see problems as they happen, independent of the
// storage flush cadence.
func (c *Collector) evaluateAlerts(record AgentPerformanceMetrics) {
	t := c.thresholdsFor(record.AgentType)
	now := record.Timestamp

	if t.MaxExecutionTime > 0 && record.ExecutionTime > t.MaxExecutionTime {
		c.raiseAlert(record.AgentType, AlertKindSlowExecution, now,
			float64(record.ExecutionTime.Milliseconds()), float64(t.MaxExecutionTime.Milliseconds()),
			fmt.Sprintf("%s took %v (threshold %v)", record.AgentType, record.ExecutionTime, t.MaxExecutionTime))
	}
	// The confidence floor judges delivered results; a failed call carries
	// no confidence and is already visible as a failure.
	if record.Success && t.MinConfidence > 0 && record.Confidence < t.MinConfidence {
		c.raiseAlert(record.AgentType, AlertKindLowConfidence, now,
			record.Confidence, t.MinConfidence,
			fmt.Sprintf("%s confidence %.2f below floor %.2f", record.AgentType, record.Confidence, t.MinConfidence))
	}
	if t.MaxTokens > 0 && record.TotalTokens() > t.MaxTokens {
		c.raiseAlert(record.AgentType, AlertKindHighTokenUsage, now,
			float64(record.TotalTokens()), float64(t.MaxTokens),
			fmt.Sprintf("%s used %d tokens (ceiling %d)", record.AgentType, record.TotalTokens(), t.MaxTokens))
	}
}

func (c *Collector) raiseAlert(agentType string, kind AlertKind, now time.Time, observed, threshold float64, message string) {
	cooldownKey := agentType + "|" + string(kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastAlertTime[cooldownKey]; ok && now.Sub(last) < c.config.AlertCooldown {
		return
	}
	c.lastAlertTime[cooldownKey] = now

	severity := AlertSeverityWarning
	if threshold > 0 {
		// More than 2x over an upper bound, or under half a lower bound,
		// is critical.
		switch kind {
		case AlertKindLowConfidence:
			if observed < threshold/2 {
				severity = AlertSeverityCritical
			}
		default:
			if observed > threshold*2 {
				severity = AlertSeverityCritical
			}
		}
	}

	alert := PerformanceAlert{
		ID:        uuid.New().String(),
		AgentType: agentType,
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Observed:  observed,
		Threshold: threshold,
		Timestamp: now,
	}
	c.alerts = append(c.alerts, alert)
	if len(c.alerts) > maxRetainedAlerts {
		c.alerts = c.alerts[len(c.alerts)-maxRetainedAlerts:]
	}
	alertsRaised.WithLabelValues(agentType, string(kind), string(severity)).Inc()

	c.log.Warn("performance alert", map[string]interface{}{
		"agent_type": agentType,
		"kind":       string(kind),
		"severity":   string(severity),
		"observed":   observed,
		"threshold":  threshold,
	})
}

// GetAlerts returns retained alerts, newest last, filtered by agent type
// and severity when non-empty.
func (c *Collector) GetAlerts(agentType string, severity AlertSeverity) []PerformanceAlert {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PerformanceAlert, 0, len(c.alerts))
	for _, a := range c.alerts {
		if agentType != "" && a.AgentType != agentType {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		out = append(out, a)
	}
	return out
}

// GetBenchmark returns the rolling benchmark for an agent type over a
// period: PeriodAll for the process lifetime, or a UTC day like
// "2026-08-31". An empty period means PeriodAll.
func (c *Collector) GetBenchmark(agentType, period string) (AgentBenchmark, bool) {
	if period == "" {
		period = PeriodAll
	}
	return c.benchmarks.Benchmark(agentType, period)
}

// GetBenchmarks returns all rolling benchmarks.
func (c *Collector) GetBenchmarks() []AgentBenchmark {
	return c.benchmarks.Benchmarks()
}

// GenerateReport summarizes stored records for an agent type over the last
// N days. Unflushed buffer contents are flushed first so the report is
// current.
func (c *Collector) GenerateReport(ctx context.Context, agentType string, days int) (*Report, error) {
	if days <= 0 {
		days = 7
	}
	c.Flush()

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	records, err := c.store.Query(ctx, agentType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics for report: %w", err)
	}

	report := &Report{
		AgentType: agentType,
		Start:     start,
		End:       end,
		TotalRuns: len(records),
	}
	if len(records) == 0 {
		return report, nil
	}

	var successes, fallbacks int
	var sumDuration time.Duration
	var sumConfidence float64
	for _, r := range records {
		if r.Success {
			successes++
		}
		if r.Fallback {
			fallbacks++
		}
		sumDuration += r.ExecutionTime
		sumConfidence += r.Confidence
		report.TotalTokens += r.TotalTokens()
	}
	n := float64(len(records))
	report.SuccessRate = float64(successes) / n
	report.FallbackRate = float64(fallbacks) / n
	report.AvgDuration = sumDuration / time.Duration(len(records))
	report.AvgConfidence = sumConfidence / n
	return report, nil
}

// Cleanup removes stored records older than the cutoff.
func (c *Collector) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return c.store.Cleanup(ctx, before)
}
