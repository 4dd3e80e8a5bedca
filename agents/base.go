// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tripweaver/concierge/cost"
	"tripweaver/concierge/llm"
	"tripweaver/concierge/metrics"
	"tripweaver/concierge/resilience"
	"tripweaver/concierge/shared/apperrors"
	"tripweaver/concierge/shared/logger"
)

// Config holds per-agent tuning. Zero values fall back to defaults.
type Config struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DefaultConfig returns the baseline agent configuration.
func DefaultConfig() Config {
	return Config{
		Temperature:  0.7,
		MaxTokens:    2048,
		Timeout:      60 * time.Second,
		MaxAttempts:  2,
		RetryBackoff: 2 * time.Second,
	}
}

// Deps are the injected collaborators shared by all agents in a run.
// Metrics and Costs may be nil; emission is skipped, never a panic.
type Deps struct {
	Manager *llm.Manager
	Metrics *metrics.Collector
	Costs   *cost.Tracker
}

// BaseAgent supplies the execution machinery concrete agents build on:
// LLM calls with metric emission, JSON parsing, timeout racing, and retry.
type BaseAgent struct {
	agentType    AgentType
	systemPrompt string
	config       Config
	deps         Deps
	log          *logger.Logger
}

// NewBaseAgent constructs the shared base for a concrete agent.
func NewBaseAgent(agentType AgentType, systemPrompt string, config Config, deps Deps) *BaseAgent {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}
	return &BaseAgent{
		agentType:    agentType,
		systemPrompt: systemPrompt,
		config:       config,
		deps:         deps,
		log:          logger.New("agent-" + string(agentType)),
	}
}

// Type returns the agent's type.
func (a *BaseAgent) Type() AgentType {
	return a.agentType
}

// Timeout returns the configured per-call timeout.
func (a *BaseAgent) Timeout() time.Duration {
	return a.config.Timeout
}

// CallMetric holds a successful call's measurements until the caller has
// parsed the response and knows its confidence. Emit records it; repeated
// calls are no-ops, so exactly one record reaches the collector per call.
type CallMetric struct {
	agent  *BaseAgent
	record metrics.AgentPerformanceMetrics
	done   bool
}

// Emit finalizes the record with the given confidence and forwards it to
// the collector. Safe to call on a nil receiver.
func (m *CallMetric) Emit(confidence float64) {
	if m == nil || m.done {
		return
	}
	m.done = true
	m.record.Confidence = clampConfidence(confidence)
	m.agent.emitMetric(m.record)
}

// CallLLM invokes the provider manager with the agent's configured model,
// temperature, and token budget plus its role system prompt. Exactly one
// performance record is emitted per call: failures are recorded here
// directly, while on success the caller completes the returned CallMetric
// with the confidence of the parsed result.
func (a *BaseAgent) CallLLM(ctx context.Context, actx *AgentContext, prompt string) (*llm.CompletionResponse, *CallMetric, error) {
	start := time.Now()

	resp, err := a.deps.Manager.Complete(ctx, &llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: a.systemPrompt,
		MaxTokens:    a.config.MaxTokens,
		Temperature:  a.config.Temperature,
		Model:        a.config.Model,
	})

	record := metrics.AgentPerformanceMetrics{
		AgentType:     string(a.agentType),
		RunID:         actx.RunID,
		ExecutionTime: time.Since(start),
		Success:       err == nil,
		Timestamp:     time.Now().UTC(),
	}
	if resp != nil {
		record.PromptTokens = resp.Usage.PromptTokens
		record.CompletionTokens = resp.Usage.CompletionTokens
		record.Model = resp.Model
	}

	if err != nil {
		a.emitMetric(record)
		return nil, nil, apperrors.ExternalAPI(string(a.agentType), "LLM call failed", nil, err)
	}

	if a.deps.Costs != nil {
		a.deps.Costs.Record(string(a.agentType), resp.Provider, resp.Model,
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp, &CallMetric{agent: a, record: record}, nil
}

// emitMetric forwards a record to the collector. Collection failures must
// never disturb the agent's own path.
func (a *BaseAgent) emitMetric(record metrics.AgentPerformanceMetrics) {
	if a.deps.Metrics == nil {
		return
	}
	a.deps.Metrics.Collect(record)
}

// ParseJSONResponse strips Markdown code fences from model output and
// unmarshals it into v. Failures are validation errors naming the agent,
// and the offending raw text is always logged for diagnosis.
func (a *BaseAgent) ParseJSONResponse(content string, v interface{}) error {
	cleaned := llm.StripCodeFences(content)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		a.log.Error("failed to parse model JSON output", map[string]interface{}{
			"agent":    string(a.agentType),
			"raw_text": content,
		})
		return apperrors.Wrap(apperrors.KindValidation, apperrors.SeverityMedium,
			string(a.agentType), "agent returned unparseable JSON", err)
	}
	return nil
}

// ExecuteWithTimeout races fn against a timer. On timeout the underlying
// call is abandoned, not cancelled: it completes into the void and its
// result is discarded, while the caller gets a timeout error immediately.
func (a *BaseAgent) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) (*ResearchOutput, error)) (*ResearchOutput, error) {
	if timeout <= 0 {
		timeout = a.config.Timeout
	}

	type result struct {
		out *ResearchOutput
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := fn(ctx)
		done <- result{out, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.out, r.err
	case <-timer.C:
		return nil, apperrors.Timeout(string(a.agentType), fmt.Sprintf("agent timed out after %v", timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ExecuteWithRetry runs fn through the shared retry primitive up to the
// agent's attempt budget, doubling the configured backoff between attempts
// and returning the last error when all attempts fail. Every error is
// retried here: a fresh sample can fix an unparseable reply, and provider
// error classes were already weighed inside the manager.
func (a *BaseAgent) ExecuteWithRetry(ctx context.Context, fn func(context.Context) (*ResearchOutput, error)) (*ResearchOutput, error) {
	attempt := 0
	return resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts:    a.config.MaxAttempts,
		InitialBackoff: a.config.RetryBackoff,
		BackoffFactor:  2,
	}, func(ctx context.Context) (*ResearchOutput, error) {
		attempt++
		out, err := fn(ctx)
		if err != nil && attempt < a.config.MaxAttempts {
			a.log.Warn("agent attempt failed, retrying", map[string]interface{}{
				"agent":   string(a.agentType),
				"attempt": attempt,
				"error":   err.Error(),
			})
		}
		return out, err
	})
}

// BuildFallbackResponse is the terminal degraded result: low fixed
// confidence, generic suggestions, never an error.
func (a *BaseAgent) BuildFallbackResponse(reason string, suggestions ...Recommendation) *ResearchOutput {
	return &ResearchOutput{
		AgentType:       a.agentType,
		Status:          StatusFallback,
		Recommendations: suggestions,
		Confidence:      0.3,
		Reasoning:       reason,
		Warnings:        []string{fmt.Sprintf("%s research degraded to fallback results", a.agentType)},
	}
}

// BuildErrorResponse is the terminal failed result the orchestrator can
// always safely merge.
func (a *BaseAgent) BuildErrorResponse(err error, missing ...string) *ResearchOutput {
	reasoning := ""
	if err != nil {
		reasoning = err.Error()
	}
	return &ResearchOutput{
		AgentType:         a.agentType,
		Status:            StatusFailed,
		Recommendations:   []Recommendation{},
		Confidence:        0,
		Reasoning:         reasoning,
		MissingComponents: missing,
	}
}
