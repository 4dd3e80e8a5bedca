// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator drives a single itinerary run through its phases:
// context construction, task planning, concurrent research, validation,
// and assembly. One Orchestrator serves many runs; per-run state lives in
// the run itself.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripweaver/concierge/agents"
	"tripweaver/concierge/cost"
	"tripweaver/concierge/llm"
	"tripweaver/concierge/metrics"
	"tripweaver/concierge/shared/logger"
)

// RunState is the orchestration phase marker. Transitions are strictly
// sequential; StateFailed is reachable only from context construction.
type RunState string

const (
	StateContextBuilt     RunState = "context_built"
	StateTasksCreated     RunState = "tasks_created"
	StateResearchExecuted RunState = "research_executed"
	StateValidated        RunState = "validated"
	StateAssembled        RunState = "assembled"
	StateDone             RunState = "done"
	StateFailed           RunState = "failed"
)

// DefaultTaskTimeout bounds a single research task when the task itself
// carries no override.
const DefaultTaskTimeout = 90 * time.Second

// RunCosts summarizes the spend of one run.
type RunCosts struct {
	LLMTokens     int     `json:"llm_tokens"`
	APICalls      int     `json:"api_calls"`
	EstimatedCost float64 `json:"estimated_cost_usd"`
}

// RunResult is the terminal artifact of one orchestration run.
type RunResult struct {
	RunID              string                                   `json:"run_id"`
	Success            bool                                     `json:"success"`
	State              RunState                                 `json:"state"`
	Itinerary          *agents.Itinerary                        `json:"itinerary,omitempty"`
	ItineraryID        string                                   `json:"itinerary_id,omitempty"`
	RawResearch        map[agents.AgentType]agents.ResearchOutput `json:"raw_research,omitempty"`
	ValidationReport   *agents.ValidationReport                 `json:"validation_report,omitempty"`
	Trace              []TraceEntry                             `json:"trace,omitempty"`
	TotalExecutionTime time.Duration                            `json:"total_execution_time_ns"`
	Costs              RunCosts                                 `json:"costs"`
	Error              string                                   `json:"error,omitempty"`
}

// Config tunes one Orchestrator instance.
type Config struct {
	TaskTimeout time.Duration

	// AgentConfigs overrides per-agent model settings; missing entries use
	// agents.DefaultConfig.
	AgentConfigs map[agents.AgentType]agents.Config

	Pricing *cost.PricingConfig
}

// DefaultOrchestratorConfig returns the standard tuning.
func DefaultOrchestratorConfig() Config {
	return Config{TaskTimeout: DefaultTaskTimeout}
}

// Orchestrator owns the run pipeline. Safe for concurrent Run calls.
type Orchestrator struct {
	manager   *llm.Manager
	collector *metrics.Collector
	store     ItineraryStore
	config    Config
	log       *logger.Logger
}

// New creates an Orchestrator. The metrics collector and store may be nil;
// runs then skip recording and persistence respectively.
func New(manager *llm.Manager, collector *metrics.Collector, store ItineraryStore, config Config) (*Orchestrator, error) {
	if manager == nil {
		return nil, fmt.Errorf("orchestrator requires an LLM manager")
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultTaskTimeout
	}
	return &Orchestrator{
		manager:   manager,
		collector: collector,
		store:     store,
		config:    config,
		log:       logger.New("orchestrator"),
	}, nil
}

// run carries the mutable state of one orchestration.
type run struct {
	id        string
	actx      *agents.AgentContext
	tracker   *cost.Tracker
	trace     *Trace
	registry  *Registry
	concierge *agents.ConciergeAgent
	validator *agents.ValidatorAgent
	state     RunState
	started   time.Time
	log       *logger.Logger
}

// Run executes the full pipeline for one set of requirements. It always
// returns a RunResult; Success is false only when context construction
// fails, every later phase degrades instead of aborting.
func (o *Orchestrator) Run(ctx context.Context, req agents.TravelRequirements) *RunResult {
	runID := uuid.New().String()
	started := time.Now()
	log := o.log.With(runID, "")

	r := &run{
		id:      runID,
		tracker: cost.NewTracker(runID, o.config.Pricing),
		trace:   NewTrace(),
		started: started,
		log:     log,
	}

	actx, err := o.buildContext(runID, req)
	if err != nil {
		log.ErrorWithCause("run failed during context construction", err, nil)
		r.trace.Add("orchestrator", "context construction failed: "+err.Error())
		return &RunResult{
			RunID:              runID,
			Success:            false,
			State:              StateFailed,
			Trace:              r.trace.Entries(),
			TotalExecutionTime: time.Since(started),
			Error:              err.Error(),
		}
	}
	r.actx = actx
	r.state = StateContextBuilt
	r.trace.Add("orchestrator", fmt.Sprintf("context built for %s (%d days, persona %s)",
		req.Destination, actx.Requirements.DurationDays, actx.Persona.Archetype))

	deps := agents.Deps{Manager: o.manager, Metrics: o.collector, Costs: r.tracker}
	r.registry = NewRegistry(o.agentConfig, deps)
	r.concierge = agents.NewConciergeAgent(o.agentConfig(agents.AgentTypeConcierge), deps)
	r.validator = agents.NewValidatorAgent(o.agentConfig(agents.AgentTypeValidator), deps)

	tasks := r.concierge.PlanTasks(ctx, r.actx)
	r.state = StateTasksCreated
	r.trace.Add("concierge", fmt.Sprintf("planned %d research tasks", len(tasks)))

	findings := o.executeResearch(ctx, r, tasks)
	// Single writer: findings land in shared context only after every
	// task has settled.
	r.actx.PreviousFindings = findings
	r.state = StateResearchExecuted

	report := r.validator.Validate(ctx, r.actx)
	r.state = StateValidated
	r.trace.Add("validator", report.Reasoning)

	itinerary := o.assemble(ctx, r, report)
	r.state = StateAssembled
	r.trace.Add("concierge", fmt.Sprintf("itinerary assembled with %d days", len(itinerary.Days)))

	itineraryID := o.persist(ctx, r, itinerary)

	r.state = StateDone
	summary := r.tracker.Summary()
	result := &RunResult{
		RunID:              runID,
		Success:            true,
		State:              StateDone,
		Itinerary:          itinerary,
		ItineraryID:        itineraryID,
		RawResearch:        findings,
		ValidationReport:   report,
		Trace:              r.trace.Entries(),
		TotalExecutionTime: time.Since(started),
		Costs: RunCosts{
			LLMTokens:     summary.TotalTokens,
			APICalls:      summary.TotalCalls,
			EstimatedCost: summary.TotalCost,
		},
	}
	log.InfoWithDuration("run complete", float64(result.TotalExecutionTime.Milliseconds()), map[string]interface{}{
		"days":       len(itinerary.Days),
		"llm_tokens": summary.TotalTokens,
		"llm_calls":  summary.TotalCalls,
	})
	return result
}

// buildContext validates requirements and derives persona and constraints.
// This is the only phase whose failure fails the run.
func (o *Orchestrator) buildContext(runID string, req agents.TravelRequirements) (*agents.AgentContext, error) {
	if req.Destination == "" {
		return nil, fmt.Errorf("destination is required")
	}
	if req.DurationDays <= 0 {
		return nil, fmt.Errorf("duration must be at least one day, got %d", req.DurationDays)
	}
	if req.Adults <= 0 {
		return nil, fmt.Errorf("party must include at least one adult")
	}

	return &agents.AgentContext{
		RunID:        runID,
		Requirements: req,
		Persona:      agents.InferPersona(req),
		Constraints: agents.TravelConstraints{
			BudgetLevel:   req.BudgetLevel,
			DietaryNeeds:  req.DietaryNeeds,
			Accessibility: req.Accessibility,
		},
	}, nil
}

func (o *Orchestrator) agentConfig(agentType agents.AgentType) agents.Config {
	if cfg, ok := o.config.AgentConfigs[agentType]; ok {
		return cfg
	}
	return agents.DefaultConfig()
}

// executeResearch fans tasks out concurrently and joins when all settle.
// A task failure is confined to its own slot as a degraded output;
// siblings are unaffected.
func (o *Orchestrator) executeResearch(ctx context.Context, r *run, tasks []agents.TaskSpecification) map[agents.AgentType]agents.ResearchOutput {
	results := make([]*agents.ResearchOutput, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		if task.Timeout <= 0 {
			task.Timeout = o.config.TaskTimeout
		}
		wg.Add(1)
		go func(slot int, task agents.TaskSpecification) {
			defer wg.Done()
			results[slot] = o.executeTask(ctx, r, task)
		}(i, task)
	}
	wg.Wait()

	findings := make(map[agents.AgentType]agents.ResearchOutput, len(tasks))
	for _, out := range results {
		if out != nil {
			findings[out.AgentType] = *out
		}
	}
	return findings
}

// executeTask runs one task through its agent, converting errors and
// panics into degraded outputs.
func (o *Orchestrator) executeTask(ctx context.Context, r *run, task agents.TaskSpecification) (out *agents.ResearchOutput) {
	agent := r.registry.Resolve(task.AgentType)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("research task panicked", map[string]interface{}{
				"agent_type": string(task.AgentType),
				"panic":      fmt.Sprint(rec),
			})
			out = degradedOutput(task.AgentType, fmt.Errorf("agent panic: %v", rec))
			r.trace.Add(string(task.AgentType), "research panicked, degraded output substituted")
		}
	}()

	result, err := agent.Execute(ctx, task, r.actx)
	if err != nil {
		r.log.Warn("research task failed", map[string]interface{}{
			"agent_type": string(task.AgentType),
			"error":      err.Error(),
		})
		r.trace.Add(string(task.AgentType), "research failed: "+err.Error())
		return degradedOutput(task.AgentType, err)
	}
	r.trace.Add(string(task.AgentType), fmt.Sprintf("research %s with %d recommendations",
		result.Status, len(result.Recommendations)))
	return result
}

// degradedOutput is the per-task failure container.
func degradedOutput(agentType agents.AgentType, err error) *agents.ResearchOutput {
	return &agents.ResearchOutput{
		AgentType:         agentType,
		Status:            agents.StatusFailed,
		Recommendations:   []agents.Recommendation{},
		Confidence:        0,
		Reasoning:         "research failed: " + err.Error(),
		MissingComponents: []string{string(agentType) + " recommendations"},
	}
}

// assemble composes the itinerary, falling back to the deterministic
// builder when composition fails or produces an unusable structure.
func (o *Orchestrator) assemble(ctx context.Context, r *run, report *agents.ValidationReport) *agents.Itinerary {
	itinerary, err := r.concierge.ComposeItinerary(ctx, r.actx, report)
	if err == nil {
		return itinerary
	}

	r.log.Warn("itinerary composition failed, building fallback", map[string]interface{}{
		"error": err.Error(),
	})
	r.trace.Add("orchestrator", "composition failed, deterministic fallback itinerary built")
	return FallbackItinerary(r.actx, report)
}

// persist saves the itinerary when a store is configured.
func (o *Orchestrator) persist(ctx context.Context, r *run, itinerary *agents.Itinerary) string {
	if o.store == nil {
		return ""
	}
	id, err := o.store.Save(ctx, itinerary)
	if err != nil {
		// A persistence failure does not fail a completed run.
		r.log.ErrorWithCause("failed to persist itinerary", err, nil)
		r.trace.Add("orchestrator", "itinerary persistence failed: "+err.Error())
		return ""
	}
	return id
}
