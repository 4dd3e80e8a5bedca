// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripweaver/concierge/agents"
	"tripweaver/concierge/metrics"
)

// Registry maps agent types to research agent implementations. Unknown
// types resolve to a NullAgent so planned work is never dropped silently.
type Registry struct {
	mu      sync.RWMutex
	agents  map[agents.AgentType]agents.ResearchAgent
	metrics *metrics.Collector
}

// NewRegistry creates a registry pre-populated with the standard research
// agents. configFor supplies per-agent model settings.
func NewRegistry(configFor func(agents.AgentType) agents.Config, deps agents.Deps) *Registry {
	r := &Registry{
		agents:  make(map[agents.AgentType]agents.ResearchAgent),
		metrics: deps.Metrics,
	}
	r.Register(agents.NewLodgingAgent(configFor(agents.AgentTypeLodging), deps))
	r.Register(agents.NewDiningAgent(configFor(agents.AgentTypeDining), deps))
	r.Register(agents.NewActivitiesAgent(configFor(agents.AgentTypeActivities), deps))
	return r
}

// Register adds or replaces an agent by its type.
func (r *Registry) Register(agent agents.ResearchAgent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Type()] = agent
}

// Resolve returns the agent for a type, or a NullAgent when no
// implementation is registered.
func (r *Registry) Resolve(agentType agents.AgentType) agents.ResearchAgent {
	r.mu.RLock()
	agent, ok := r.agents[agentType]
	r.mu.RUnlock()
	if ok {
		return agent
	}
	return &NullAgent{agentType: agentType, metrics: r.metrics}
}

// Known reports whether a real implementation exists for the type.
func (r *Registry) Known(agentType agents.AgentType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[agentType]
	return ok
}

// NullAgent stands in for agent types no implementation covers. It
// produces a tagged fallback output and records a simulated metric so
// planned-but-unserved work stays visible.
type NullAgent struct {
	agentType agents.AgentType
	metrics   *metrics.Collector
}

// Type returns the unserved agent type.
func (a *NullAgent) Type() agents.AgentType { return a.agentType }

// Execute emits a fallback-tagged metric record and returns an empty
// fallback output. Never errors.
func (a *NullAgent) Execute(ctx context.Context, task agents.TaskSpecification, actx *agents.AgentContext) (*agents.ResearchOutput, error) {
	if a.metrics != nil {
		a.metrics.Collect(metrics.AgentPerformanceMetrics{
			ID:            uuid.New().String(),
			AgentType:     string(a.agentType),
			RunID:         actx.RunID,
			RequestID:     task.ID,
			ExecutionTime: 0,
			Confidence:    0.3,
			Success:       true,
			Fallback:      true,
			Timestamp:     time.Now().UTC(),
		})
	}
	return &agents.ResearchOutput{
		AgentType:       a.agentType,
		Status:          agents.StatusFallback,
		Recommendations: []agents.Recommendation{},
		Confidence:      0.3,
		Reasoning:       "no agent implementation registered for " + string(a.agentType),
		Warnings:        []string{"requested research type is not supported"},
	}, nil
}
