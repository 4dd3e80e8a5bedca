// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"strings"
)

const lodgingSystemPrompt = "You are a lodging research specialist for a travel concierge. " +
	"You recommend accommodations matched to a traveler persona and hard constraints. " +
	"You always respond with valid JSON and nothing else."

// LodgingAgent researches accommodations: neighborhoods, walkability, and
// price fit for the active persona.
type LodgingAgent struct {
	*BaseAgent
}

// NewLodgingAgent creates a lodging research agent.
func NewLodgingAgent(config Config, deps Deps) *LodgingAgent {
	return &LodgingAgent{
		BaseAgent: NewBaseAgent(AgentTypeLodging, lodgingSystemPrompt, config, deps),
	}
}

// BuildPrompt asks for 3-8 lodging options biased to the persona.
func (a *LodgingAgent) BuildPrompt(task TaskSpecification, actx *AgentContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend between 3 and 8 places to stay in %s for a %d-day trip.\n",
		actx.Requirements.Destination, actx.Requirements.DurationDays)
	fmt.Fprintf(&b, "Traveler persona: %s (travel style %s, activity level %s).\n",
		actx.Persona.Archetype, actx.Persona.TravelStyle, actx.Persona.ActivityLevel)
	fmt.Fprintf(&b, "Party: %d adults, %d children.\n", actx.Requirements.Adults, actx.Requirements.Children)
	if actx.Constraints.BudgetLevel != "" {
		fmt.Fprintf(&b, "Budget level: %s.\n", actx.Constraints.BudgetLevel)
	}
	if len(actx.Constraints.Accessibility) > 0 {
		fmt.Fprintf(&b, "Accessibility needs: %s.\n", strings.Join(actx.Constraints.Accessibility, ", "))
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "Task focus: %s\n", task.Description)
	}
	for _, c := range task.Constraints {
		fmt.Fprintf(&b, "Constraint: %s\n", c)
	}
	b.WriteString(`Respond with JSON: {"recommendations": [{"name", "category", "description", ` +
		`"rationale", "persona_fit" (0-100), "neighborhood", "walkability" (high/medium/low), ` +
		`"price_range"}], "confidence" (0-1), "reasoning"}`)
	return b.String()
}

// Execute runs the lodging research with the base retry discipline.
func (a *LodgingAgent) Execute(ctx context.Context, task TaskSpecification, actx *AgentContext) (*ResearchOutput, error) {
	return a.ExecuteWithTimeout(ctx, task.Timeout, func(ctx context.Context) (*ResearchOutput, error) {
		return a.ExecuteWithRetry(ctx, func(ctx context.Context) (*ResearchOutput, error) {
			return a.research(ctx, task, actx)
		})
	})
}

func (a *LodgingAgent) research(ctx context.Context, task TaskSpecification, actx *AgentContext) (*ResearchOutput, error) {
	resp, call, err := a.CallLLM(ctx, actx, a.BuildPrompt(task, actx))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Recommendations []Recommendation `json:"recommendations"`
		Confidence      float64          `json:"confidence"`
		Reasoning       string           `json:"reasoning"`
	}
	if err := a.ParseJSONResponse(resp.Content, &parsed); err != nil {
		call.Emit(0)
		return nil, err
	}
	call.Emit(parsed.Confidence)
	if len(parsed.Recommendations) == 0 {
		return nil, fmt.Errorf("lodging agent returned no recommendations")
	}

	for i := range parsed.Recommendations {
		if parsed.Recommendations[i].Category == "" {
			parsed.Recommendations[i].Category = "lodging"
		}
		parsed.Recommendations[i].PersonaFit = clampFit(parsed.Recommendations[i].PersonaFit)
	}

	status := StatusSuccess
	if len(parsed.Recommendations) < 3 {
		status = StatusPartial
	}
	return &ResearchOutput{
		AgentType:       AgentTypeLodging,
		Status:          status,
		Recommendations: parsed.Recommendations,
		Confidence:      clampConfidence(parsed.Confidence),
		Reasoning:       parsed.Reasoning,
	}, nil
}

func clampFit(fit int) int {
	if fit < 0 {
		return 0
	}
	if fit > 100 {
		return 100
	}
	return fit
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
