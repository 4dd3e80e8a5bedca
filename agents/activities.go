// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"strings"
)

const activitiesSystemPrompt = "You are an activities research specialist for a travel concierge. " +
	"You recommend sights, experiences, and excursions matched to a traveler persona and " +
	"activity level. You always respond with valid JSON and nothing else."

// ActivitiesAgent researches things to do: duration, intensity, and
// persona fit.
type ActivitiesAgent struct {
	*BaseAgent
}

// NewActivitiesAgent creates an activities research agent.
func NewActivitiesAgent(config Config, deps Deps) *ActivitiesAgent {
	return &ActivitiesAgent{
		BaseAgent: NewBaseAgent(AgentTypeActivities, activitiesSystemPrompt, config, deps),
	}
}

// BuildPrompt asks for 3-8 activities matched to interests and activity
// level.
func (a *ActivitiesAgent) BuildPrompt(task TaskSpecification, actx *AgentContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend between 3 and 8 activities or sights in %s for a %d-day trip.\n",
		actx.Requirements.Destination, actx.Requirements.DurationDays)
	fmt.Fprintf(&b, "Traveler persona: %s, activity level %s.\n",
		actx.Persona.Archetype, actx.Persona.ActivityLevel)
	if len(actx.Persona.Interests) > 0 {
		fmt.Fprintf(&b, "Stated interests: %s.\n", strings.Join(actx.Persona.Interests, ", "))
	}
	if actx.Requirements.Children > 0 {
		fmt.Fprintf(&b, "The party includes %d children; activities must be family-friendly.\n",
			actx.Requirements.Children)
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
		`"rationale", "persona_fit" (0-100), "neighborhood", "duration_hours" (number), ` +
		`"intensity" (low/moderate/high)}], "confidence" (0-1), "reasoning"}`)
	return b.String()
}

// Execute runs the activities research with the base retry discipline.
func (a *ActivitiesAgent) Execute(ctx context.Context, task TaskSpecification, actx *AgentContext) (*ResearchOutput, error) {
	return a.ExecuteWithTimeout(ctx, task.Timeout, func(ctx context.Context) (*ResearchOutput, error) {
		return a.ExecuteWithRetry(ctx, func(ctx context.Context) (*ResearchOutput, error) {
			return a.research(ctx, task, actx)
		})
	})
}

func (a *ActivitiesAgent) research(ctx context.Context, task TaskSpecification, actx *AgentContext) (*ResearchOutput, error) {
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
		return nil, fmt.Errorf("activities agent returned no recommendations")
	}

	for i := range parsed.Recommendations {
		rec := &parsed.Recommendations[i]
		if rec.Category == "" {
			rec.Category = "activity"
		}
		if rec.DurationHours <= 0 {
			rec.DurationHours = 2
		}
		if rec.Intensity == "" {
			rec.Intensity = "moderate"
		}
		rec.PersonaFit = clampFit(rec.PersonaFit)
	}

	status := StatusSuccess
	if len(parsed.Recommendations) < 3 {
		status = StatusPartial
	}
	return &ResearchOutput{
		AgentType:       AgentTypeActivities,
		Status:          status,
		Recommendations: parsed.Recommendations,
		Confidence:      clampConfidence(parsed.Confidence),
		Reasoning:       parsed.Reasoning,
	}, nil
}
