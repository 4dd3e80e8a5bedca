// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"strings"
)

const diningSystemPrompt = "You are a dining research specialist for a travel concierge. " +
	"You recommend restaurants and food experiences matched to a traveler persona, dietary " +
	"constraints, and budget. You always respond with valid JSON and nothing else."

// DiningAgent researches restaurants and food experiences: cuisine, meal
// type, and price fit.
type DiningAgent struct {
	*BaseAgent
}

// NewDiningAgent creates a dining research agent.
func NewDiningAgent(config Config, deps Deps) *DiningAgent {
	return &DiningAgent{
		BaseAgent: NewBaseAgent(AgentTypeDining, diningSystemPrompt, config, deps),
	}
}

// BuildPrompt asks for 3-8 dining options biased to the persona and
// dietary constraints.
func (a *DiningAgent) BuildPrompt(task TaskSpecification, actx *AgentContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend between 3 and 8 restaurants or food experiences in %s.\n",
		actx.Requirements.Destination)
	fmt.Fprintf(&b, "Traveler persona: %s (travel style %s).\n",
		actx.Persona.Archetype, actx.Persona.TravelStyle)
	if len(actx.Constraints.DietaryNeeds) > 0 {
		fmt.Fprintf(&b, "Dietary needs (hard requirement): %s.\n", strings.Join(actx.Constraints.DietaryNeeds, ", "))
	}
	if actx.Constraints.BudgetLevel != "" {
		fmt.Fprintf(&b, "Budget level: %s.\n", actx.Constraints.BudgetLevel)
	}
	fmt.Fprintf(&b, "Cover a spread of meal types (breakfast, lunch, dinner) across a %d-day stay.\n",
		actx.Requirements.DurationDays)
	if task.Description != "" {
		fmt.Fprintf(&b, "Task focus: %s\n", task.Description)
	}
	for _, c := range task.Constraints {
		fmt.Fprintf(&b, "Constraint: %s\n", c)
	}
	b.WriteString(`Respond with JSON: {"recommendations": [{"name", "category", "description", ` +
		`"rationale", "persona_fit" (0-100), "cuisine", "meal_type" (breakfast/lunch/dinner), ` +
		`"neighborhood", "price_range"}], "confidence" (0-1), "reasoning"}`)
	return b.String()
}

// Execute runs the dining research with the base retry discipline.
func (a *DiningAgent) Execute(ctx context.Context, task TaskSpecification, actx *AgentContext) (*ResearchOutput, error) {
	return a.ExecuteWithTimeout(ctx, task.Timeout, func(ctx context.Context) (*ResearchOutput, error) {
		return a.ExecuteWithRetry(ctx, func(ctx context.Context) (*ResearchOutput, error) {
			return a.research(ctx, task, actx)
		})
	})
}

func (a *DiningAgent) research(ctx context.Context, task TaskSpecification, actx *AgentContext) (*ResearchOutput, error) {
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
		return nil, fmt.Errorf("dining agent returned no recommendations")
	}

	var warnings []string
	for i := range parsed.Recommendations {
		rec := &parsed.Recommendations[i]
		if rec.Category == "" {
			rec.Category = "dining"
		}
		if rec.Cuisine == "" {
			warnings = append(warnings, fmt.Sprintf("no cuisine reported for %q", rec.Name))
		}
		rec.MealType = normalizeMealType(rec.MealType)
		rec.PersonaFit = clampFit(rec.PersonaFit)
	}

	status := StatusSuccess
	if len(parsed.Recommendations) < 3 {
		status = StatusPartial
	}
	return &ResearchOutput{
		AgentType:       AgentTypeDining,
		Status:          status,
		Recommendations: parsed.Recommendations,
		Confidence:      clampConfidence(parsed.Confidence),
		Reasoning:       parsed.Reasoning,
		Warnings:        warnings,
	}, nil
}

func normalizeMealType(mealType string) string {
	switch strings.ToLower(strings.TrimSpace(mealType)) {
	case "breakfast", "brunch":
		return "breakfast"
	case "lunch":
		return "lunch"
	case "dinner", "supper":
		return "dinner"
	default:
		return "any"
	}
}
