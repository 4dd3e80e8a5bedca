// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const conciergeSystemPrompt = "You are the head concierge of a travel planning service. " +
	"You decompose trips into research tasks and compose research results into day-by-day " +
	"itineraries. You always respond with valid JSON and nothing else."

// ConciergeAgent is the planning agent: it proposes the research task list
// and composes the final itinerary from validated findings.
type ConciergeAgent struct {
	*BaseAgent
}

// NewConciergeAgent creates the concierge agent.
func NewConciergeAgent(config Config, deps Deps) *ConciergeAgent {
	return &ConciergeAgent{
		BaseAgent: NewBaseAgent(AgentTypeConcierge, conciergeSystemPrompt, config, deps),
	}
}

// PlanTasks asks the model for a research task list. A malformed or failed
// plan falls back to the fixed minimal set; there is always at least one
// research task.
func (a *ConciergeAgent) PlanTasks(ctx context.Context, actx *AgentContext) []TaskSpecification {
	tasks, err := a.planTasks(ctx, actx)
	if err != nil || len(tasks) == 0 {
		if err != nil {
			a.log.Warn("task planning failed, using minimal task set", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return MinimalTaskSet()
	}
	return tasks
}

func (a *ConciergeAgent) planTasks(ctx context.Context, actx *AgentContext) ([]TaskSpecification, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan research tasks for a %d-day trip to %s for a %s traveler "+
		"(%d adults, %d children).\n",
		actx.Requirements.DurationDays, actx.Requirements.Destination,
		actx.Persona.Archetype, actx.Requirements.Adults, actx.Requirements.Children)
	b.WriteString("Available research agents: lodging, dining, activities.\n")
	b.WriteString(`Respond with JSON: {"tasks": [{"agent_type" (lodging/dining/activities), ` +
		`"priority" (1 = highest), "description", "constraints" ([]string), "expected_output"}]}`)

	resp, call, err := a.CallLLM(ctx, actx, b.String())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Tasks []struct {
			AgentType      string   `json:"agent_type"`
			Priority       int      `json:"priority"`
			Description    string   `json:"description"`
			Constraints    []string `json:"constraints"`
			ExpectedOutput string   `json:"expected_output"`
		} `json:"tasks"`
	}
	if err := a.ParseJSONResponse(resp.Content, &parsed); err != nil {
		call.Emit(0)
		return nil, err
	}
	// Plans carry no model-reported confidence; a parsed plan counts as full.
	call.Emit(1)

	var tasks []TaskSpecification
	for _, t := range parsed.Tasks {
		agentType := AgentType(strings.ToLower(strings.TrimSpace(t.AgentType)))
		switch agentType {
		case AgentTypeLodging, AgentTypeDining, AgentTypeActivities:
		default:
			// Unknown agent types still become tasks; the registry resolves
			// them to a NullAgent rather than dropping the work silently.
			if agentType == "" {
				continue
			}
		}
		tasks = append(tasks, TaskSpecification{
			ID:             uuid.New().String(),
			AgentType:      agentType,
			Priority:       t.Priority,
			Description:    t.Description,
			Constraints:    t.Constraints,
			ExpectedOutput: t.ExpectedOutput,
		})
	}
	return tasks, nil
}

// MinimalTaskSet is the fixed fallback plan: lodging plus dining.
func MinimalTaskSet() []TaskSpecification {
	return []TaskSpecification{
		{
			ID:          uuid.New().String(),
			AgentType:   AgentTypeLodging,
			Priority:    1,
			Description: "Find places to stay matching the traveler profile",
		},
		{
			ID:          uuid.New().String(),
			AgentType:   AgentTypeDining,
			Priority:    2,
			Description: "Find places to eat matching the traveler profile",
		},
	}
}

// ComposeItinerary asks the model to arrange validated recommendations
// into a day-by-day itinerary. Returns an error when the call fails or the
// structure is unusable; the orchestrator then builds the deterministic
// fallback itinerary.
func (a *ConciergeAgent) ComposeItinerary(ctx context.Context, actx *AgentContext, report *ValidationReport) (*Itinerary, error) {
	retained := RetainedRecommendations(report)
	if len(retained) == 0 {
		return nil, fmt.Errorf("no validated recommendations to compose from")
	}

	resp, call, err := a.CallLLM(ctx, actx, a.buildComposePrompt(actx, retained))
	if err != nil {
		return nil, err
	}

	var itinerary Itinerary
	if err := a.ParseJSONResponse(resp.Content, &itinerary); err != nil {
		call.Emit(0)
		return nil, err
	}
	if report.OverallConfidence > 0 {
		call.Emit(report.OverallConfidence)
	} else {
		call.Emit(1)
	}

	itinerary.Destination = actx.Requirements.Destination
	itinerary.DurationDays = actx.Requirements.DurationDays
	for i := range itinerary.Days {
		if itinerary.Days[i].Day == 0 {
			itinerary.Days[i].Day = i + 1
		}
		if itinerary.Days[i].Activities == nil {
			itinerary.Days[i].Activities = []string{}
		}
		if itinerary.Days[i].Meals == nil {
			itinerary.Days[i].Meals = []string{}
		}
	}
	if !itinerary.Valid() {
		return nil, fmt.Errorf("composed itinerary is structurally invalid")
	}
	return &itinerary, nil
}

func (a *ConciergeAgent) buildComposePrompt(actx *AgentContext, retained []Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compose a %d-day itinerary for %s from these validated recommendations:\n",
		actx.Requirements.DurationDays, actx.Requirements.Destination)
	for _, rec := range retained {
		fmt.Fprintf(&b, "- %s (%s", rec.Name, rec.Category)
		if rec.Neighborhood != "" {
			fmt.Fprintf(&b, ", %s", rec.Neighborhood)
		}
		b.WriteString(")\n")
	}
	fmt.Fprintf(&b, "Traveler persona: %s, activity level %s.\n",
		actx.Persona.Archetype, actx.Persona.ActivityLevel)
	b.WriteString(`Respond with JSON: {"days": [{"day" (1-based), "theme", ` +
		`"activities" ([]string), "meals" ([]string)}], "lodging" ([]string), "persona_notes"}`)
	return b.String()
}

// RetainedRecommendations extracts the enriched items that survived
// validation, in report order.
func RetainedRecommendations(report *ValidationReport) []Recommendation {
	if report == nil {
		return nil
	}
	var out []Recommendation
	for _, v := range report.Validations {
		if v.Enrichment != nil {
			out = append(out, *v.Enrichment)
		}
	}
	return out
}
