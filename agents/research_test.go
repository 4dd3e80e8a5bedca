// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"strings"
	"testing"
	"time"
)

func researchTask(agentType AgentType) TaskSpecification {
	return TaskSpecification{
		ID:          "task-1",
		AgentType:   agentType,
		Priority:    1,
		Description: "walkable and central",
	}
}

func TestLodgingExecuteSuccess(t *testing.T) {
	body := `{"recommendations": [
		{"name": "Hotel A", "neighborhood": "Gion", "persona_fit": 85, "walkability": "high"},
		{"name": "Hotel B", "neighborhood": "Station", "persona_fit": 120},
		{"name": "Hotel C", "neighborhood": "Arashiyama", "persona_fit": -5}
	], "confidence": 0.85, "reasoning": "central picks"}`
	provider := &scriptedProvider{name: "p", results: []scriptedResult{{content: body}}}
	agent := NewLodgingAgent(DefaultConfig(), testDeps(t, nil, provider))

	out, err := agent.Execute(context.Background(), researchTask(AgentTypeLodging), testContext())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Status != StatusSuccess {
		t.Errorf("status = %s, want success", out.Status)
	}
	if out.AgentType != AgentTypeLodging {
		t.Errorf("agent type = %s", out.AgentType)
	}
	if len(out.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(out.Recommendations))
	}
	// Missing category defaults, out-of-range fits clamp.
	if out.Recommendations[0].Category != "lodging" {
		t.Errorf("category not defaulted: %q", out.Recommendations[0].Category)
	}
	if out.Recommendations[1].PersonaFit != 100 || out.Recommendations[2].PersonaFit != 0 {
		t.Errorf("persona fit not clamped: %d, %d",
			out.Recommendations[1].PersonaFit, out.Recommendations[2].PersonaFit)
	}
	if out.Confidence != 0.85 {
		t.Errorf("confidence = %f", out.Confidence)
	}
}

func TestLodgingExecuteRecordsConfidence(t *testing.T) {
	body := `{"recommendations": [
		{"name": "Hotel A"}, {"name": "Hotel B"}, {"name": "Hotel C"}
	], "confidence": 0.9}`
	provider := &scriptedProvider{name: "p", results: []scriptedResult{{content: body}}}
	collector, store := newTestCollector()
	defer collector.Close()
	agent := NewLodgingAgent(DefaultConfig(), testDeps(t, collector, provider))

	if _, err := agent.Execute(context.Background(), researchTask(AgentTypeLodging), testContext()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	records, _ := store.Query(context.Background(), "lodging", time.Time{}, time.Now().Add(time.Hour))
	if len(records) != 1 {
		t.Fatalf("expected 1 metric record, got %d", len(records))
	}
	if !records[0].Success || records[0].Confidence != 0.9 {
		t.Errorf("record must carry the parsed confidence: %+v", records[0])
	}
	if alerts := collector.GetAlerts("lodging", ""); len(alerts) != 0 {
		t.Errorf("confident research pass must not alert, got %+v", alerts)
	}
}

func TestLodgingExecutePartialBelowThree(t *testing.T) {
	body := `{"recommendations": [{"name": "Only One"}], "confidence": 0.6}`
	provider := &scriptedProvider{name: "p", results: []scriptedResult{{content: body}}}
	agent := NewLodgingAgent(DefaultConfig(), testDeps(t, nil, provider))

	out, err := agent.Execute(context.Background(), researchTask(AgentTypeLodging), testContext())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Status != StatusPartial {
		t.Errorf("status = %s, want partial", out.Status)
	}
}

func TestLodgingExecuteRetriesThenFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 1 // keep the test free of backoff sleeps
	provider := &scriptedProvider{name: "p", results: []scriptedResult{{content: "not json"}}}
	agent := NewLodgingAgent(cfg, testDeps(t, nil, provider))

	_, err := agent.Execute(context.Background(), researchTask(AgentTypeLodging), testContext())
	if err == nil {
		t.Fatal("expected error for unparseable response")
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 call, got %d", provider.calls)
	}
}

func TestDiningExecuteNormalizesMealTypes(t *testing.T) {
	body := `{"recommendations": [
		{"name": "Cafe", "meal_type": "Brunch"},
		{"name": "Izakaya", "meal_type": "supper"},
		{"name": "Stand", "meal_type": ""}
	], "confidence": 0.7}`
	provider := &scriptedProvider{name: "p", results: []scriptedResult{{content: body}}}
	agent := NewDiningAgent(DefaultConfig(), testDeps(t, nil, provider))

	out, err := agent.Execute(context.Background(), researchTask(AgentTypeDining), testContext())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := []string{
		out.Recommendations[0].MealType,
		out.Recommendations[1].MealType,
		out.Recommendations[2].MealType,
	}
	want := []string{"breakfast", "dinner", "any"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("meal type [%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if out.Recommendations[0].Category != "dining" {
		t.Errorf("category not defaulted: %q", out.Recommendations[0].Category)
	}
}

func TestDiningPromptCarriesDietaryNeeds(t *testing.T) {
	agent := NewDiningAgent(DefaultConfig(), Deps{})
	actx := testContext()
	actx.Constraints.DietaryNeeds = []string{"vegetarian", "nut allergy"}

	prompt := agent.BuildPrompt(researchTask(AgentTypeDining), actx)
	if !strings.Contains(prompt, "vegetarian") || !strings.Contains(prompt, "nut allergy") {
		t.Errorf("dietary needs missing from prompt:\n%s", prompt)
	}
}

func TestActivitiesExecuteDefaults(t *testing.T) {
	body := `{"recommendations": [
		{"name": "Walking Tour"},
		{"name": "Museum", "duration_hours": 1.5, "intensity": "low"}
	], "confidence": 0.75}`
	provider := &scriptedProvider{name: "p", results: []scriptedResult{{content: body}}}
	agent := NewActivitiesAgent(DefaultConfig(), testDeps(t, nil, provider))

	out, err := agent.Execute(context.Background(), researchTask(AgentTypeActivities), testContext())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Recommendations[0].DurationHours != 2 {
		t.Errorf("duration not defaulted: %f", out.Recommendations[0].DurationHours)
	}
	if out.Recommendations[0].Intensity != "moderate" {
		t.Errorf("intensity not defaulted: %q", out.Recommendations[0].Intensity)
	}
	if out.Recommendations[1].DurationHours != 1.5 || out.Recommendations[1].Intensity != "low" {
		t.Errorf("explicit fields overwritten: %+v", out.Recommendations[1])
	}
}

func TestActivitiesPromptMentionsChildren(t *testing.T) {
	agent := NewActivitiesAgent(DefaultConfig(), Deps{})
	actx := testContext()
	actx.Requirements.Children = 2
	actx.Persona.Archetype = PersonaFamily

	prompt := agent.BuildPrompt(researchTask(AgentTypeActivities), actx)
	if !strings.Contains(strings.ToLower(prompt), "famil") {
		t.Errorf("family focus missing from prompt:\n%s", prompt)
	}
}
