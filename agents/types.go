// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

// Package agents contains the research, validation, and concierge agents
// that turn a travel request into ranked recommendations and an itinerary.
// Agents share a common execution base (timeout, retry, JSON parsing,
// metric emission) and communicate only through the orchestrator-owned
// context between phases.
package agents

import (
	"context"
	"time"
)

// AgentType identifies an agent implementation.
type AgentType string

const (
	AgentTypeLodging    AgentType = "lodging"
	AgentTypeDining     AgentType = "dining"
	AgentTypeActivities AgentType = "activities"
	AgentTypeValidator  AgentType = "validator"
	AgentTypeConcierge  AgentType = "concierge"
)

// PersonaArchetype is the inferred traveler archetype used to bias prompts
// and scoring.
type PersonaArchetype string

const (
	PersonaFoodie     PersonaArchetype = "foodie"
	PersonaFamily     PersonaArchetype = "family"
	PersonaAdventurer PersonaArchetype = "adventurer"
	PersonaCulture    PersonaArchetype = "culture"
	PersonaRelaxation PersonaArchetype = "relaxation"
	PersonaGeneric    PersonaArchetype = "generic"
)

// TravelRequirements is the raw run input.
type TravelRequirements struct {
	Destination     string   `json:"destination"`
	Origin          string   `json:"origin,omitempty"`
	DurationDays    int      `json:"duration_days"`
	Adults          int      `json:"adults"`
	Children        int      `json:"children"`
	Interests       []string `json:"interests,omitempty"`
	BudgetLevel     string   `json:"budget_level,omitempty"`
	DietaryNeeds    []string `json:"dietary_needs,omitempty"`
	Accessibility   []string `json:"accessibility,omitempty"`
	TravelMode      string   `json:"travel_mode,omitempty"`
	AdditionalNotes string   `json:"additional_notes,omitempty"`
}

// PersonaProfile biases prompt content and persona-fit scoring.
type PersonaProfile struct {
	Archetype     PersonaArchetype `json:"archetype"`
	Interests     []string         `json:"interests,omitempty"`
	TravelStyle   string           `json:"travel_style,omitempty"`
	ActivityLevel string           `json:"activity_level,omitempty"`
}

// TravelConstraints are hard limits every agent must respect.
type TravelConstraints struct {
	BudgetLevel   string   `json:"budget_level,omitempty"`
	DietaryNeeds  []string `json:"dietary_needs,omitempty"`
	Accessibility []string `json:"accessibility,omitempty"`
}

// AgentContext is the shared per-run bundle. Immutable within a phase;
// mutated only between phases by the orchestrator, never by agents
// concurrently.
type AgentContext struct {
	RunID            string                       `json:"run_id"`
	Requirements     TravelRequirements           `json:"requirements"`
	Persona          PersonaProfile               `json:"persona"`
	Constraints      TravelConstraints            `json:"constraints"`
	PreviousFindings map[AgentType]ResearchOutput `json:"previous_findings,omitempty"`
}

// TaskSpecification is one unit of research work. Read-only after creation.
type TaskSpecification struct {
	ID             string        `json:"id"`
	AgentType      AgentType     `json:"agent_type"`
	Priority       int           `json:"priority"`
	Description    string        `json:"description"`
	Constraints    []string      `json:"constraints,omitempty"`
	ExpectedOutput string        `json:"expected_output,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty"`
}

// OutputStatus classifies how a research pass concluded.
type OutputStatus string

const (
	StatusSuccess  OutputStatus = "success"
	StatusPartial  OutputStatus = "partial"
	StatusFallback OutputStatus = "fallback"
	StatusFailed   OutputStatus = "failed"
)

// ValidationStatus is set only by the validator.
type ValidationStatus string

const (
	ValidationVerified   ValidationStatus = "verified"
	ValidationProbable   ValidationStatus = "probable"
	ValidationUnverified ValidationStatus = "unverified"
	ValidationNotFound   ValidationStatus = "not_found"
)

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Recommendation is one candidate place or activity.
type Recommendation struct {
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	Description      string           `json:"description,omitempty"`
	Rationale        string           `json:"rationale,omitempty"`
	PersonaFit       int              `json:"persona_fit"`
	Neighborhood     string           `json:"neighborhood,omitempty"`
	Cuisine          string           `json:"cuisine,omitempty"`
	MealType         string           `json:"meal_type,omitempty"`
	PriceRange       string           `json:"price_range,omitempty"`
	DurationHours    float64          `json:"duration_hours,omitempty"`
	Intensity        string           `json:"intensity,omitempty"`
	Walkability      string           `json:"walkability,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status,omitempty"`
	Confidence       float64          `json:"confidence,omitempty"`
	Rating           float64          `json:"rating,omitempty"`
	Coordinates      *Coordinates     `json:"coordinates,omitempty"`
	Hours            string           `json:"hours,omitempty"`
}

// ResearchOutput is one agent's result for one run. Produced exactly once
// per agent per run.
type ResearchOutput struct {
	AgentType         AgentType        `json:"agent_type"`
	Status            OutputStatus     `json:"status"`
	Recommendations   []Recommendation `json:"recommendations"`
	Confidence        float64          `json:"confidence"`
	Reasoning         string           `json:"reasoning,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
	MissingComponents []string         `json:"missing_components,omitempty"`
}

// QualityValidation wraps one recommendation with its validation outcome.
type QualityValidation struct {
	Original     Recommendation   `json:"original"`
	Status       ValidationStatus `json:"status"`
	Confidence   float64          `json:"confidence"`
	Enrichment   *Recommendation  `json:"enrichment,omitempty"`
	Issues       []string         `json:"issues,omitempty"`
	Alternatives []string         `json:"alternatives,omitempty"`
}

// ValidationReport is the validator's output for a run.
type ValidationReport struct {
	Validations       []QualityValidation `json:"validations"`
	RetainedCount     int                 `json:"retained_count"`
	DroppedCount      int                 `json:"dropped_count"`
	OverallConfidence float64             `json:"overall_confidence"`
	Reasoning         string              `json:"reasoning,omitempty"`
}

// ItineraryDay is one planned day.
type ItineraryDay struct {
	Day        int      `json:"day"`
	Theme      string   `json:"theme"`
	Activities []string `json:"activities"`
	Meals      []string `json:"meals"`
}

// Itinerary is the terminal artifact of a run.
type Itinerary struct {
	ID           string         `json:"id,omitempty"`
	Destination  string         `json:"destination"`
	DurationDays int            `json:"duration_days"`
	Days         []ItineraryDay `json:"days"`
	Lodging      []string       `json:"lodging,omitempty"`
	PersonaNotes string         `json:"persona_notes,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// Valid reports whether the itinerary is structurally usable: at least one
// day, and every day carries non-nil activities and meals.
func (i *Itinerary) Valid() bool {
	if i == nil || len(i.Days) == 0 {
		return false
	}
	for _, d := range i.Days {
		if d.Activities == nil || d.Meals == nil {
			return false
		}
	}
	return true
}

// ResearchAgent turns a task plus shared context into domain research.
// Implementations must confine failures to their own output; the
// orchestrator treats a returned error as a degraded result, not an abort.
type ResearchAgent interface {
	Type() AgentType
	Execute(ctx context.Context, task TaskSpecification, actx *AgentContext) (*ResearchOutput, error)
}
