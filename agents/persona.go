// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package agents

import "strings"

// interest keyword groups for archetype scoring
var archetypeKeywords = map[PersonaArchetype][]string{
	PersonaFoodie:     {"food", "dining", "restaurants", "cuisine", "cooking", "wine", "coffee", "street food"},
	PersonaAdventurer: {"hiking", "adventure", "outdoors", "climbing", "diving", "cycling", "surfing", "skiing"},
	PersonaCulture:    {"museums", "history", "art", "architecture", "temples", "theater", "music", "galleries"},
	PersonaRelaxation: {"beach", "spa", "relaxation", "wellness", "resort", "yoga"},
}

// archetypeOrder fixes the scoring scan order so tied scores always
// resolve to the earliest archetype in this list.
var archetypeOrder = []PersonaArchetype{
	PersonaFoodie,
	PersonaAdventurer,
	PersonaCulture,
	PersonaRelaxation,
}

// InferPersona derives a persona profile from raw requirements using fixed
// rules. Children present always wins: a family trip changes every
// downstream recommendation regardless of stated interests.
func InferPersona(req TravelRequirements) PersonaProfile {
	profile := PersonaProfile{
		Archetype:     PersonaGeneric,
		Interests:     req.Interests,
		ActivityLevel: activityLevel(req.Interests),
		TravelStyle:   travelStyle(req.BudgetLevel),
	}

	if req.Children > 0 {
		profile.Archetype = PersonaFamily
		return profile
	}

	best := 0
	for _, archetype := range archetypeOrder {
		keywords := archetypeKeywords[archetype]
		score := 0
		for _, interest := range req.Interests {
			lowered := strings.ToLower(interest)
			for _, kw := range keywords {
				if strings.Contains(lowered, kw) {
					score++
					break
				}
			}
		}
		if score > best {
			best = score
			profile.Archetype = archetype
		}
	}

	return profile
}

// activityLevel maps interests to a coarse activity level.
func activityLevel(interests []string) string {
	active := 0
	calm := 0
	for _, interest := range interests {
		lowered := strings.ToLower(interest)
		switch {
		case containsAny(lowered, "hiking", "cycling", "climbing", "surfing", "diving", "skiing", "running"):
			active++
		case containsAny(lowered, "spa", "beach", "relaxation", "wellness", "reading"):
			calm++
		}
	}
	switch {
	case active > calm:
		return "high"
	case calm > active:
		return "low"
	default:
		return "moderate"
	}
}

func travelStyle(budgetLevel string) string {
	switch strings.ToLower(budgetLevel) {
	case "luxury", "high":
		return "luxury"
	case "budget", "low":
		return "budget"
	default:
		return "comfort"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
