// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"fmt"
	"strings"

	"tripweaver/concierge/agents"
)

// FallbackItinerary deterministically buckets validated recommendations
// into days when LLM composition fails. The result is always structurally
// valid: at least one day, every day with non-nil activities and meals.
func FallbackItinerary(actx *agents.AgentContext, report *agents.ValidationReport) *agents.Itinerary {
	days := actx.Requirements.DurationDays
	if days < 1 {
		days = 1
	}

	var lodging []string
	var meals []string
	var activities []string
	for _, rec := range agents.RetainedRecommendations(report) {
		switch {
		case isLodgingCategory(rec.Category):
			lodging = append(lodging, rec.Name)
		case isDiningCategory(rec.Category) || rec.MealType != "":
			meals = append(meals, rec.Name)
		default:
			activities = append(activities, rec.Name)
		}
	}

	itinerary := &agents.Itinerary{
		Destination:  actx.Requirements.Destination,
		DurationDays: days,
		Lodging:      lodging,
		PersonaNotes: fmt.Sprintf("Planned for a %s traveler.", actx.Persona.Archetype),
	}
	if len(meals) == 0 && len(activities) == 0 {
		itinerary.Warnings = append(itinerary.Warnings,
			"no validated recommendations available; itinerary skeleton only")
	}

	for day := 1; day <= days; day++ {
		itinerary.Days = append(itinerary.Days, agents.ItineraryDay{
			Day:        day,
			Theme:      fmt.Sprintf("Day %d in %s", day, actx.Requirements.Destination),
			Activities: bucket(activities, day-1, days),
			Meals:      bucket(meals, day-1, days),
		})
	}
	return itinerary
}

// bucket deals items round-robin: item i goes to day i mod days. Always
// returns a non-nil slice.
func bucket(items []string, day, days int) []string {
	out := []string{}
	for i, item := range items {
		if i%days == day {
			out = append(out, item)
		}
	}
	return out
}

func isLodgingCategory(category string) bool {
	c := strings.ToLower(category)
	return strings.Contains(c, "lodging") || strings.Contains(c, "hotel") ||
		strings.Contains(c, "accommodation")
}

func isDiningCategory(category string) bool {
	c := strings.ToLower(category)
	return strings.Contains(c, "dining") || strings.Contains(c, "restaurant") ||
		strings.Contains(c, "food") || strings.Contains(c, "cafe")
}
