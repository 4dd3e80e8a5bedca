// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"strings"
)

const validatorSystemPrompt = "You are a travel fact-checker. Given candidate recommendations " +
	"for a destination, you assess each one for existence, location consistency, and currency. " +
	"You always respond with valid JSON and nothing else."

const (
	// retentionThreshold: items above it stay even without verification.
	retentionThreshold = 0.6

	// verifiedBonusWeight scales the verified-fraction bonus on the pass
	// confidence.
	verifiedBonusWeight = 0.2

	// maxPassConfidence caps the overall validation confidence.
	maxPassConfidence = 0.95
)

// ValidatorAgent consumes all research output, assigns per-item validation
// status and confidence, enriches incomplete records, and filters the pool.
type ValidatorAgent struct {
	*BaseAgent
}

// NewValidatorAgent creates the quality validator.
func NewValidatorAgent(config Config, deps Deps) *ValidatorAgent {
	return &ValidatorAgent{
		BaseAgent: NewBaseAgent(AgentTypeValidator, validatorSystemPrompt, config, deps),
	}
}

// Validate assesses every recommendation across all findings. A failed
// assessment call degrades to heuristic statuses rather than erroring; the
// validator never aborts a run.
func (a *ValidatorAgent) Validate(ctx context.Context, actx *AgentContext) *ValidationReport {
	flattened := flattenFindings(actx.PreviousFindings)
	if len(flattened) == 0 {
		return &ValidationReport{Reasoning: "no recommendations to validate"}
	}

	assessments, err := a.assess(ctx, actx, flattened)
	if err != nil {
		a.log.Warn("validator assessment failed, using heuristic statuses", map[string]interface{}{
			"error": err.Error(),
			"count": len(flattened),
		})
		assessments = heuristicAssessments(flattened)
	}

	report := &ValidationReport{}
	var sumConfidence float64
	verified := 0

	for i, rec := range flattened {
		v := assessments[i]
		v.Original = rec

		if retain(v) {
			enriched := rec
			enriched.ValidationStatus = v.Status
			enriched.Confidence = v.Confidence
			enrichPlaceholders(&enriched)
			v.Enrichment = &enriched
			report.RetainedCount++
		} else {
			// Dropped silently; a thin result is the expected degrade path.
			report.DroppedCount++
		}

		if v.Status == ValidationVerified {
			verified++
		}
		sumConfidence += v.Confidence
		report.Validations = append(report.Validations, v)
	}

	n := float64(len(flattened))
	confidence := sumConfidence/n + verifiedBonusWeight*(float64(verified)/n)
	if confidence > maxPassConfidence {
		confidence = maxPassConfidence
	}
	report.OverallConfidence = confidence
	report.Reasoning = fmt.Sprintf("validated %d recommendations: %d retained, %d dropped, %d verified",
		len(flattened), report.RetainedCount, report.DroppedCount, verified)
	return report
}

// retain keeps an item when its confidence clears the threshold OR it is
// verified; verification overrides the numeric threshold.
func retain(v QualityValidation) bool {
	return v.Confidence > retentionThreshold || v.Status == ValidationVerified
}

// assess runs one LLM pass over all candidates.
func (a *ValidatorAgent) assess(ctx context.Context, actx *AgentContext, recs []Recommendation) ([]QualityValidation, error) {
	resp, call, err := a.CallLLM(ctx, actx, a.buildPrompt(actx, recs))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Assessments []struct {
			Name         string   `json:"name"`
			Status       string   `json:"status"`
			Confidence   float64  `json:"confidence"`
			Issues       []string `json:"issues"`
			Alternatives []string `json:"alternatives"`
		} `json:"assessments"`
	}
	if err := a.ParseJSONResponse(resp.Content, &parsed); err != nil {
		call.Emit(0)
		return nil, err
	}

	// The validator's own call confidence is the mean of its assessments.
	var sum float64
	for _, item := range parsed.Assessments {
		sum += clampConfidence(item.Confidence)
	}
	if n := len(parsed.Assessments); n > 0 {
		call.Emit(sum / float64(n))
	} else {
		call.Emit(0)
	}

	byName := make(map[string]QualityValidation, len(parsed.Assessments))
	for _, item := range parsed.Assessments {
		byName[strings.ToLower(item.Name)] = QualityValidation{
			Status:       parseValidationStatus(item.Status),
			Confidence:   clampConfidence(item.Confidence),
			Issues:       item.Issues,
			Alternatives: item.Alternatives,
		}
	}

	out := make([]QualityValidation, len(recs))
	for i, rec := range recs {
		if v, ok := byName[strings.ToLower(rec.Name)]; ok {
			out[i] = v
		} else {
			// Model skipped the item; treat as unverified with low trust.
			out[i] = QualityValidation{Status: ValidationUnverified, Confidence: 0.4,
				Issues: []string{"no assessment returned"}}
		}
	}
	return out, nil
}

func (a *ValidatorAgent) buildPrompt(actx *AgentContext, recs []Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess the following %d travel recommendations for %s.\n",
		len(recs), actx.Requirements.Destination)
	b.WriteString("For each, judge whether the place plausibly exists, is located where claimed, and is likely still operating.\n")
	for _, rec := range recs {
		fmt.Fprintf(&b, "- %s (%s", rec.Name, rec.Category)
		if rec.Neighborhood != "" {
			fmt.Fprintf(&b, ", %s", rec.Neighborhood)
		}
		b.WriteString(")\n")
	}
	b.WriteString(`Respond with JSON: {"assessments": [{"name", ` +
		`"status" (verified/probable/unverified/not_found), "confidence" (0-1), ` +
		`"issues" ([]string), "alternatives" ([]string)}]} covering every item by exact name.`)
	return b.String()
}

func parseValidationStatus(s string) ValidationStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verified":
		return ValidationVerified
	case "probable":
		return ValidationProbable
	case "not_found", "notfound":
		return ValidationNotFound
	default:
		return ValidationUnverified
	}
}

// heuristicAssessments derives statuses without a model: items carrying a
// neighborhood and description are probable, bare names unverified.
func heuristicAssessments(recs []Recommendation) []QualityValidation {
	out := make([]QualityValidation, len(recs))
	for i, rec := range recs {
		v := QualityValidation{Status: ValidationUnverified, Confidence: 0.5}
		if rec.Neighborhood != "" && rec.Description != "" {
			v.Status = ValidationProbable
			v.Confidence = 0.65
		}
		out[i] = v
	}
	return out
}

// enrichPlaceholders fills plausible-but-incomplete records with
// deterministic placeholders so downstream assembly always has rating,
// coordinates, and hours fields to work with.
func enrichPlaceholders(rec *Recommendation) {
	if rec.Rating == 0 {
		rec.Rating = placeholderRating(rec.Confidence, rec.PersonaFit)
	}
	if rec.Hours == "" {
		rec.Hours = placeholderHours(rec.Category, rec.MealType)
	}
	if rec.Coordinates == nil {
		rec.Coordinates = &Coordinates{}
	}
}

// placeholderRating maps confidence and fit onto a 3.5-4.8 scale.
func placeholderRating(confidence float64, personaFit int) float64 {
	base := 3.5 + confidence
	if personaFit >= 80 {
		base += 0.2
	}
	if base > 4.8 {
		base = 4.8
	}
	// one decimal place
	return float64(int(base*10)) / 10
}

func placeholderHours(category, mealType string) string {
	switch {
	case strings.Contains(category, "dining") || strings.Contains(category, "restaurant"):
		switch mealType {
		case "breakfast":
			return "07:00-11:00"
		case "lunch":
			return "11:30-14:30"
		case "dinner":
			return "17:30-22:00"
		}
		return "11:00-22:00"
	case strings.Contains(category, "lodging") || strings.Contains(category, "hotel"):
		return "24h"
	default:
		return "09:00-18:00"
	}
}

// flattenFindings unions every agent's recommendations in a stable order.
func flattenFindings(findings map[AgentType]ResearchOutput) []Recommendation {
	var out []Recommendation
	for _, agentType := range []AgentType{AgentTypeLodging, AgentTypeDining, AgentTypeActivities} {
		if output, ok := findings[agentType]; ok {
			out = append(out, output.Recommendations...)
		}
	}
	for agentType, output := range findings {
		switch agentType {
		case AgentTypeLodging, AgentTypeDining, AgentTypeActivities:
			continue
		}
		out = append(out, output.Recommendations...)
	}
	return out
}
