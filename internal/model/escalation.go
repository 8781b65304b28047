// Package model implements the fixed model-tier escalation ladder used to
// pick which model an agent invocation runs under (spec 4.1.10), generalizing
// the teacher executor's single static Config.Model field into a ladder keyed
// by attempt count.
package model

import "strings"

// Tiers lists the rungs of the escalation ladder, ordered cheapest to most capable.
var Tiers = []string{"haiku", "sonnet", "opus"}

func indexOf(tier string) int {
	for i, t := range Tiers {
		if t == tier {
			return i
		}
	}
	return -1
}

// Effective computes the model to use for a given attempt, per spec 4.1.10:
//
//	effective_model(base, attempt) = tiers[min(index(base) + (attempt-1)/escalateAfter, index(maxModel))]
//
// An unknown base model (not one of Tiers) passes through unchanged, and
// escalation is skipped entirely when enabled is false or escalateAfter <= 0.
func Effective(baseModel string, attempt int, enabled bool, escalateAfter int, maxModel string) string {
	base := strings.ToLower(baseModel)
	baseIdx := indexOf(base)

	if !enabled || escalateAfter <= 0 || baseIdx == -1 {
		return baseModel
	}

	maxIdx := indexOf(strings.ToLower(maxModel))
	if maxIdx == -1 {
		maxIdx = len(Tiers) - 1
	}

	if attempt < 1 {
		attempt = 1
	}
	step := (attempt - 1) / escalateAfter
	idx := baseIdx + step
	if idx > maxIdx {
		idx = maxIdx
	}
	if idx < 0 {
		idx = 0
	}
	return Tiers[idx]
}

// ForValidation returns the model a validator task should run, ignoring
// escalation entirely (spec 4.1.10: "Validator tasks always use
// validation_model ignoring escalation").
func ForValidation(validationModel, fallback string) string {
	if validationModel != "" {
		return validationModel
	}
	return fallback
}
