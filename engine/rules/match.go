package rules

import (
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// MatchesCommand checks if a rule's When criteria match the resolved command.
func MatchesCommand(when types.MatchCriteria, actionID, objectID, targetID string, w world.Model) bool {
	// Action is required and must match.
	if when.Action != actionID {
		return false
	}

	if when.Object != "" && when.Object != objectID {
		return false
	}
	if when.Target != "" && when.Target != targetID {
		return false
	}

	// If When names a trait, the resolved object must carry it.
	if when.ObjectTrait != "" {
		e, ok := w.GetEntity(objectID)
		if !ok || !e.Has(when.ObjectTrait) {
			return false
		}
	}

	return true
}

// Specificity returns a numeric score for ranking rules.
// Higher is more specific.
func Specificity(rule types.RuleDef) int {
	score := 0
	if rule.When.Target != "" {
		score += 4
	}
	if rule.When.Object != "" {
		score += 2
	}
	if rule.When.ObjectTrait != "" {
		score++
	}
	return score
}
