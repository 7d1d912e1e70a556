package rules

import (
	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// Bindings exposes the command roles to rule guards as $object, $target
// and $room.
func Bindings(objectID, targetID, roomID string) types.Bindings {
	b := types.Bindings{}
	if objectID != "" {
		b["object"] = objectID
	}
	if targetID != "" {
		b["target"] = targetID
	}
	if roomID != "" {
		b["room"] = roomID
	}
	return b
}

// GuardsPass returns true if all of a rule's guards hold. An empty guard
// list is vacuously true.
func GuardsPass(ev *guard.Evaluator, rule types.RuleDef, w world.Model, b types.Bindings, playerID string) (bool, error) {
	if len(rule.Guards) == 0 {
		return true, nil
	}
	return ev.All(rule.Guards, w, b, playerID)
}
