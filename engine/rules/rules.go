// Package rules selects the authored rule, if any, that replaces the
// standard action for a command.
package rules

import (
	"fmt"
	"sort"

	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// Command is the resolved command rules match against.
type Command struct {
	ActionID string
	ObjectID string
	TargetID string
}

// Match is a selected rule and its effects with the command roles
// substituted.
type Match struct {
	Rule    types.RuleDef
	Effects []types.Effect
}

// Evaluate collects candidate rules, filters them on When and guards, ranks
// them and returns the winner. The bool is false when no rule matched and
// the standard action should run.
func Evaluate(w world.Model, defs *world.Defs, ev *guard.Evaluator, cmd Command) (Match, bool, error) {
	playerID := defs.PlayerID()
	room := world.RoomOf(w, playerID)
	b := Bindings(cmd.ObjectID, cmd.TargetID, room)

	for _, bucket := range collect(defs, room, cmd.ObjectID, cmd.TargetID) {
		winner, err := filterRankSelect(bucket, w, ev, b, playerID, cmd)
		if err != nil {
			return Match{}, false, err
		}
		if winner != nil {
			effs := effects.Interpolate(winner.Effects, effects.Context{
				ObjectID: cmd.ObjectID,
				TargetID: cmd.TargetID,
				PlayerID: playerID,
				RoomID:   room,
			})
			return Match{Rule: *winner, Effects: effs}, true, nil
		}
	}
	return Match{}, false, nil
}

// collect gathers candidate rules in resolution order:
// 1. Room-local rules
// 2. Target entity rules
// 3. Object entity rules
// 4. Global rules
func collect(defs *world.Defs, room, objectID, targetID string) [][]types.RuleDef {
	var buckets [][]types.RuleDef

	if r, ok := defs.Rooms[room]; ok && len(r.Rules) > 0 {
		buckets = append(buckets, r.Rules)
	}
	if targetID != "" {
		if ent, ok := defs.Entities[targetID]; ok && len(ent.Rules) > 0 {
			buckets = append(buckets, ent.Rules)
		}
	}
	if objectID != "" && objectID != targetID {
		if ent, ok := defs.Entities[objectID]; ok && len(ent.Rules) > 0 {
			buckets = append(buckets, ent.Rules)
		}
	}
	if len(defs.GlobalRules) > 0 {
		buckets = append(buckets, defs.GlobalRules)
	}
	return buckets
}

// filterRankSelect filters a bucket of rules, ranks them, and returns the
// top-ranked matching rule, or nil if none match.
func filterRankSelect(rules []types.RuleDef, w world.Model, ev *guard.Evaluator,
	b types.Bindings, playerID string, cmd Command) (*types.RuleDef, error) {

	var candidates []types.RuleDef
	for _, rule := range rules {
		if !MatchesCommand(rule.When, cmd.ActionID, cmd.ObjectID, cmd.TargetID, w) {
			continue
		}
		ok, err := GuardsPass(ev, rule, w, b, playerID)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if ok {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Rank: specificity (desc) → priority (desc) → source order (asc).
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := Specificity(candidates[i]), Specificity(candidates[j])
		if si != sj {
			return si > sj
		}
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].SourceOrder < candidates[j].SourceOrder
	})
	return &candidates[0], nil
}

// Fallback returns the authored refusal for an action no rule or standard
// action handles. Resolution: entity fallback → room fallback (action) →
// room fallback (default).
func Fallback(w world.Model, defs *world.Defs, actionID, objectID string) (string, bool) {
	if e, ok := w.GetEntity(objectID); ok {
		if fb, ok := e.Attrs["fallbacks"].(map[string]any); ok {
			if text, ok := fb[actionID].(string); ok {
				return text, true
			}
			if text, ok := fb["default"].(string); ok {
				return text, true
			}
		}
	}

	if r, ok := defs.Rooms[world.RoomOf(w, defs.PlayerID())]; ok {
		if text, ok := r.Fallbacks[actionID]; ok {
			return text, true
		}
		if text, ok := r.Fallbacks["default"]; ok {
			return text, true
		}
	}
	return "", false
}
