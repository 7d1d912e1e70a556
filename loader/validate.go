package loader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nathoo/fablecore/engine/machine"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// ValidationError collects every problem found in loaded content.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

type validator struct {
	defs     *world.Defs
	errs     []string
	warnings []string
}

func (v *validator) errorf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

func (v *validator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// validate checks referential integrity. Warnings never fail the load.
func validate(defs *world.Defs) ([]string, error) {
	v := &validator{defs: defs}

	if defs.Game.Title == "" {
		v.errorf("Game.title is required")
	}
	if defs.Game.Start == "" {
		v.errorf("Game.start is required")
	} else if _, ok := defs.Rooms[defs.Game.Start]; !ok {
		v.errorf("start room %q not found in defined rooms", defs.Game.Start)
	}

	for _, id := range sortedIDs(defs.Rooms) {
		room := defs.Rooms[id]
		for _, dir := range sortedIDs(room.Exits) {
			if target := room.Exits[dir]; !v.isRoom(target) {
				v.errorf("room %q exit %q points to undefined room %q", id, dir, target)
			}
		}
		if _, clash := defs.Entities[id]; clash {
			v.errorf("room %q shares its id with an entity", id)
		}
	}

	for _, id := range sortedIDs(defs.Entities) {
		ent := defs.Entities[id]
		if ent.Location != "" && !v.exists(ent.Location) {
			v.errorf("entity %q location %q is not a room or entity", id, ent.Location)
		}
		if ent.Location == "" && id != defs.PlayerID() {
			v.warnf("entity %q has no location and starts out of play", id)
		}
	}

	seen := map[string]bool{}
	for _, r := range allRules(defs) {
		if seen[r.ID] {
			v.errorf("duplicate rule ID %q", r.ID)
		}
		seen[r.ID] = true
		where := fmt.Sprintf("rule %q", r.ID)
		for _, ref := range []string{r.When.Object, r.When.Target} {
			if ref != "" && !v.exists(ref) {
				v.warnf("%s matches %q, which is not a defined entity", where, ref)
			}
		}
		v.guards(where, r.Guards)
		v.effects(where, r.Effects)
	}

	for _, h := range defs.Handlers {
		where := fmt.Sprintf("handler %q", h.EventType)
		v.guards(where, h.Guards)
		v.effects(where, h.Effects)
	}
	for _, id := range sortedIDs(defs.Daemons) {
		d := defs.Daemons[id]
		where := fmt.Sprintf("daemon %q", id)
		if d.Chance < 0 || d.Chance > 100 {
			v.errorf("%s chance %d is outside 0..100", where, d.Chance)
		}
		if d.Every < 0 {
			v.errorf("%s every must not be negative", where)
		}
		v.guards(where, d.Guards)
		v.effects(where, d.Effects)
	}
	for _, id := range sortedIDs(defs.Fuses) {
		f := defs.Fuses[id]
		if _, clash := defs.Daemons[id]; clash {
			v.errorf("fuse %q shares its id with a daemon", id)
		}
		where := fmt.Sprintf("fuse %q", id)
		v.guards(where, f.Guards)
		v.effects(where, f.Effects)
	}

	machines := map[string]bool{}
	for _, m := range defs.Machines {
		if machines[m.ID] {
			v.errorf("duplicate machine ID %q", m.ID)
		}
		machines[m.ID] = true
		if err := machine.Check(m.MachineDefinition); err != nil {
			v.errorf("%v", err)
		}
		for _, role := range sortedIDs(m.Bindings) {
			if id := m.Bindings[role]; !v.exists(id) {
				v.errorf("machine %q binds %s to undefined entity %q", m.ID, role, id)
			}
		}
	}

	if len(v.errs) > 0 {
		return v.warnings, &ValidationError{Errors: v.errs}
	}
	return v.warnings, nil
}

func (v *validator) isRoom(id string) bool {
	_, ok := v.defs.Rooms[id]
	return ok
}

// exists reports whether id names a room, an entity or the player.
func (v *validator) exists(id string) bool {
	if v.isRoom(id) || id == v.defs.PlayerID() {
		return true
	}
	_, ok := v.defs.Entities[id]
	return ok
}

// checkRef reports a concrete reference that names nothing. Symbolic
// ($role) and placeholder ({object}) references are resolved per turn.
func (v *validator) checkRef(where, field, id string, room bool) {
	if id == "" || strings.HasPrefix(id, "$") || isTemplate(id) {
		return
	}
	if room && !v.isRoom(id) {
		v.errorf("%s: %s references undefined room %q", where, field, id)
		return
	}
	if !room && !v.exists(id) {
		v.errorf("%s: %s references undefined entity %q", where, field, id)
	}
}

func (v *validator) guards(where string, gs []types.Guard) {
	for _, g := range gs {
		switch g.Type {
		case types.GuardEntity:
			v.checkRef(where, "entity guard", g.Entity, false)
			if g.Property == "" {
				v.errorf("%s: entity guard needs a property", where)
			}
		case types.GuardState:
			if g.Key == "" {
				v.errorf("%s: state guard needs a key", where)
			}
		case types.GuardLocation:
			v.checkRef(where, "location guard", g.Actor, false)
			v.checkRef(where, "location guard", g.Room, false)
		case types.GuardInventory:
			v.checkRef(where, "inventory guard", g.Actor, false)
			v.checkRef(where, "inventory guard", g.Entity, false)
		case types.GuardAnd, types.GuardOr, types.GuardNot:
			if len(g.Conditions) == 0 {
				v.errorf("%s: %s guard needs at least one condition", where, g.Type)
			}
			v.guards(where, g.Conditions)
		case types.GuardCustom:
			if g.Name == "" {
				v.errorf("%s: custom guard needs a name", where)
			}
		default:
			v.errorf("%s: unknown guard type %q", where, g.Type)
		}
	}
}

func (v *validator) effects(where string, effs []types.Effect) {
	for _, eff := range effs {
		str := func(k string) string {
			s, _ := eff.Params[k].(string)
			return s
		}
		switch eff.Type {
		case types.EffectScore, types.EffectFlag, types.EffectMessage, types.EffectEmit, types.EffectSetState:
		case types.EffectMoveEntity:
			v.checkRef(where, "move_entity", str("entityId"), false)
			v.checkRef(where, "move_entity destination", str("destination"), false)
		case types.EffectUpdateEntity:
			v.checkRef(where, "update_entity", str("entityId"), false)
		case types.EffectUpdateExits:
			v.checkRef(where, "update_exits", str("roomId"), true)
			if exits, ok := eff.Params["exits"].(map[string]any); ok {
				for _, dir := range sortedIDs(exits) {
					if dest, ok := exits[dir].(string); ok {
						v.checkRef(where, "update_exits "+dir, dest, true)
					}
				}
			}
		case types.EffectBlock, types.EffectUnblock:
			v.checkRef(where, eff.Type, str("room"), true)
		case types.EffectSchedule:
			id := str("daemon")
			_, daemon := v.defs.Daemons[id]
			_, fuse := v.defs.Fuses[id]
			if !daemon && !fuse {
				v.errorf("%s: schedule references undefined daemon or fuse %q", where, id)
			}
		default:
			v.errorf("%s: unknown effect type %q", where, eff.Type)
		}
	}
}

func allRules(defs *world.Defs) []types.RuleDef {
	all := slices.Clone(defs.GlobalRules)
	for _, id := range sortedIDs(defs.Rooms) {
		all = append(all, defs.Rooms[id].Rules...)
	}
	for _, id := range sortedIDs(defs.Entities) {
		all = append(all, defs.Entities[id].Rules...)
	}
	return all
}

func isTemplate(s string) bool {
	return strings.Contains(s, "{") && strings.Contains(s, "}")
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
