package loader

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/types"
)

// ruleMarker is what Rule returns so rooms and entities can scope it.
type ruleMarker struct{ id string }

// registerAPI installs the content DSL as Lua globals. Guard, effect and
// trigger helpers return userdata wrapping the compiled Go value.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerGuards(L)
	registerEffects(L)
	registerMachineHelpers(L)
}

// wrap pushes v as userdata.
func wrap(L *lua.LState, v any) int {
	ud := L.NewUserData()
	ud.Value = v
	L.Push(ud)
	return 1
}

// curried registers name so that name "id" { ... } calls fn.
func curried(L *lua.LState, name string, fn func(L *lua.LState, id string, tbl *lua.LTable)) {
	L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			fn(L, id, L.CheckTable(1))
			return 0
		}))
		return 1
	}))
}

func registerConstructors(L *lua.LState, coll *collector) {
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	curried(L, "Room", func(_ *lua.LState, id string, tbl *lua.LTable) {
		coll.rooms = append(coll.rooms, rawRoom{id: id, table: tbl})
	})
	for name, kind := range map[string]string{
		"Item":    "item",
		"Actor":   "actor",
		"NPC":     "actor",
		"Entity":  "entity",
		"Scenery": "scenery",
	} {
		curried(L, name, func(_ *lua.LState, id string, tbl *lua.LTable) {
			coll.entities = append(coll.entities, rawEntity{id: id, kind: kind, table: tbl})
		})
	}
	curried(L, "Machine", func(_ *lua.LState, id string, tbl *lua.LTable) {
		coll.machines = append(coll.machines, rawMachine{id: id, table: tbl})
	})
	curried(L, "Daemon", func(_ *lua.LState, id string, tbl *lua.LTable) {
		coll.daemons = append(coll.daemons, rawTimer{id: id, table: tbl})
	})
	curried(L, "Fuse", func(_ *lua.LState, id string, tbl *lua.LTable) {
		coll.fuses = append(coll.fuses, rawTimer{id: id, table: tbl})
	})
	curried(L, "Capability", func(_ *lua.LState, name string, tbl *lua.LTable) {
		coll.capabilities[name] = tbl
	})

	L.SetGlobal("Messages", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		tbl.ForEach(func(k, v lua.LValue) {
			key, kok := k.(lua.LString)
			text, vok := v.(lua.LString)
			if !kok || !vok {
				L.ArgError(1, "Messages maps message IDs to strings")
			}
			coll.messages[string(key)] = string(text)
		})
		return 0
	}))

	// Rule("id", when, [guards], then)
	L.SetGlobal("Rule", L.NewFunction(func(L *lua.LState) int {
		r := rawRule{id: L.CheckString(1), when: L.CheckTable(2), scope: "global"}
		if L.GetTop() >= 4 {
			r.guards = L.OptTable(3, nil)
			r.then = L.CheckTable(4)
		} else {
			r.then = L.CheckTable(3)
		}
		r.order = coll.nextSourceOrder()
		coll.rules = append(coll.rules, r)
		return wrap(L, ruleMarker{id: r.id})
	}))

	// On("event.type", { guards = {...}, effects = {...} })
	L.SetGlobal("On", L.NewFunction(func(L *lua.LState) int {
		coll.handlers = append(coll.handlers, rawHandler{eventType: L.CheckString(1), table: L.CheckTable(2)})
		return 0
	}))

	identity := L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	})
	L.SetGlobal("When", identity)
	L.SetGlobal("Then", identity)
}

func checkGuard(L *lua.LState, n int) types.Guard {
	g, ok := L.CheckUserData(n).Value.(types.Guard)
	if !ok {
		L.ArgError(n, "guard expected")
	}
	return g
}

// guardArgs collects every argument from n on as a guard.
func guardArgs(L *lua.LState, n int) []types.Guard {
	var gs []types.Guard
	for i := n; i <= L.GetTop(); i++ {
		gs = append(gs, checkGuard(L, i))
	}
	return gs
}

// propertyPath splits "trait.prop" into its parts; a bare name is an
// entity attribute.
func propertyPath(path string) (trait, prop string) {
	if t, p, ok := strings.Cut(path, "."); ok {
		return t, p
	}
	return "", path
}

func registerGuards(L *lua.LState) {
	fns := map[string]lua.LGFunction{
		"HasItem": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardInventory, Entity: L.CheckString(1)})
		},
		"Holds": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardInventory, Actor: L.CheckString(1), Entity: L.CheckString(2)})
		},
		"InRoom": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardLocation, Room: L.CheckString(1)})
		},
		"At": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardLocation, Actor: L.CheckString(1), Room: L.CheckString(2)})
		},
		"FlagSet": func(L *lua.LState) int {
			return wrap(L, flagGuard(L.CheckString(1)))
		},
		"FlagNot": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardNot, Conditions: []types.Guard{flagGuard(L.CheckString(1))}})
		},
		"StateIs": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardState, Key: L.CheckString(1), Value: toGo(L.Get(2))})
		},
		"PropIs": func(L *lua.LState) int {
			trait, prop := propertyPath(L.CheckString(2))
			return wrap(L, types.Guard{
				Type: types.GuardEntity, Entity: L.CheckString(1),
				Trait: trait, Property: prop, Value: toGo(L.Get(3)),
			})
		},
		"All": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardAnd, Conditions: guardArgs(L, 1)})
		},
		"Any": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardOr, Conditions: guardArgs(L, 1)})
		},
		"Not": func(L *lua.LState) int {
			checkGuard(L, 1)
			return wrap(L, types.Guard{Type: types.GuardNot, Conditions: guardArgs(L, 1)})
		},
		"Check": func(L *lua.LState) int {
			return wrap(L, types.Guard{Type: types.GuardCustom, Name: L.CheckString(1)})
		},
	}
	for name, fn := range fns {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

func flagGuard(name string) types.Guard {
	return types.Guard{Type: types.GuardState, Key: "flag." + name, Value: true}
}

func optMap(L *lua.LState, n int) map[string]any {
	tbl := L.OptTable(n, nil)
	if tbl == nil {
		return nil
	}
	return tableToMap(tbl)
}

func registerEffects(L *lua.LState) {
	fns := map[string]lua.LGFunction{
		"Say": func(L *lua.LState) int {
			return wrap(L, effects.Message(L.CheckString(1), optMap(L, 2)))
		},
		"Score": func(L *lua.LState) int {
			return wrap(L, effects.Score(L.CheckInt(1)))
		},
		"SetFlag": func(L *lua.LState) int {
			return wrap(L, effects.Flag(L.CheckString(1), L.OptBool(2, true)))
		},
		"Emit": func(L *lua.LState) int {
			return wrap(L, effects.Emit(types.Event{
				Type:     L.CheckString(1),
				Entities: map[string]string{},
				Data:     optMap(L, 2),
			}))
		},
		"MoveEntity": func(L *lua.LState) int {
			return wrap(L, effects.MoveEntity(L.CheckString(1), L.OptString(2, "")))
		},
		"GiveItem": func(L *lua.LState) int {
			return wrap(L, effects.MoveEntity(L.CheckString(1), "{player}"))
		},
		"RemoveItem": func(L *lua.LState) int {
			return wrap(L, effects.MoveEntity(L.CheckString(1), ""))
		},
		"MovePlayer": func(L *lua.LState) int {
			return wrap(L, effects.MoveEntity("{player}", L.CheckString(1)))
		},
		"SetProp": func(L *lua.LState) int {
			return wrap(L, effects.UpdateEntity(L.CheckString(1), map[string]any{L.CheckString(2): toGo(L.Get(3))}))
		},
		"SetState": func(L *lua.LState) int {
			return wrap(L, effects.SetState(L.CheckString(1), toGo(L.Get(2))))
		},
		"OpenExit": func(L *lua.LState) int {
			return wrap(L, effects.UpdateExits(L.CheckString(1), map[string]any{L.CheckString(2): L.CheckString(3)}))
		},
		"CloseExit": func(L *lua.LState) int {
			return wrap(L, effects.UpdateExits(L.CheckString(1), map[string]any{L.CheckString(2): nil}))
		},
		"Block": func(L *lua.LState) int {
			return wrap(L, effects.Block(L.CheckString(1), L.CheckString(2), L.OptString(3, "")))
		},
		"Unblock": func(L *lua.LState) int {
			return wrap(L, effects.Unblock(L.CheckString(1), L.CheckString(2)))
		},
		"Schedule": func(L *lua.LState) int {
			return wrap(L, effects.Schedule(L.CheckString(1), L.OptInt(2, 1)))
		},
	}
	for name, fn := range fns {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

// registerMachineHelpers installs trigger constructors and the sm table
// of machine-local effects.
func registerMachineHelpers(L *lua.LState) {
	L.SetGlobal("OnAction", L.NewFunction(func(L *lua.LState) int {
		return wrap(L, types.Trigger{Type: types.TriggerAction, Action: actionID(L.CheckString(1)), Target: L.OptString(2, "")})
	}))
	L.SetGlobal("OnEvent", L.NewFunction(func(L *lua.LState) int {
		return wrap(L, types.Trigger{Type: types.TriggerEvent, Event: L.CheckString(1), Filter: optMap(L, 2)})
	}))
	L.SetGlobal("OnCondition", L.NewFunction(func(L *lua.LState) int {
		g := checkGuard(L, 1)
		return wrap(L, types.Trigger{Type: types.TriggerCondition, Condition: &g})
	}))

	sm := L.NewTable()
	L.SetFuncs(sm, map[string]lua.LGFunction{
		"move": func(L *lua.LState) int {
			return wrap(L, types.MachineEffect{Type: types.MachineMove, Entity: L.CheckString(1), Destination: L.CheckString(2)})
		},
		"remove": func(L *lua.LState) int {
			return wrap(L, types.MachineEffect{Type: types.MachineRemove, Entity: L.CheckString(1)})
		},
		"set_trait": func(L *lua.LState) int {
			return wrap(L, types.MachineEffect{
				Type: types.MachineSetTrait, Entity: L.CheckString(1),
				Trait: L.CheckString(2), Property: L.CheckString(3), Value: toGo(L.Get(4)),
			})
		},
		"set_state": func(L *lua.LState) int {
			return wrap(L, types.MachineEffect{Type: types.MachineSetState, Key: L.CheckString(1), Value: toGo(L.Get(2))})
		},
		"message": func(L *lua.LState) int {
			return wrap(L, types.MachineEffect{Type: types.MachineMessage, Message: L.CheckString(1), Params: optMap(L, 2)})
		},
		"emit": func(L *lua.LState) int {
			return wrap(L, types.MachineEffect{Type: types.MachineEmitEvent, Event: L.CheckString(1), Data: optMap(L, 2)})
		},
		"custom": func(L *lua.LState) int {
			return wrap(L, types.MachineEffect{Type: types.MachineCustom, Handler: L.CheckString(1), Params: optMap(L, 2)})
		},
	})
	L.SetGlobal("sm", sm)
}
