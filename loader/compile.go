package loader

import (
	"fmt"
	"math"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/parser"
	"github.com/nathoo/fablecore/engine/stdlib"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

type rawRoom struct {
	id    string
	table *lua.LTable
}

type rawEntity struct {
	id    string
	kind  string
	table *lua.LTable
}

type rawRule struct {
	id     string
	when   *lua.LTable
	guards *lua.LTable // may be nil
	then   *lua.LTable
	scope  string
	order  int
}

type rawHandler struct {
	eventType string
	table     *lua.LTable
}

type rawMachine struct {
	id    string
	table *lua.LTable
}

// rawTimer is a daemon or fuse table.
type rawTimer struct {
	id    string
	table *lua.LTable
}

// reserved entity fields; everything else becomes an attribute.
var entityFields = map[string]bool{"name": true, "location": true, "traits": true, "rules": true}

func compile(coll *collector) (*world.Defs, error) {
	defs := &world.Defs{
		Rooms:        map[string]types.RoomDef{},
		Entities:     map[string]types.EntityDef{},
		Daemons:      map[string]types.DaemonDef{},
		Fuses:        map[string]types.FuseDef{},
		Messages:     coll.messages,
		Capabilities: map[string]map[string]any{},
	}
	if coll.game != nil {
		defs.Game = compileGame(coll.game)
	}

	rules := make([]types.RuleDef, len(coll.rules))
	for i, r := range coll.rules {
		rd, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		rules[i] = rd
	}
	scoped := make([]bool, len(rules))
	claim := func(owner string, tbl *lua.LTable) ([]types.RuleDef, error) {
		if tbl == nil {
			return nil, nil
		}
		var out []types.RuleDef
		for i := 1; i <= tbl.Len(); i++ {
			m, ok := userValue(tbl.RawGetInt(i)).(ruleMarker)
			if !ok {
				return nil, fmt.Errorf("%s: rules must be created with Rule()", owner)
			}
			j := slices.IndexFunc(rules, func(r types.RuleDef) bool { return r.ID == m.id })
			for j >= 0 && scoped[j] {
				j = nextRule(rules, m.id, j+1)
			}
			if j < 0 {
				return nil, fmt.Errorf("%s: rule %q is already scoped", owner, m.id)
			}
			scoped[j] = true
			rd := rules[j]
			rd.Scope = owner
			out = append(out, rd)
		}
		return out, nil
	}

	for _, rr := range coll.rooms {
		room, err := compileRoom(rr)
		if err != nil {
			return nil, err
		}
		if room.Rules, err = claim("room:"+rr.id, getTable(rr.table, "rules")); err != nil {
			return nil, err
		}
		defs.Rooms[rr.id] = room
	}
	for _, re := range coll.entities {
		ent, err := compileEntity(re)
		if err != nil {
			return nil, err
		}
		if ent.Rules, err = claim("entity:"+re.id, getTable(re.table, "rules")); err != nil {
			return nil, err
		}
		defs.Entities[re.id] = ent
	}
	for i, rd := range rules {
		if !scoped[i] {
			defs.GlobalRules = append(defs.GlobalRules, rd)
		}
	}

	player := defs.PlayerID()
	for _, rh := range coll.handlers {
		h, err := compileHandler(rh)
		if err != nil {
			return nil, err
		}
		h.Effects = bindPlayer(h.Effects, player)
		defs.Handlers = append(defs.Handlers, h)
	}
	for _, rm := range coll.machines {
		m, err := compileMachine(rm)
		if err != nil {
			return nil, err
		}
		defs.Machines = append(defs.Machines, m)
	}
	for _, rt := range coll.daemons {
		d, err := compileDaemon(rt)
		if err != nil {
			return nil, err
		}
		d.Effects = bindPlayer(d.Effects, player)
		defs.Daemons[d.ID] = d
	}
	for _, rt := range coll.fuses {
		f, err := compileFuse(rt)
		if err != nil {
			return nil, err
		}
		f.Effects = bindPlayer(f.Effects, player)
		defs.Fuses[f.ID] = f
	}
	for name, tbl := range coll.capabilities {
		defs.Capabilities[name] = tableToMap(tbl)
	}
	return defs, nil
}

// nextRule finds the next rule named id at or after from.
func nextRule(rules []types.RuleDef, id string, from int) int {
	for i := from; i < len(rules); i++ {
		if rules[i].ID == id {
			return i
		}
	}
	return -1
}

// bindPlayer fills in {player} for effects that run outside a command,
// leaving the other placeholders untouched.
func bindPlayer(effs []types.Effect, playerID string) []types.Effect {
	if len(effs) == 0 {
		return effs
	}
	return effects.Interpolate(effs, effects.Context{
		ObjectID: "{object}",
		TargetID: "{target}",
		PlayerID: playerID,
		RoomID:   "{room}",
	})
}

func compileGame(tbl *lua.LTable) types.GameDef {
	return types.GameDef{
		Title:   getString(tbl, "title"),
		Author:  getString(tbl, "author"),
		Version: getString(tbl, "version"),
		Start:   getString(tbl, "start"),
		Intro:   getString(tbl, "intro"),
		Player:  getString(tbl, "player"),
		Seed:    int64(getNumber(tbl, "seed")),
	}
}

// actionID maps an authored verb to its action ID. Dotted names are
// already action IDs.
func actionID(verb string) string {
	if strings.Contains(verb, ".") {
		return verb
	}
	return parser.ActionFor(parser.Canonical(verb))
}

func compileRule(r rawRule) (types.RuleDef, error) {
	when := types.MatchCriteria{
		Action:      getString(r.when, "action"),
		Object:      getString(r.when, "object"),
		Target:      getString(r.when, "target"),
		ObjectTrait: getString(r.when, "trait"),
	}
	if when.Action == "" {
		when.Action = getString(r.when, "verb")
	}
	if when.Action == "" {
		return types.RuleDef{}, fmt.Errorf("rule %q: When needs an action or verb", r.id)
	}
	when.Action = actionID(when.Action)

	guards, err := guardList(r.guards)
	if err != nil {
		return types.RuleDef{}, fmt.Errorf("rule %q: %w", r.id, err)
	}
	effs, err := effectList(r.then)
	if err != nil {
		return types.RuleDef{}, fmt.Errorf("rule %q: %w", r.id, err)
	}
	return types.RuleDef{
		ID:          r.id,
		Scope:       r.scope,
		When:        when,
		Guards:      guards,
		Effects:     effs,
		Priority:    getInt(r.when, "priority"),
		SourceOrder: r.order,
	}, nil
}

func compileRoom(r rawRoom) (types.RoomDef, error) {
	traits, err := compileTraits(getTable(r.table, "traits"))
	if err != nil {
		return types.RoomDef{}, fmt.Errorf("room %q: %w", r.id, err)
	}
	room := types.RoomDef{
		ID:          r.id,
		Name:        getString(r.table, "name"),
		Description: getString(r.table, "description"),
		Exits:       tableToStringMap(getTable(r.table, "exits")),
		Traits:      traits,
	}
	if fb := tableToStringMap(getTable(r.table, "fallbacks")); fb != nil {
		room.Fallbacks = make(map[string]string, len(fb))
		for verb, text := range fb {
			if verb != "default" {
				verb = actionID(verb)
			}
			room.Fallbacks[verb] = text
		}
	}
	return room, nil
}

func compileEntity(r rawEntity) (types.EntityDef, error) {
	traits, err := compileTraits(getTable(r.table, "traits"))
	if err != nil {
		return types.EntityDef{}, fmt.Errorf("entity %q: %w", r.id, err)
	}
	kind := r.kind
	switch kind {
	case "scenery":
		kind = "entity"
		traits = ensureTrait(traits, stdlib.TraitScenery)
	case "actor":
		traits = ensureTrait(traits, stdlib.TraitActor)
	}

	attrs := map[string]any{}
	r.table.ForEach(func(k, v lua.LValue) {
		if key, ok := k.(lua.LString); ok && !entityFields[string(key)] {
			attrs[string(key)] = toGo(v)
		}
	})
	return types.EntityDef{
		ID:       r.id,
		Name:     getString(r.table, "name"),
		Kind:     kind,
		Location: getString(r.table, "location"),
		Attrs:    attrs,
		Traits:   traits,
	}, nil
}

func ensureTrait(traits []types.TraitDef, typ string) []types.TraitDef {
	if slices.ContainsFunc(traits, func(t types.TraitDef) bool { return t.Type == typ }) {
		return traits
	}
	return append(traits, types.TraitDef{Type: typ})
}

// compileTraits accepts bare trait names in the array part and
// name = { props } pairs. A "claims" list inside the props names the
// actions the trait handles.
func compileTraits(tbl *lua.LTable) ([]types.TraitDef, error) {
	if tbl == nil {
		return nil, nil
	}
	var out []types.TraitDef
	for i := 1; i <= tbl.Len(); i++ {
		name, ok := tbl.RawGetInt(i).(lua.LString)
		if !ok {
			return nil, fmt.Errorf("trait %d: expected a trait name", i)
		}
		out = append(out, types.TraitDef{Type: string(name)})
	}

	var named []types.TraitDef
	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || err != nil {
			return
		}
		props, ok := v.(*lua.LTable)
		if !ok {
			err = fmt.Errorf("trait %q: expected a property table", string(key))
			return
		}
		td := types.TraitDef{Type: string(key), Props: map[string]any{}}
		props.ForEach(func(pk, pv lua.LValue) {
			name, ok := pk.(lua.LString)
			if !ok {
				return
			}
			if name == "claims" {
				for _, verb := range toStrings(pv) {
					td.Capabilities = append(td.Capabilities, actionID(verb))
				}
				return
			}
			td.Props[string(name)] = toGo(pv)
		})
		named = append(named, td)
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(named, func(a, b types.TraitDef) int { return strings.Compare(a.Type, b.Type) })
	return append(out, named...), nil
}

func compileHandler(r rawHandler) (types.EventHandler, error) {
	guards, err := guardList(getTable(r.table, "guards"))
	if err != nil {
		return types.EventHandler{}, fmt.Errorf("handler %q: %w", r.eventType, err)
	}
	effs, err := effectList(getTable(r.table, "effects"))
	if err != nil {
		return types.EventHandler{}, fmt.Errorf("handler %q: %w", r.eventType, err)
	}
	return types.EventHandler{EventType: r.eventType, Guards: guards, Effects: effs}, nil
}

func compileDaemon(r rawTimer) (types.DaemonDef, error) {
	guards, err := guardList(getTable(r.table, "guards"))
	if err != nil {
		return types.DaemonDef{}, fmt.Errorf("daemon %q: %w", r.id, err)
	}
	effs, err := effectList(getTable(r.table, "effects"))
	if err != nil {
		return types.DaemonDef{}, fmt.Errorf("daemon %q: %w", r.id, err)
	}
	return types.DaemonDef{
		ID:       r.id,
		Every:    getInt(r.table, "every"),
		Chance:   getInt(r.table, "chance"),
		Active:   getBool(r.table, "active", true),
		Priority: getInt(r.table, "priority"),
		Guards:   guards,
		Effects:  effs,
	}, nil
}

func compileFuse(r rawTimer) (types.FuseDef, error) {
	guards, err := guardList(getTable(r.table, "guards"))
	if err != nil {
		return types.FuseDef{}, fmt.Errorf("fuse %q: %w", r.id, err)
	}
	effs, err := effectList(getTable(r.table, "effects"))
	if err != nil {
		return types.FuseDef{}, fmt.Errorf("fuse %q: %w", r.id, err)
	}
	return types.FuseDef{ID: r.id, Priority: getInt(r.table, "priority"), Guards: guards, Effects: effs}, nil
}

func compileMachine(r rawMachine) (types.MachineDef, error) {
	def := types.MachineDef{
		MachineDefinition: types.MachineDefinition{
			ID:           r.id,
			Description:  getString(r.table, "description"),
			InitialState: getString(r.table, "initial"),
			States:       map[string]types.StateDef{},
		},
		Bindings: types.Bindings(tableToStringMap(getTable(r.table, "bindings"))),
	}
	states := getTable(r.table, "states")
	if states == nil {
		return def, fmt.Errorf("machine %q: no states", r.id)
	}
	var err error
	states.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		tbl, tok := v.(*lua.LTable)
		if err != nil {
			return
		}
		if !ok || !tok {
			err = fmt.Errorf("machine %q: states maps names to tables", r.id)
			return
		}
		var st types.StateDef
		if st, err = compileState(tbl); err != nil {
			err = fmt.Errorf("machine %q state %q: %w", r.id, string(name), err)
			return
		}
		def.States[string(name)] = st
	})
	return def, err
}

func compileState(tbl *lua.LTable) (types.StateDef, error) {
	st := types.StateDef{
		Description: getString(tbl, "description"),
		Terminal:    getBool(tbl, "terminal", false),
	}
	var err error
	if st.OnEnter, err = machineEffectList(getTable(tbl, "on_enter")); err != nil {
		return st, err
	}
	if st.OnExit, err = machineEffectList(getTable(tbl, "on_exit")); err != nil {
		return st, err
	}
	trs := getTable(tbl, "transitions")
	if trs == nil {
		return st, nil
	}
	for i := 1; i <= trs.Len(); i++ {
		t, ok := trs.RawGetInt(i).(*lua.LTable)
		if !ok {
			return st, fmt.Errorf("transition %d: expected a table", i)
		}
		tr := types.Transition{Target: getString(t, "to"), Priority: getInt(t, "priority")}
		if tr.Trigger, ok = userValue(t.RawGetString("on")).(types.Trigger); !ok {
			return st, fmt.Errorf("transition %d: on must be OnAction, OnEvent or OnCondition", i)
		}
		if gv := t.RawGetString("guard"); gv != lua.LNil {
			g, ok := userValue(gv).(types.Guard)
			if !ok {
				return st, fmt.Errorf("transition %d: guard expected", i)
			}
			tr.Guard = &g
		}
		if tr.Effects, err = machineEffectList(getTable(t, "effects")); err != nil {
			return st, fmt.Errorf("transition %d: %w", i, err)
		}
		st.Transitions = append(st.Transitions, tr)
	}
	return st, nil
}

// userValue unwraps userdata produced by the DSL helpers.
func userValue(v lua.LValue) any {
	if ud, ok := v.(*lua.LUserData); ok {
		return ud.Value
	}
	return nil
}

// listOf converts the array part of tbl, requiring every element to be
// userdata holding a T.
func listOf[T any](tbl *lua.LTable, what string) ([]T, error) {
	if tbl == nil {
		return nil, nil
	}
	out := make([]T, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		v, ok := userValue(tbl.RawGetInt(i)).(T)
		if !ok {
			return nil, fmt.Errorf("element %d is not a %s", i, what)
		}
		out = append(out, v)
	}
	return out, nil
}

func guardList(tbl *lua.LTable) ([]types.Guard, error) {
	return listOf[types.Guard](tbl, "guard")
}

func effectList(tbl *lua.LTable) ([]types.Effect, error) {
	return listOf[types.Effect](tbl, "effect")
}

func machineEffectList(tbl *lua.LTable) ([]types.MachineEffect, error) {
	return listOf[types.MachineEffect](tbl, "machine effect")
}

func getString(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

func getBool(tbl *lua.LTable, key string, def bool) bool {
	if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return def
}

func getNumber(tbl *lua.LTable, key string) float64 {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGo converts a Lua value. Integral numbers become int, tables with
// only an array part become []any and other tables map[string]any.
func toGo(v lua.LValue) any {
	switch tv := v.(type) {
	case lua.LString:
		return string(tv)
	case lua.LNumber:
		f := float64(tv)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f)
		}
		return f
	case lua.LBool:
		return bool(tv)
	case *lua.LTable:
		if n := tv.Len(); n > 0 && countKeys(tv) == n {
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = toGo(tv.RawGetInt(i))
			}
			return arr
		}
		return tableToMap(tv)
	case *lua.LUserData:
		return tv.Value
	default:
		return nil
	}
}

func countKeys(tbl *lua.LTable) int {
	n := 0
	tbl.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}

func tableToMap(tbl *lua.LTable) map[string]any {
	out := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if key, ok := k.(lua.LString); ok {
			out[string(key)] = toGo(v)
		}
	})
	return out
}

func tableToStringMap(tbl *lua.LTable) map[string]string {
	if tbl == nil {
		return nil
	}
	out := map[string]string{}
	tbl.ForEach(func(k, v lua.LValue) {
		key, kok := k.(lua.LString)
		val, vok := v.(lua.LString)
		if kok && vok {
			out[string(key)] = string(val)
		}
	})
	return out
}

func toStrings(v lua.LValue) []string {
	switch tv := v.(type) {
	case lua.LString:
		return []string{string(tv)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= tv.Len(); i++ {
			if s, ok := tv.RawGetInt(i).(lua.LString); ok {
				out = append(out, string(s))
			}
		}
		return out
	}
	return nil
}
