package machine

import (
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/events"
	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

func testWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.FromDefs(&world.Defs{
		Game:  types.GameDef{Start: "hall"},
		Rooms: map[string]types.RoomDef{"hall": {ID: "hall"}, "vault": {ID: "vault"}},
		Entities: map[string]types.EntityDef{
			"front_door": {ID: "front_door", Location: "hall", Traits: []types.TraitDef{
				{Type: "openable", Props: map[string]any{"open": false}},
			}},
			"gem": {ID: "gem", Location: "vault"},
		},
	})
	require.NoError(t, err)
	return w
}

func newRegistry(t *testing.T) (*Registry, *effects.Executor) {
	x := effects.NewExecutor()
	return NewRegistry(guard.NewEvaluator(), x, WithLogger(slogt.New(t))), x
}

func always() *types.Guard {
	return &types.Guard{Type: "and"}
}

func doorMachine() types.MachineDefinition {
	return types.MachineDefinition{
		ID:           "door",
		InitialState: "closed",
		States: map[string]types.StateDef{
			"closed": {Transitions: []types.Transition{
				{Target: "unlocked", Priority: 10, Trigger: types.Trigger{Type: "action", Action: "if.action.unlocking"}},
				{Target: "jammed", Priority: 1, Trigger: types.Trigger{Type: "condition", Condition: always()}},
			}},
			"unlocked": {},
			"jammed":   {Terminal: true},
		},
	}
}

func TestEvaluate_PriorityBeatsCondition(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Register(doorMachine(), nil))

	evts, err := r.Evaluate(testWorld(t), "player", TurnContext{ActionID: "if.action.unlocking"})
	require.NoError(t, err)

	cur, _ := r.Current("door")
	assert.Equal(t, "unlocked", cur)
	require.Len(t, evts, 1)
	assert.Equal(t, TransitionEvent, evts[0].Type)
	assert.Equal(t, map[string]any{"machineId": "door", "from": "closed", "to": "unlocked"}, evts[0].Data)
}

func TestEvaluate_TieBrokenByDeclarationOrder(t *testing.T) {
	r, _ := newRegistry(t)
	def := types.MachineDefinition{
		ID:           "pick",
		InitialState: "start",
		States: map[string]types.StateDef{
			"start": {Transitions: []types.Transition{
				{Target: "c", Priority: 2, Trigger: types.Trigger{Type: "condition", Condition: always()}},
				{Target: "a", Priority: 5, Trigger: types.Trigger{Type: "condition", Condition: always()}},
				{Target: "b", Priority: 5, Trigger: types.Trigger{Type: "condition", Condition: always()}},
			}},
			"a": {}, "b": {}, "c": {},
		},
	}
	require.NoError(t, r.Register(def, nil))

	for i := 0; i < 10; i++ {
		require.NoError(t, r.SetState([]types.MachineState{{ID: "pick", CurrentState: "start"}}))
		_, err := r.Evaluate(testWorld(t), "player", TurnContext{})
		require.NoError(t, err)
		cur, _ := r.Current("pick")
		require.Equal(t, "a", cur)
	}
}

func TestEvaluate_AtMostOneTransitionPerTurn(t *testing.T) {
	r, _ := newRegistry(t)
	def := types.MachineDefinition{
		ID:           "chain",
		InitialState: "one",
		States: map[string]types.StateDef{
			"one":   {Transitions: []types.Transition{{Target: "two", Trigger: types.Trigger{Type: "condition", Condition: always()}}}},
			"two":   {Transitions: []types.Transition{{Target: "three", Trigger: types.Trigger{Type: "condition", Condition: always()}}}},
			"three": {},
		},
	}
	require.NoError(t, r.Register(def, nil))
	w := testWorld(t)

	_, err := r.Evaluate(w, "player", TurnContext{})
	require.NoError(t, err)
	cur, _ := r.Current("chain")
	assert.Equal(t, "two", cur)

	_, err = r.Evaluate(w, "player", TurnContext{})
	require.NoError(t, err)
	cur, _ = r.Current("chain")
	assert.Equal(t, "three", cur)
	assert.Equal(t, []string{"one", "two", "three"}, r.History("chain"))
}

func TestEvaluate_GuardBlocksTransition(t *testing.T) {
	r, _ := newRegistry(t)
	def := types.MachineDefinition{
		ID:           "gate",
		InitialState: "shut",
		States: map[string]types.StateDef{
			"shut": {Transitions: []types.Transition{{
				Target:  "open",
				Trigger: types.Trigger{Type: "action", Action: "if.action.opening", Target: "$door"},
				Guard:   &types.Guard{Type: "state", Key: "flag.has_key", Value: true},
			}}},
			"open": {},
		},
	}
	require.NoError(t, r.Register(def, types.Bindings{"$door": "front_door"}))
	w := testWorld(t)
	tc := TurnContext{ActionID: "if.action.opening", TargetID: "front_door"}

	_, err := r.Evaluate(w, "player", tc)
	require.NoError(t, err)
	cur, _ := r.Current("gate")
	assert.Equal(t, "shut", cur)

	// Wrong target never matches.
	w.SetStateValue("flag.has_key", true)
	_, err = r.Evaluate(w, "player", TurnContext{ActionID: "if.action.opening", TargetID: "gem"})
	require.NoError(t, err)
	cur, _ = r.Current("gate")
	assert.Equal(t, "shut", cur)

	_, err = r.Evaluate(w, "player", tc)
	require.NoError(t, err)
	cur, _ = r.Current("gate")
	assert.Equal(t, "open", cur)
}

func TestEvaluate_EventTriggerWithFilter(t *testing.T) {
	r, _ := newRegistry(t)
	def := types.MachineDefinition{
		ID:           "alarm",
		InitialState: "quiet",
		States: map[string]types.StateDef{
			"quiet": {Transitions: []types.Transition{{
				Target: "ringing",
				Trigger: types.Trigger{
					Type:   "event",
					Event:  "if.event.taken",
					Filter: map[string]any{"item": "$treasure"},
				},
			}}},
			"ringing": {},
		},
	}
	require.NoError(t, r.Register(def, types.Bindings{"$treasure": "gem"}))
	w := testWorld(t)

	_, err := r.Evaluate(w, "player", TurnContext{Events: []types.Event{
		events.New("if.event.taken", map[string]string{"item": "lamp"}, nil),
	}})
	require.NoError(t, err)
	cur, _ := r.Current("alarm")
	assert.Equal(t, "quiet", cur)

	_, err = r.Evaluate(w, "player", TurnContext{Events: []types.Event{
		events.New("if.event.dropped", nil, map[string]any{"item": "gem"}),
		events.New("if.event.taken", map[string]string{"item": "gem"}, nil),
	}})
	require.NoError(t, err)
	cur, _ = r.Current("alarm")
	assert.Equal(t, "ringing", cur)
}

func TestEvaluate_EffectOrder(t *testing.T) {
	r, x := newRegistry(t)
	var order []string
	x.RegisterCustom("record", func(ctx effects.CustomContext) (effects.CustomResult, error) {
		cur, _ := r.Current("lamp")
		order = append(order, ctx.Params["phase"].(string)+"@"+cur)
		return effects.CustomResult{}, nil
	})
	rec := func(phase string) []types.MachineEffect {
		return []types.MachineEffect{{Type: "custom", Handler: "record", Params: map[string]any{"phase": phase}}}
	}
	def := types.MachineDefinition{
		ID:           "lamp",
		InitialState: "off",
		States: map[string]types.StateDef{
			"off": {OnExit: rec("exit"), Transitions: []types.Transition{{
				Target:  "on",
				Trigger: types.Trigger{Type: "action", Action: "if.action.switching_on"},
				Effects: rec("transition"),
			}}},
			"on": {OnEnter: rec("enter")},
		},
	}
	require.NoError(t, r.Register(def, nil))

	_, err := r.Evaluate(testWorld(t), "player", TurnContext{ActionID: "if.action.switching_on"})
	require.NoError(t, err)
	assert.Equal(t, []string{"exit@off", "transition@off", "enter@on"}, order)
}

func TestEvaluate_EffectsMutateWorld(t *testing.T) {
	r, _ := newRegistry(t)
	def := types.MachineDefinition{
		ID:           "vault_door",
		InitialState: "closed",
		States: map[string]types.StateDef{
			"closed": {Transitions: []types.Transition{{
				Target:  "open",
				Trigger: types.Trigger{Type: "action", Action: "if.action.opening", Target: "$door"},
				Effects: []types.MachineEffect{
					{Type: "set_trait", Entity: "$door", Trait: "openable", Property: "open", Value: true},
					{Type: "move", Entity: "$gem", Destination: "$player"},
				},
			}}},
			"open": {OnEnter: []types.MachineEffect{{Type: "message", Message: "vault_opens"}}},
		},
	}
	require.NoError(t, r.Register(def, types.Bindings{"$door": "front_door", "$gem": "gem"}))
	w := testWorld(t)

	evts, err := r.Evaluate(w, "player", TurnContext{ActionID: "if.action.opening", TargetID: "front_door"})
	require.NoError(t, err)

	door, _ := w.GetEntity("front_door")
	assert.True(t, door.Get("openable").Bool("open"))
	assert.Equal(t, "player", w.GetLocation("gem"))
	require.Len(t, evts, 2)
	assert.Equal(t, "game.message", evts[0].Type)
	assert.Equal(t, TransitionEvent, evts[1].Type)
}

func TestEvaluate_MachinesIndependent(t *testing.T) {
	r, _ := newRegistry(t)
	// "first" emits an event that "second" would react to; second must not
	// see it in the same pass.
	first := types.MachineDefinition{
		ID:           "first",
		InitialState: "a",
		States: map[string]types.StateDef{
			"a": {Transitions: []types.Transition{{
				Target:  "b",
				Trigger: types.Trigger{Type: "condition", Condition: always()},
				Effects: []types.MachineEffect{{Type: "emit_event", Event: "story.ping"}},
			}}},
			"b": {},
		},
	}
	second := types.MachineDefinition{
		ID:           "second",
		InitialState: "x",
		States: map[string]types.StateDef{
			"x": {Transitions: []types.Transition{{Target: "y", Trigger: types.Trigger{Type: "event", Event: "story.ping"}}}},
			"y": {},
		},
	}
	require.NoError(t, r.Register(first, nil))
	require.NoError(t, r.Register(second, nil))
	assert.Equal(t, []string{"first", "second"}, r.IDs())

	_, err := r.Evaluate(testWorld(t), "player", TurnContext{})
	require.NoError(t, err)
	cur, _ := r.Current("second")
	assert.Equal(t, "x", cur)
}

func TestEvaluate_TerminalIsNoop(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Register(doorMachine(), nil))
	w := testWorld(t)

	_, err := r.Evaluate(w, "player", TurnContext{})
	require.NoError(t, err)
	cur, _ := r.Current("door")
	require.Equal(t, "jammed", cur)

	evts, err := r.Evaluate(w, "player", TurnContext{ActionID: "if.action.unlocking"})
	require.NoError(t, err)
	assert.Empty(t, evts)
	cur, _ = r.Current("door")
	assert.Equal(t, "jammed", cur)
}

func TestEvaluate_UnresolvedBindingIsFatal(t *testing.T) {
	r, _ := newRegistry(t)
	def := types.MachineDefinition{
		ID:           "bad",
		InitialState: "s",
		States: map[string]types.StateDef{
			"s": {Transitions: []types.Transition{{
				Target:  "s",
				Trigger: types.Trigger{Type: "action", Action: "if.action.taking", Target: "$nobody"},
			}}},
		},
	}
	require.NoError(t, r.Register(def, nil))

	_, err := r.Evaluate(testWorld(t), "player", TurnContext{ActionID: "if.action.taking", TargetID: "gem"})
	assert.ErrorIs(t, err, guard.ErrUnresolvedBinding)
}

func TestRegister_Errors(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Register(doorMachine(), nil))

	tests := []struct {
		name string
		def  types.MachineDefinition
		want error
	}{
		{"duplicate", doorMachine(), ErrDuplicateMachine},
		{"missing initial", types.MachineDefinition{ID: "m", InitialState: "nope", States: map[string]types.StateDef{"s": {}}}, ErrInitialState},
		{"missing target", types.MachineDefinition{ID: "m", InitialState: "s", States: map[string]types.StateDef{
			"s": {Transitions: []types.Transition{{Target: "ghost", Trigger: types.Trigger{Type: "condition", Condition: always()}}}},
		}}, ErrUnknownTarget},
		{"bad trigger", types.MachineDefinition{ID: "m", InitialState: "s", States: map[string]types.StateDef{
			"s": {Transitions: []types.Transition{{Target: "s", Trigger: types.Trigger{Type: "whenever"}}}},
		}}, ErrInvalidTrigger},
		{"no id", types.MachineDefinition{InitialState: "s", States: map[string]types.StateDef{"s": {}}}, ErrMissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.Register(tt.def, nil), tt.want)
		})
	}
	assert.Equal(t, []string{"door"}, r.IDs())
}

func TestUnregister(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Register(doorMachine(), nil))
	require.NoError(t, r.Unregister("door"))
	assert.Empty(t, r.IDs())
	assert.ErrorIs(t, r.Unregister("door"), ErrUnknownMachine)

	// Re-registration after removal is allowed.
	require.NoError(t, r.Register(doorMachine(), nil))
}

func TestBindingsArePerInstance(t *testing.T) {
	r, _ := newRegistry(t)
	mk := func(id string) types.MachineDefinition {
		return types.MachineDefinition{
			ID:           id,
			InitialState: "idle",
			States: map[string]types.StateDef{
				"idle": {Transitions: []types.Transition{{
					Target:  "hit",
					Trigger: types.Trigger{Type: "action", Action: "if.action.taking", Target: "$thing"},
				}}},
				"hit": {},
			},
		}
	}
	require.NoError(t, r.Register(mk("a"), types.Bindings{"$thing": "gem"}))
	require.NoError(t, r.Register(mk("b"), types.Bindings{"$thing": "front_door"}))

	_, err := r.Evaluate(testWorld(t), "player", TurnContext{ActionID: "if.action.taking", TargetID: "gem"})
	require.NoError(t, err)
	a, _ := r.Current("a")
	b, _ := r.Current("b")
	assert.Equal(t, "hit", a)
	assert.Equal(t, "idle", b)
}

func TestStateRoundTripSkipsEffects(t *testing.T) {
	build := func() (*Registry, *int) {
		r, x := newRegistry(t)
		calls := 0
		x.RegisterCustom("count", func(effects.CustomContext) (effects.CustomResult, error) {
			calls++
			return effects.CustomResult{}, nil
		})
		count := []types.MachineEffect{{Type: "custom", Handler: "count"}}
		def := types.MachineDefinition{
			ID:           "lamp",
			InitialState: "off",
			States: map[string]types.StateDef{
				"off": {OnExit: count, Transitions: []types.Transition{{Target: "on", Trigger: types.Trigger{Type: "action", Action: "switch"}}}},
				"on":  {OnEnter: count, OnExit: count, Transitions: []types.Transition{{Target: "off", Trigger: types.Trigger{Type: "action", Action: "switch"}}}},
			},
		}
		require.NoError(t, r.Register(def, nil))
		return r, &calls
	}

	r, calls := build()
	w := testWorld(t)
	for i := 0; i < 3; i++ {
		_, err := r.Evaluate(w, "player", TurnContext{ActionID: "switch"})
		require.NoError(t, err)
	}
	saved := r.GetState()
	require.Equal(t, "on", saved[0].CurrentState)
	require.Equal(t, []string{"off", "on", "off", "on"}, saved[0].History)

	fresh, freshCalls := build()
	require.NoError(t, fresh.SetState(saved))
	assert.Equal(t, 0, *freshCalls)
	assert.Equal(t, saved, fresh.GetState())
	assert.Equal(t, 5, *calls)
}

func TestSetState_Rejects(t *testing.T) {
	r, _ := newRegistry(t)
	require.NoError(t, r.Register(doorMachine(), nil))

	err := r.SetState([]types.MachineState{{ID: "door", CurrentState: "unlocked"}, {ID: "ghost", CurrentState: "x"}})
	assert.ErrorIs(t, err, ErrUnknownMachine)
	cur, _ := r.Current("door")
	assert.Equal(t, "closed", cur, "no entry applied when any is invalid")

	err = r.SetState([]types.MachineState{{ID: "door", CurrentState: "melted"}})
	assert.ErrorIs(t, err, ErrUnknownState)
}
