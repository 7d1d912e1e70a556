package engine

import (
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/capability"
	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/machine"
	"github.com/nathoo/fablecore/engine/metrics"
	"github.com/nathoo/fablecore/engine/stdlib"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// testDefs builds a small game: two rooms, a key, a scenery statue, a
// guarded gem, a cage driven by a state machine, a rule, a fallback and a
// fuse.
func testDefs() *world.Defs {
	return &world.Defs{
		Game: types.GameDef{Title: "Test Game", Version: "1.0", Start: "hall", Intro: "Welcome, adventurer."},
		Rooms: map[string]types.RoomDef{
			"hall": {
				ID:          "hall",
				Name:        "Hall",
				Description: "A grand hall with stone walls. A faded tapestry hangs here.",
				Exits:       map[string]string{"north": "garden"},
				Rules: []types.RuleDef{{
					ID:      "push_statue",
					Scope:   "room:hall",
					When:    types.MatchCriteria{Action: "if.action.push", Object: "statue"},
					Effects: []types.Effect{effects.Message("The statue won't budge.", nil)},
				}},
				Fallbacks: map[string]string{"if.action.sing": "Your voice echoes around the hall."},
			},
			"garden": {
				ID:          "garden",
				Name:        "Garden",
				Description: "A beautiful garden with flowers.",
				Exits:       map[string]string{"south": "hall"},
			},
		},
		Entities: map[string]types.EntityDef{
			"key": {ID: "key", Name: "key", Location: "hall", Attrs: map[string]any{"description": "A gleaming silver key."}},
			"statue": {
				ID: "statue", Name: "statue", Location: "hall",
				Attrs:  map[string]any{"description": "A weathered statue of a knight."},
				Traits: []types.TraitDef{{Type: stdlib.TraitScenery}},
			},
			"gem": {
				ID: "gem", Name: "gem", Location: "hall",
				Traits: []types.TraitDef{{
					Type:         "GuardedItem",
					Props:        map[string]any{"canTake": false},
					Capabilities: []string{stdlib.Taking},
				}},
			},
			"cage": {
				ID: "cage", Name: "cage", Location: "hall",
				Traits: []types.TraitDef{
					{Type: stdlib.TraitContainer},
					{Type: stdlib.TraitOpenable, Props: map[string]any{"open": false}},
				},
			},
		},
		GlobalRules: []types.RuleDef{{
			ID:    "pray",
			Scope: "global",
			When:  types.MatchCriteria{Action: "if.action.pray"},
			Effects: []types.Effect{
				effects.Message("The ground trembles.", nil),
				effects.Schedule("collapse", 2),
			},
		}},
		Handlers: []types.EventHandler{{
			EventType: "if.event.taken",
			Effects:   []types.Effect{effects.Score(5)},
		}},
		Machines: []types.MachineDef{{
			MachineDefinition: types.MachineDefinition{
				ID:           "cage_machine",
				InitialState: "shut",
				States: map[string]types.StateDef{
					"shut": {Transitions: []types.Transition{{
						Target:  "open",
						Trigger: types.Trigger{Type: types.TriggerAction, Action: stdlib.Opening, Target: "$cage"},
					}}},
					"open": {
						OnEnter:  []types.MachineEffect{{Type: types.MachineMessage, Message: "A bird flutters out of the cage."}},
						Terminal: true,
					},
				},
			},
			Bindings: types.Bindings{"cage": "cage"},
		}},
		Fuses: map[string]types.FuseDef{
			"collapse": {ID: "collapse", Effects: []types.Effect{
				effects.Message("The ceiling collapses!", nil),
				effects.Flag("game_over", true),
			}},
		},
		Messages: map[string]string{
			"guardian_blocks": "The {guardian} won't let you near the {item}.",
		},
		Capabilities: map[string]map[string]any{"scoring": {"score": 0}},
	}
}

// guardian refuses to let its item be taken while canTake is false.
type guardian struct{}

func (guardian) Validate(e *world.Entity, _ world.Model, _ string, shared *action.SharedData) action.ValidationResult {
	if !e.Get("GuardedItem").Bool("canTake") {
		action.Put(shared, "guardian", "troll")
		return action.Invalid("guardian_blocks", nil)
	}
	return action.Valid(nil)
}

func (guardian) Execute(e *world.Entity, _ world.Model, playerID string, _ *action.SharedData) ([]types.Effect, error) {
	return []types.Effect{effects.MoveEntity(e.ID, playerID)}, nil
}

func (guardian) Report(e *world.Entity, _ world.Model, _ string, _ *action.SharedData) []capability.Effect {
	return []capability.Effect{{Type: "if.event.taken", Payload: map[string]any{"messageId": "You pry the gem loose."}}}
}

func (guardian) Blocked(e *world.Entity, _ world.Model, _ string, reason string, shared *action.SharedData) []capability.Effect {
	who, _ := action.Get[string](shared, "guardian")
	return []capability.Effect{{Type: "guarded.blocked", Payload: map[string]any{
		"messageId": reason,
		"guardian":  who,
		"item":      e.DisplayName(),
	}}}
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	caps := capability.NewRegistry()
	require.NoError(t, caps.Bind("GuardedItem", stdlib.Taking, guardian{}))
	opts = append([]Option{WithLogger(slogt.New(t)), WithCapabilities(caps)}, opts...)
	e, err := New(testDefs(), opts...)
	require.NoError(t, err)
	return e
}

func step(t *testing.T, e *Engine, input string) types.Result {
	t.Helper()
	res, err := e.Step(input)
	require.NoError(t, err, "step %q", input)
	return res
}

func score(t *testing.T, e *Engine) any {
	t.Helper()
	s, ok := e.World.GetCapability("scoring")
	require.True(t, ok)
	return s["score"]
}

func TestIntro(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, []string{
		"Welcome, adventurer.",
		"A grand hall with stone walls. A faded tapestry hangs here.",
		"You see: cage, gem, key, statue.",
		"Exits: north.",
	}, e.Intro())
	assert.NotEmpty(t, e.Session)
}

func TestStepTakeAndDrop(t *testing.T) {
	e := newEngine(t)

	res := step(t, e, "take key")
	assert.Equal(t, []string{"Taken."}, res.Output)
	assert.Equal(t, "player", e.World.GetLocation("key"))
	assert.EqualValues(t, 5, score(t, e), "event handler scores the take")
	assert.Equal(t, 1, e.Turn)

	res = step(t, e, "drop key")
	assert.Equal(t, []string{"Dropped."}, res.Output)
	assert.Equal(t, "hall", e.World.GetLocation("key"))
	assert.Equal(t, 2, e.Turn)
}

func TestStepBlockedLeavesWorld(t *testing.T) {
	e := newEngine(t)

	res := step(t, e, "take statue")
	assert.Equal(t, []string{"The statue is fixed in place."}, res.Output)
	assert.Equal(t, "hall", e.World.GetLocation("statue"))
	assert.Empty(t, res.Effects)
	assert.EqualValues(t, 0, score(t, e))
}

func TestGuardedItemScenario(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newEngine(t, WithMetrics(metrics.New(reg)))

	res := step(t, e, "take gem")
	assert.Equal(t, []string{"The troll won't let you near the gem."}, res.Output)
	assert.Equal(t, "hall", e.World.GetLocation("gem"))

	require.NoError(t, e.World.UpdateEntity("gem", map[string]any{"GuardedItem.canTake": true}))
	res = step(t, e, "take gem")
	assert.Equal(t, []string{"You pry the gem loose."}, res.Output)
	assert.Equal(t, "player", e.World.GetLocation("gem"))

	lines, err := metrics.Summary(reg)
	require.NoError(t, err)
	assert.Contains(t, lines, `fablecore_capability_dispatches_total{action="if.action.taking",trait="GuardedItem"} 2`)
	assert.Contains(t, lines, `fablecore_turns_total{outcome="blocked"} 1`)
	assert.Contains(t, lines, `fablecore_turns_total{outcome="ok"} 1`)
}

func TestStepGoing(t *testing.T) {
	e := newEngine(t)

	res := step(t, e, "n")
	assert.Equal(t, []string{"A beautiful garden with flowers.", "Exits: south."}, res.Output)
	assert.Equal(t, "garden", e.World.GetLocation("player"))

	res = step(t, e, "go west")
	assert.Equal(t, []string{"You can't go that way."}, res.Output)
}

func TestMachineRunsAfterAction(t *testing.T) {
	e := newEngine(t)

	res := step(t, e, "open cage")
	assert.Equal(t, []string{"You open the cage.", "A bird flutters out of the cage."}, res.Output)
	state, ok := e.Machines.Current("cage_machine")
	require.True(t, ok)
	assert.Equal(t, "open", state)

	// The transition event follows the action's own events.
	last := res.Events[len(res.Events)-1]
	assert.Equal(t, machine.TransitionEvent, last.Type)
	assert.Equal(t, "shut", last.Data["from"])
}

func TestRuleReplacesAction(t *testing.T) {
	e := newEngine(t)

	res := step(t, e, "push statue")
	assert.Equal(t, []string{"The statue won't budge."}, res.Output)
}

func TestFallbacks(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, []string{"Your voice echoes around the hall."}, step(t, e, "sing").Output)
	assert.Equal(t, []string{"I don't know how to do that."}, step(t, e, "dance").Output)
	assert.Equal(t, []string{"You see nothing special about the tapestry."}, step(t, e, "examine tapestry").Output)
	assert.Equal(t, []string{`you don't see "dragon" here`}, step(t, e, "take dragon").Output)
}

func TestFuseEndsGame(t *testing.T) {
	e := newEngine(t)

	assert.Equal(t, []string{"The ground trembles."}, step(t, e, "pray").Output)
	res := step(t, e, "wait")
	assert.Equal(t, []string{"Time passes.", "The ceiling collapses!"}, res.Output)
	assert.True(t, e.GameOver())

	res = step(t, e, "look")
	assert.Equal(t, []string{"Game over. Use /load to restore a save or /quit to exit."}, res.Output)
	assert.Equal(t, 2, e.Turn)
}

func TestExecuteResolvedCommand(t *testing.T) {
	e := newEngine(t)

	res, err := e.Execute(action.Command{ActionID: stdlib.Taking, DirectObject: "key"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Taken."}, res.Output)
}

func TestRejectedBatchIsNarratedAsBlocked(t *testing.T) {
	defs := testDefs()
	defs.GlobalRules = append(defs.GlobalRules, types.RuleDef{
		ID:      "broken",
		Scope:   "global",
		When:    types.MatchCriteria{Action: "if.action.jump"},
		Effects: []types.Effect{effects.Score(1), effects.MoveEntity("key", "nowhere")},
	})
	e, err := New(defs, WithLogger(slogt.New(t)))
	require.NoError(t, err)

	res := step(t, e, "jump")
	assert.Equal(t, []string{"Nothing happens."}, res.Output)
	assert.Empty(t, res.Effects)
	assert.Equal(t, 1, e.Turn, "the turn still passes")

	require.NotEmpty(t, res.Events)
	blocked := res.Events[0]
	assert.Equal(t, action.BlockedEventType, blocked.Type)
	assert.Equal(t, EffectsRejectedMessage, blocked.Data["messageId"])
	params := blocked.Data["params"].(map[string]any)
	assert.Equal(t, []string{"move_entity: destination nowhere not found"}, params["reasons"])

	assert.EqualValues(t, 0, score(t, e), "no effect of a rejected batch applies")
	assert.Equal(t, "hall", world.RoomOf(e.World, "key"))
}

// flinging moves its object somewhere that does not exist.
type flinging struct{ reported *bool }

func (flinging) ID() string { return "if.action.fling" }

func (flinging) Validate(*action.Context) action.ValidationResult { return action.Valid(nil) }

func (flinging) Execute(ctx *action.Context) ([]types.Effect, error) {
	return []types.Effect{effects.MoveEntity(ctx.Command.DirectObject, "the_void")}, nil
}

func (f flinging) Report(*action.Context) []types.Event {
	*f.reported = true
	return nil
}

func (flinging) Blocked(*action.Context, action.ValidationResult) []types.Event { return nil }

func TestRejectedActionBatchSkipsReport(t *testing.T) {
	e := newEngine(t)
	var reported bool
	require.NoError(t, e.Actions.Register(flinging{reported: &reported}))

	res, err := e.Execute(action.Command{ActionID: "if.action.fling", DirectObject: "key"})
	require.NoError(t, err)
	assert.False(t, reported)
	assert.Equal(t, []string{"Nothing happens."}, res.Output)
	assert.Equal(t, "hall", world.RoomOf(e.World, "key"))
	assert.Equal(t, 1, e.Turn)
}

func TestEmptyInput(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, []string{"What do you want to do?"}, step(t, e, "  ").Output)
	assert.Equal(t, 0, e.Turn)
}
