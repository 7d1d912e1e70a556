// Package engine provides the turn controller that wires parsing,
// resolution, rules, capability dispatch, the action lifecycle, the effect
// processor, state machines and the scheduler into a single turn.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/capability"
	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/events"
	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/machine"
	"github.com/nathoo/fablecore/engine/metrics"
	"github.com/nathoo/fablecore/engine/narrate"
	"github.com/nathoo/fablecore/engine/parser"
	"github.com/nathoo/fablecore/engine/resolve"
	"github.com/nathoo/fablecore/engine/rules"
	"github.com/nathoo/fablecore/engine/scheduler"
	"github.com/nathoo/fablecore/engine/stdlib"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// GameOverFlag is the state key that ends play once true.
const GameOverFlag = "flag.game_over"

// EffectsRejectedMessage is the messageId of the blocked event narrated
// when a batch fails validation.
const EffectsRejectedMessage = "effects_rejected"

// Engine holds the game definitions, the world and the runtime registries.
type Engine struct {
	mu sync.Mutex

	Defs      *world.Defs
	World     *world.World
	Actions   *action.Registry
	Machines  *machine.Registry
	Scheduler *scheduler.Scheduler
	Session   string
	Turn      int

	guards       *guard.Evaluator
	executor     *effects.Executor
	capabilities *capability.Registry
	dispatcher   *capability.Dispatcher
	processor    *effects.Processor
	narrator     *narrate.Narrator
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records turn metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCapabilities sets the trait behavior registry.
func WithCapabilities(r *capability.Registry) Option {
	return func(e *Engine) { e.capabilities = r }
}

// WithActions replaces the standard action registry.
func WithActions(r *action.Registry) Option {
	return func(e *Engine) { e.Actions = r }
}

// WithGuards sets the guard evaluator, typically one carrying custom
// predicates.
func WithGuards(ev *guard.Evaluator) Option {
	return func(e *Engine) { e.guards = ev }
}

// WithExecutor sets the machine effect executor, typically one carrying
// custom handlers.
func WithExecutor(x *effects.Executor) Option {
	return func(e *Engine) { e.executor = x }
}

// New builds the world from defs and registers its machines.
func New(defs *world.Defs, opts ...Option) (*Engine, error) {
	e := &Engine{Defs: defs, Session: uuid.NewString()}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.guards == nil {
		e.guards = guard.NewEvaluator()
	}
	if e.executor == nil {
		e.executor = effects.NewExecutor()
	}
	if e.capabilities == nil {
		e.capabilities = capability.NewRegistry()
	}
	if e.Actions == nil {
		e.Actions = action.NewRegistry()
		if err := stdlib.Register(e.Actions); err != nil {
			return nil, err
		}
	}

	w, err := world.FromDefs(defs)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}
	e.World = w
	e.Scheduler = scheduler.New(defs.Daemons, defs.Fuses, e.guards, defs.Game.Seed)
	e.processor = effects.NewProcessor(w, effects.WithScheduler(e.Scheduler), effects.WithLogger(e.logger))
	e.dispatcher = capability.NewDispatcher(e.capabilities, capability.WithLogger(e.logger))
	e.narrator = narrate.New(defs.Messages)

	e.Machines = machine.NewRegistry(e.guards, e.executor, machine.WithLogger(e.logger))
	for _, m := range defs.Machines {
		if err := e.Machines.Register(m.MachineDefinition, m.Bindings); err != nil {
			return nil, fmt.Errorf("register machine %s: %w", m.ID, err)
		}
	}
	return e, nil
}

// PlayerID returns the player entity ID.
func (e *Engine) PlayerID() string {
	return e.Defs.PlayerID()
}

// Capabilities returns the trait behavior registry.
func (e *Engine) Capabilities() *capability.Registry {
	return e.capabilities
}

// Narrator returns the narrator built from the game's messages.
func (e *Engine) Narrator() *narrate.Narrator {
	return e.narrator
}

// Intro returns the opening text: the game intro followed by the starting
// room description.
func (e *Engine) Intro() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []string
	if e.Defs.Game.Intro != "" {
		out = append(out, e.Defs.Game.Intro)
	}
	if room := world.RoomOf(e.World, e.PlayerID()); room != "" {
		ctx := &action.Context{World: e.World, PlayerID: e.PlayerID(), Command: action.Command{ActionID: stdlib.Looking}}
		if a, ok := e.Actions.Get(stdlib.Looking); ok {
			r := a.Validate(ctx)
			ctx.Validation = &r
			if r.Valid {
				out = append(out, e.narrator.Lines(a.Report(ctx))...)
			}
		}
	}
	return out
}

// Locked runs fn while holding the turn lock, so fn sees the world
// between turns.
func (e *Engine) Locked(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// GameOver reports whether the game has ended.
func (e *Engine) GameOver() bool {
	v, _ := e.World.GetStateValue(GameOverFlag)
	return v == true
}

// Step parses and resolves one line of player input and runs it as a turn.
// A content error aborts the turn; the world keeps whatever the batches
// applied before the failure.
func (e *Engine) Step(input string) (types.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.GameOver() {
		return types.Result{Output: []string{e.narrator.Text("game_over", nil)}}, nil
	}

	intent := parser.Parse(input)
	if intent.Verb == "" {
		return types.Result{Output: []string{e.narrator.Text("empty_input", nil)}}, nil
	}

	res, resolveErr := resolve.Resolve(e.World, e.PlayerID(), intent)
	cmd := action.Command{
		ActionID:       intent.Action,
		Verb:           intent.Verb,
		DirectObject:   res.ObjectID,
		IndirectObject: res.TargetID,
		Direction:      intent.Direction,
		Raw:            input,
	}
	if intent.Direction != "" {
		cmd.DirectObject = intent.Direction
	}

	// Rules may name scenery nouns that are not entities, so an unresolved
	// name is still offered to them verbatim.
	if resolveErr != nil {
		if cmd.DirectObject == "" {
			cmd.DirectObject = intent.Object
		}
		if cmd.IndirectObject == "" {
			cmd.IndirectObject = intent.Target
		}
	}
	return e.run(cmd, intent, resolveErr)
}

// Execute runs an already resolved command as a turn.
func (e *Engine) Execute(cmd action.Command) (types.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.GameOver() {
		return types.Result{Output: []string{e.narrator.Text("game_over", nil)}}, nil
	}
	return e.run(cmd, types.Intent{}, nil)
}

func (e *Engine) run(cmd action.Command, intent types.Intent, resolveErr error) (result types.Result, err error) {
	start := time.Now()
	outcome := metrics.OutcomeOK
	defer func() {
		if err != nil {
			outcome = metrics.OutcomeError
		}
		e.metrics.Turn(outcome, time.Since(start))
	}()

	playerID := e.PlayerID()

	match, matched, err := rules.Evaluate(e.World, e.Defs, e.guards, rules.Command{
		ActionID: cmd.ActionID,
		ObjectID: cmd.DirectObject,
		TargetID: cmd.IndirectObject,
	})
	if err != nil {
		return result, err
	}

	var turnEvents []types.Event
	switch {
	case matched:
		outcome = metrics.OutcomeRule
		e.logger.Debug("rule matched", "rule", match.Rule.ID, "action", cmd.ActionID)
		evts, ok, err := e.apply(&result, cmd.ActionID, match.Effects)
		if err != nil {
			return result, err
		}
		if !ok {
			outcome = metrics.OutcomeBlocked
		}
		turnEvents = evts

	case resolveErr != nil:
		// Nothing to act on: the turn passes without running the world.
		outcome = metrics.OutcomeUnknown
		result.Output = []string{e.refusal(cmd, intent, resolveErr)}
		e.Turn++
		return result, nil

	default:
		a, ok := e.Actions.Get(cmd.ActionID)
		if !ok {
			outcome = metrics.OutcomeUnknown
			result.Output = []string{e.refusal(cmd, intent, nil)}
			e.Turn++
			return result, nil
		}
		evts, blocked, err := e.perform(&result, capability.Wrap(a, e.dispatcher), cmd)
		if err != nil {
			e.metrics.Action(cmd.ActionID, metrics.OutcomeError)
			return result, err
		}
		if blocked {
			outcome = metrics.OutcomeBlocked
		}
		e.metrics.Action(cmd.ActionID, outcome)
		turnEvents = evts
	}

	// Event handlers run once over the turn's events; what they produce is
	// not dispatched again.
	handlerEffs, err := events.Dispatch(turnEvents, e.Defs.Handlers, e.guards, e.World, playerID)
	if err != nil {
		return result, err
	}
	handlerEvents, _, err := e.apply(&result, cmd.ActionID, handlerEffs)
	if err != nil {
		return result, err
	}
	turnEvents = append(turnEvents, handlerEvents...)

	machineEvents, err := e.Machines.Evaluate(e.World, playerID, machine.TurnContext{
		ActionID: cmd.ActionID,
		TargetID: cmd.DirectObject,
		Events:   turnEvents,
	})
	result.Events = append(result.Events, machineEvents...)
	e.metrics.Transitions(machineEvents)
	if err != nil {
		return result, err
	}

	fired, err := e.Scheduler.Tick(e.World, playerID)
	if err != nil {
		return result, err
	}
	result.Events = append(result.Events, fired.Events...)
	e.metrics.Fired(fired.Events)
	if _, _, err := e.apply(&result, cmd.ActionID, fired.Effects); err != nil {
		return result, err
	}

	e.Turn++
	result.Output = e.narrator.Lines(result.Events)
	return result, nil
}

// perform drives one action through validate, then blocked or
// execute/report. The bool is true when validation failed.
func (e *Engine) perform(result *types.Result, a action.Action, cmd action.Command) ([]types.Event, bool, error) {
	ctx := &action.Context{World: e.World, PlayerID: e.PlayerID(), Command: cmd, Turn: e.Turn}

	r := a.Validate(ctx)
	ctx.Validation = &r
	if d, ok := action.DataAs[*capability.DispatchData](&r); ok {
		e.metrics.Dispatch(cmd.ActionID, d.Trait)
	}

	if !r.Valid {
		evts := a.Blocked(ctx, r)
		result.Events = append(result.Events, evts...)
		return evts, true, nil
	}

	effs, err := a.Execute(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("execute %s: %w", cmd.ActionID, err)
	}
	applied, ok, err := e.apply(result, cmd.ActionID, effs)
	if err != nil || !ok {
		return applied, !ok, err
	}
	reported := a.Report(ctx)
	result.Events = append(result.Events, reported...)
	return append(applied, reported...), false, nil
}

// apply runs effs through the processor and records what it applied.
// A batch that fails validation leaves the world untouched and yields a
// single blocked event; ok is false in that case.
func (e *Engine) apply(result *types.Result, actionID string, effs []types.Effect) (evts []types.Event, ok bool, err error) {
	if len(effs) == 0 {
		return nil, true, nil
	}
	pr, err := e.processor.Process(effs)
	result.Effects = append(result.Effects, pr.Applied...)
	result.Events = append(result.Events, pr.Events...)
	e.metrics.Applied(pr.Applied)
	if err != nil {
		return nil, false, err
	}
	if pr.Success {
		return pr.Events, true, nil
	}

	e.metrics.Rejected()
	reasons := make([]string, len(pr.Errors))
	for i, fe := range pr.Errors {
		reasons[i] = fe.Error()
	}
	e.logger.Warn("effect batch rejected", "action", actionID, "reasons", reasons)

	ents := map[string]string{"actor": e.PlayerID()}
	if loc := world.RoomOf(e.World, e.PlayerID()); loc != "" {
		ents["location"] = loc
	}
	blocked := events.New(action.BlockedEventType, ents, map[string]any{
		"actionId":  actionID,
		"messageId": EffectsRejectedMessage,
		"params":    map[string]any{"reasons": reasons},
	})
	result.Events = append(result.Events, blocked)
	return []types.Event{blocked}, false, nil
}

// refusal picks the text for a command nothing handles: an authored
// fallback, then a scenery response, then the resolution error or the
// unknown-action message.
func (e *Engine) refusal(cmd action.Command, intent types.Intent, resolveErr error) string {
	if text, ok := rules.Fallback(e.World, e.Defs, cmd.ActionID, cmd.DirectObject); ok {
		return text
	}
	if msg := e.sceneryFallback(intent); msg != "" {
		return msg
	}
	if resolveErr != nil {
		return resolveErr.Error()
	}
	return e.narrator.Text("unknown_action", map[string]any{"verb": cmd.Verb})
}
