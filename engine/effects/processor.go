// Package effects is the only path through which intents become world
// mutations. The Processor validates a batch of pipeline effects as a unit
// and applies them only if every one passes. The Executor runs the
// machine-local effects of state machines.
package effects

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nathoo/fablecore/engine/events"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// ErrApply is returned when the world rejects an effect that passed
// validation. The world is rolled back to its state before the batch.
var ErrApply = errors.New("apply effect")

// EffectError pairs a rejected effect with the reason.
type EffectError struct {
	Effect types.Effect
	Reason string
}

func (e EffectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Effect.Type, e.Reason)
}

// Result reports the outcome of one batch.
type Result struct {
	Success bool
	Errors  []EffectError
	Applied []types.Effect
	// EmittedEvents holds the events re-emitted by emit effects.
	EmittedEvents []types.Event
	// Events holds every narrative event produced during application,
	// messages and emitted events, in effect order.
	Events []types.Event
}

// Batch accumulates the events produced while applying a batch.
type Batch struct {
	Emitted []types.Event
	Events  []types.Event

	// commits run once every effect has applied to the world.
	commits []func() error
}

// Snapshotter is a world that can be rolled back. Worlds that are not
// Snapshotters are not rolled back when an apply fails.
type Snapshotter interface {
	Snapshot() world.Snapshot
	Restore(world.Snapshot)
}

// Handler validates and applies one effect kind. Validate returns "" when
// the effect is valid and must not mutate the world.
type Handler struct {
	Validate func(w world.Model, eff types.Effect) string
	Apply    func(w world.Model, eff types.Effect, out *Batch) error
}

// Scheduler receives schedule effects.
type Scheduler interface {
	Known(id string) bool
	Schedule(id string, turns int) error
}

// Processor validates and applies effect batches against one world.
type Processor struct {
	world     world.Model
	handlers  map[types.EffectKind]Handler
	scheduler Scheduler
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithScheduler enables schedule effects.
func WithScheduler(s Scheduler) Option {
	return func(p *Processor) { p.scheduler = s }
}

// WithLogger sets the processor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a processor with the standard effect kinds.
func NewProcessor(w world.Model, opts ...Option) *Processor {
	p := &Processor{world: w, handlers: map[types.EffectKind]Handler{}}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.registerStandard()
	return p
}

// Register adds or replaces the handler for an effect kind.
func (p *Processor) Register(kind types.EffectKind, h Handler) {
	p.handlers[kind] = h
}

// Process validates every effect, then applies all of them in order if and
// only if none failed. Validation failures are reported in Result, not as
// an error.
func (p *Processor) Process(effs []types.Effect) (Result, error) {
	var errs []EffectError
	for _, eff := range effs {
		if reason := p.validate(eff); reason != "" {
			errs = append(errs, EffectError{Effect: eff, Reason: reason})
		}
	}
	if len(errs) > 0 {
		p.logger.Debug("effect batch rejected", "effects", len(effs), "errors", len(errs))
		return Result{Success: false, Errors: errs, Applied: []types.Effect{}}, nil
	}

	var saved *world.Snapshot
	if sn, ok := p.world.(Snapshotter); ok {
		snap := sn.Snapshot()
		saved = &snap
	}

	var out Batch
	for i, eff := range effs {
		if err := p.handlers[eff.Type].Apply(p.world, eff, &out); err != nil {
			return p.rollback(saved, eff, fmt.Errorf("%w %d (%s): %w", ErrApply, i, eff.Type, err))
		}
	}
	for _, commit := range out.commits {
		if err := commit(); err != nil {
			return p.rollback(saved, types.Effect{Type: types.EffectSchedule}, fmt.Errorf("%w (%s): %w", ErrApply, types.EffectSchedule, err))
		}
	}
	return Result{
		Success:       true,
		Errors:        []EffectError{},
		Applied:       effs,
		EmittedEvents: out.Emitted,
		Events:        out.Events,
	}, nil
}

func (p *Processor) rollback(saved *world.Snapshot, eff types.Effect, err error) (Result, error) {
	if saved != nil {
		p.world.(Snapshotter).Restore(*saved)
	}
	p.logger.Warn("effect batch rolled back", "error", err, "restored", saved != nil)
	return Result{
		Success: false,
		Errors:  []EffectError{{Effect: eff, Reason: err.Error()}},
		Applied: []types.Effect{},
	}, err
}

func (p *Processor) validate(eff types.Effect) string {
	h, ok := p.handlers[eff.Type]
	if !ok || h.Validate == nil || h.Apply == nil {
		return fmt.Sprintf("no handler registered for effect kind %q", eff.Type)
	}
	return h.Validate(p.world, eff)
}

func (p *Processor) registerStandard() {
	p.Register(types.EffectScore, Handler{Validate: validateScore, Apply: p.applyScore})
	p.Register(types.EffectFlag, Handler{Validate: validateFlag, Apply: applyFlag})
	p.Register(types.EffectMessage, Handler{Validate: validateMessage, Apply: applyMessage})
	p.Register(types.EffectEmit, Handler{Validate: validateEmit, Apply: applyEmit})
	p.Register(types.EffectMoveEntity, Handler{Validate: validateMoveEntity, Apply: applyMoveEntity})
	p.Register(types.EffectUpdateEntity, Handler{Validate: validateUpdateEntity, Apply: applyUpdateEntity})
	p.Register(types.EffectSetState, Handler{Validate: validateSetState, Apply: applySetState})
	p.Register(types.EffectUpdateExits, Handler{Validate: validateUpdateExits, Apply: applyUpdateExits})
	p.Register(types.EffectBlock, Handler{Validate: validateExitRef, Apply: applyBlock})
	p.Register(types.EffectUnblock, Handler{Validate: validateExitRef, Apply: applyUnblock})
	p.Register(types.EffectSchedule, Handler{Validate: p.validateSchedule, Apply: p.applySchedule})
}

// score

func validateScore(_ world.Model, eff types.Effect) string {
	if _, ok := toNumber(eff.Params["points"]); !ok {
		return "points must be a number"
	}
	return ""
}

func (p *Processor) applyScore(w world.Model, eff types.Effect, _ *Batch) error {
	scoring, ok := w.GetCapability("scoring")
	if !ok {
		p.logger.Debug("score effect without scoring capability")
		return nil
	}
	if _, ok := toNumber(scoring["score"]); !ok {
		return nil
	}
	w.UpdateCapability("scoring", map[string]any{
		"score": addNumbers(scoring["score"], eff.Params["points"]),
	})
	return nil
}

// flag

func validateFlag(_ world.Model, eff types.Effect) string {
	if name, _ := eff.Params["name"].(string); name == "" {
		return "flag name required"
	}
	if _, ok := eff.Params["value"].(bool); !ok {
		return "flag value must be a boolean"
	}
	return ""
}

func applyFlag(w world.Model, eff types.Effect, _ *Batch) error {
	name := eff.Params["name"].(string)
	w.SetStateValue("flag."+name, eff.Params["value"].(bool))
	return nil
}

// message

func validateMessage(_ world.Model, eff types.Effect) string {
	if id, _ := eff.Params["id"].(string); id == "" {
		return "message id required"
	}
	if d, ok := eff.Params["data"]; ok && d != nil {
		if _, ok := d.(map[string]any); !ok {
			return "message data must be a table"
		}
	}
	return ""
}

func applyMessage(_ world.Model, eff types.Effect, out *Batch) error {
	data, _ := eff.Params["data"].(map[string]any)
	out.Events = append(out.Events, events.Message(eff.Params["id"].(string), data))
	return nil
}

// emit

func validateEmit(_ world.Model, eff types.Effect) string {
	if _, ok := eventParam(eff.Params["event"]); !ok {
		return "emit effect requires a valid event"
	}
	return ""
}

func applyEmit(_ world.Model, eff types.Effect, out *Batch) error {
	e, _ := eventParam(eff.Params["event"])
	e = events.Stamp(e)
	out.Emitted = append(out.Emitted, e)
	out.Events = append(out.Events, e)
	return nil
}

// eventParam accepts either an Event value or an authored table with a
// "type" key.
func eventParam(v any) (types.Event, bool) {
	switch e := v.(type) {
	case types.Event:
		return e, e.Type != ""
	case *types.Event:
		if e == nil {
			return types.Event{}, false
		}
		return *e, e.Type != ""
	case map[string]any:
		typ, _ := e["type"].(string)
		if typ == "" {
			return types.Event{}, false
		}
		ev := types.Event{Type: typ, Entities: map[string]string{}}
		if ents, ok := e["entities"].(map[string]any); ok {
			for k, v := range ents {
				if s, ok := v.(string); ok {
					ev.Entities[k] = s
				}
			}
		}
		ev.Data, _ = e["data"].(map[string]any)
		if tags, ok := e["tags"].([]any); ok {
			for _, t := range tags {
				if s, ok := t.(string); ok {
					ev.Tags = append(ev.Tags, s)
				}
			}
		}
		return ev, true
	default:
		return types.Event{}, false
	}
}

// move_entity

func validateMoveEntity(w world.Model, eff types.Effect) string {
	id, _ := eff.Params["entityId"].(string)
	if id == "" {
		return "entityId required"
	}
	if !w.HasEntity(id) {
		return fmt.Sprintf("entity %s not found", id)
	}
	dest, isString := eff.Params["destination"].(string)
	if eff.Params["destination"] != nil && !isString {
		return "destination must be an entity id or null"
	}
	if dest == "" {
		return ""
	}
	if !w.HasEntity(dest) {
		return fmt.Sprintf("destination %s not found", dest)
	}
	if dest == id || world.IsWithin(w, dest, id) {
		return fmt.Sprintf("cannot move %s inside itself", id)
	}
	return ""
}

func applyMoveEntity(w world.Model, eff types.Effect, _ *Batch) error {
	dest, _ := eff.Params["destination"].(string)
	return w.MoveEntity(eff.Params["entityId"].(string), dest)
}

// update_entity

func validateUpdateEntity(w world.Model, eff types.Effect) string {
	id, _ := eff.Params["entityId"].(string)
	if id == "" {
		return "entityId required"
	}
	if !w.HasEntity(id) {
		return fmt.Sprintf("entity %s not found", id)
	}
	if _, ok := eff.Params["updates"].(map[string]any); !ok {
		return "updates must be a table"
	}
	return ""
}

func applyUpdateEntity(w world.Model, eff types.Effect, _ *Batch) error {
	return w.UpdateEntity(eff.Params["entityId"].(string), eff.Params["updates"].(map[string]any))
}

// set_state

func validateSetState(_ world.Model, eff types.Effect) string {
	if key, _ := eff.Params["key"].(string); key == "" {
		return "state key required"
	}
	return ""
}

func applySetState(w world.Model, eff types.Effect, _ *Batch) error {
	w.SetStateValue(eff.Params["key"].(string), eff.Params["value"])
	return nil
}

// update_exits

func validateUpdateExits(w world.Model, eff types.Effect) string {
	room, _ := eff.Params["roomId"].(string)
	if room == "" {
		return "roomId required"
	}
	if !w.HasEntity(room) {
		return fmt.Sprintf("room %s not found", room)
	}
	if !world.IsRoom(w, room) {
		return fmt.Sprintf("%s is not a room", room)
	}
	exits, ok := eff.Params["exits"].(map[string]any)
	if !ok {
		return "exits must be a table"
	}
	for dir, v := range exits {
		if v == nil {
			continue
		}
		dest, ok := exitDestination(v)
		if !ok {
			return fmt.Sprintf("exit %s must name a destination or be null", dir)
		}
		if !w.HasEntity(dest) {
			return fmt.Sprintf("exit %s destination %s not found", dir, dest)
		}
	}
	return ""
}

func applyUpdateExits(w world.Model, eff types.Effect, _ *Batch) error {
	room := eff.Params["roomId"].(string)
	for dir, v := range eff.Params["exits"].(map[string]any) {
		if v == nil {
			if err := w.RemoveExit(room, dir); err != nil {
				return err
			}
			continue
		}
		dest, _ := exitDestination(v)
		if err := w.SetExit(room, dir, dest); err != nil {
			return err
		}
	}
	return nil
}

func exitDestination(v any) (string, bool) {
	switch d := v.(type) {
	case string:
		return d, d != ""
	case map[string]any:
		s, _ := d["destination"].(string)
		return s, s != ""
	default:
		return "", false
	}
}

// block / unblock

func validateExitRef(w world.Model, eff types.Effect) string {
	room, _ := eff.Params["room"].(string)
	if room == "" {
		return "room required"
	}
	if !w.HasEntity(room) {
		return fmt.Sprintf("room %s not found", room)
	}
	if !world.IsRoom(w, room) {
		return fmt.Sprintf("%s is not a room", room)
	}
	if exit, _ := eff.Params["exit"].(string); exit == "" {
		return "exit direction required"
	}
	return ""
}

func applyBlock(w world.Model, eff types.Effect, _ *Batch) error {
	reason, _ := eff.Params["message"].(string)
	if reason == "" {
		reason = "exit_blocked"
	}
	return w.BlockExit(eff.Params["room"].(string), eff.Params["exit"].(string), reason)
}

func applyUnblock(w world.Model, eff types.Effect, _ *Batch) error {
	return w.UnblockExit(eff.Params["room"].(string), eff.Params["exit"].(string))
}

// schedule

func (p *Processor) validateSchedule(_ world.Model, eff types.Effect) string {
	id, _ := eff.Params["daemon"].(string)
	if id == "" {
		return "daemon id required"
	}
	turns, ok := toNumber(eff.Params["turns"])
	if !ok || turns < 0 {
		return "turns must be a non-negative number"
	}
	if p.scheduler == nil {
		return "no scheduler configured"
	}
	if !p.scheduler.Known(id) {
		return fmt.Sprintf("unknown daemon or fuse %s", id)
	}
	return ""
}

// applySchedule defers the scheduler change until the world part of the
// batch has applied, so a rollback never has to undo it.
func (p *Processor) applySchedule(_ world.Model, eff types.Effect, out *Batch) error {
	turns, _ := toNumber(eff.Params["turns"])
	id := eff.Params["daemon"].(string)
	out.commits = append(out.commits, func() error {
		return p.scheduler.Schedule(id, int(turns))
	})
	return nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// addNumbers keeps integer scores integral.
func addNumbers(a, b any) any {
	ai, aInt := a.(int)
	bi, bInt := b.(int)
	if aInt && bInt {
		return ai + bi
	}
	fa, _ := toNumber(a)
	fb, _ := toNumber(b)
	sum := fa + fb
	if sum == float64(int(sum)) {
		return int(sum)
	}
	return sum
}
