package capability

import (
	"log/slog"
	"sort"

	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// DispatchErrorMessage is the validation error when a check is incomplete.
const DispatchErrorMessage = "capability_dispatch_error"

// Claim is one entity's trait claiming an action.
type Claim struct {
	Entity *world.Entity
	Trait  *world.Trait
	Binding
}

// Check is the result of a dispatch check.
type Check struct {
	ShouldDispatch bool
	Trait          *world.Trait
	Behavior       Behavior
	Entity         *world.Entity
	Claims         []Claim
	Resolution     Resolution
}

// DispatchData is the validation payload of a dispatched action.
type DispatchData struct {
	Trait      string
	Behavior   Behavior
	EntityID   string
	EntityName string
	Shared     *action.SharedData
}

// PayloadKind implements action.Payload.
func (*DispatchData) PayloadKind() string { return "capability.dispatch" }

// Dispatcher routes action phases to trait behaviors.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a dispatcher over a registry.
func NewDispatcher(r *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{registry: r}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// CheckDispatch reports whether a trait on target claims actionID and has
// a behavior bound for it.
func (d *Dispatcher) CheckDispatch(actionID string, target *world.Entity) Check {
	if target == nil {
		return Check{}
	}
	return d.CheckDispatchMulti(actionID, target)
}

// CheckDispatchMulti collects claims across several entities (typically
// the direct and indirect objects). A trait that claims the action with no
// behavior bound is logged and skipped, so the standard action runs.
func (d *Dispatcher) CheckDispatchMulti(actionID string, entities ...*world.Entity) Check {
	var claims []Claim
	for _, e := range entities {
		if e == nil {
			continue
		}
		t := claimingTrait(e, actionID)
		if t == nil {
			continue
		}
		b, ok := d.registry.Lookup(t.Type, actionID)
		if !ok {
			d.logger.Warn("trait claims action but no behavior registered; falling back",
				"trait", t.Type, "action", actionID, "entity", e.ID)
			continue
		}
		claims = append(claims, Claim{Entity: e, Trait: t, Binding: b})
	}
	if len(claims) == 0 {
		return Check{}
	}

	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].Priority > claims[j].Priority
	})

	mode := d.registry.Mode(actionID)
	for _, c := range claims {
		if c.Resolution != "" {
			mode = c.Resolution
			break
		}
	}

	return Check{
		ShouldDispatch: true,
		Trait:          claims[0].Trait,
		Behavior:       claims[0].Behavior,
		Entity:         claims[0].Entity,
		Claims:         claims,
		Resolution:     mode,
	}
}

func claimingTrait(e *world.Entity, actionID string) *world.Trait {
	for _, t := range e.Traits {
		if t.Claims(actionID) {
			return t
		}
	}
	return nil
}

// Validate runs the validate phase according to the check's resolution
// mode. The returned result always carries DispatchData so the blocked
// phase can reach the behavior that refused.
func (d *Dispatcher) Validate(check Check, ctx *action.Context) action.ValidationResult {
	if !check.ShouldDispatch || check.Behavior == nil || check.Entity == nil || check.Trait == nil {
		return action.Invalid(DispatchErrorMessage, nil)
	}

	switch {
	case len(check.Claims) <= 1, check.Resolution == FirstWins, check.Resolution == HighestPriority:
		return d.validateOne(Claim{Entity: check.Entity, Trait: check.Trait, Binding: Binding{Behavior: check.Behavior}}, ctx)

	case check.Resolution == AnyBlocks:
		var primary action.ValidationResult
		for i, c := range check.Claims {
			r := d.validateOne(c, ctx)
			if !r.Valid {
				return r
			}
			if i == 0 {
				primary = r
			}
		}
		return d.restore(primary, ctx)

	case check.Resolution == AllMustPass:
		var primary action.ValidationResult
		var failed *action.ValidationResult
		for i, c := range check.Claims {
			r := d.validateOne(c, ctx)
			if i == 0 {
				primary = r
			}
			if !r.Valid && failed == nil {
				failed = &r
			}
		}
		if failed != nil {
			return d.restore(*failed, ctx)
		}
		return d.restore(primary, ctx)

	default:
		return d.validateOne(check.Claims[0], ctx)
	}
}

func (d *Dispatcher) validateOne(c Claim, ctx *action.Context) action.ValidationResult {
	shared := action.NewSharedData()
	r := c.Behavior.Validate(c.Entity, ctx.World, ctx.PlayerID, shared)
	r.Data = &DispatchData{
		Trait:      c.Trait.Type,
		Behavior:   c.Behavior,
		EntityID:   c.Entity.ID,
		EntityName: c.Entity.DisplayName(),
		Shared:     shared,
	}
	ctx.Shared = shared
	return r
}

// restore points the context's shared data at the result being returned.
func (d *Dispatcher) restore(r action.ValidationResult, ctx *action.Context) action.ValidationResult {
	if data, ok := action.DataAs[*DispatchData](&r); ok {
		ctx.Shared = data.Shared
	}
	return r
}

// Execute delegates the execute phase to the validated behavior.
func (d *Dispatcher) Execute(ctx *action.Context) ([]types.Effect, error) {
	data, e := d.resolve(ctx.Validation, ctx)
	if data == nil {
		return nil, nil
	}
	return data.Behavior.Execute(e, ctx.World, ctx.PlayerID, data.Shared)
}

// Report delegates the report phase and turns its effects into events.
func (d *Dispatcher) Report(ctx *action.Context) []types.Event {
	data, e := d.resolve(ctx.Validation, ctx)
	if data == nil {
		return nil
	}
	return toEvents(ctx, data.Behavior.Report(e, ctx.World, ctx.PlayerID, data.Shared))
}

// Blocked delegates the blocked phase. The dispatch data is taken from the
// context's validation result when present, else from result. Without a
// behavior the default action.blocked event is produced.
func (d *Dispatcher) Blocked(ctx *action.Context, result action.ValidationResult, actionID string) []types.Event {
	data, e := d.resolve(ctx.Validation, ctx)
	if data == nil {
		data, e = d.resolve(&result, ctx)
	}
	if data == nil {
		return []types.Event{action.BlockedEvent(ctx, actionID, result)}
	}
	return toEvents(ctx, data.Behavior.Blocked(e, ctx.World, ctx.PlayerID, result.Error, data.Shared))
}

func (d *Dispatcher) resolve(r *action.ValidationResult, ctx *action.Context) (*DispatchData, *world.Entity) {
	data, ok := action.DataAs[*DispatchData](r)
	if !ok || data == nil || data.Behavior == nil {
		return nil, nil
	}
	e, ok := ctx.World.GetEntity(data.EntityID)
	if !ok {
		return nil, nil
	}
	return data, e
}

func toEvents(ctx *action.Context, effs []Effect) []types.Event {
	out := make([]types.Event, 0, len(effs))
	for _, eff := range effs {
		out = append(out, ctx.Event(eff.Type, eff.Payload))
	}
	return out
}
