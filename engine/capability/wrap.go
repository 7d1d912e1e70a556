package capability

import (
	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// Wrap returns an action that checks for a capability claim on the
// command's objects before each phase and hands the phase to the claiming
// behavior when there is one. Without a claim the inner action runs.
func Wrap(inner action.Action, d *Dispatcher) action.Action {
	return &dispatching{inner: inner, d: d}
}

type dispatching struct {
	inner action.Action
	d     *Dispatcher
}

func (a *dispatching) ID() string { return a.inner.ID() }

// Unwrap returns the standard action.
func (a *dispatching) Unwrap() action.Action { return a.inner }

func (a *dispatching) Validate(ctx *action.Context) action.ValidationResult {
	check := a.d.CheckDispatchMulti(a.inner.ID(), a.objects(ctx)...)
	if !check.ShouldDispatch {
		return a.inner.Validate(ctx)
	}
	return a.d.Validate(check, ctx)
}

func (a *dispatching) Execute(ctx *action.Context) ([]types.Effect, error) {
	if dispatched(ctx.Validation) {
		return a.d.Execute(ctx)
	}
	return a.inner.Execute(ctx)
}

func (a *dispatching) Report(ctx *action.Context) []types.Event {
	if dispatched(ctx.Validation) {
		return a.d.Report(ctx)
	}
	return a.inner.Report(ctx)
}

func (a *dispatching) Blocked(ctx *action.Context, result action.ValidationResult) []types.Event {
	if dispatched(ctx.Validation) || dispatched(&result) {
		return a.d.Blocked(ctx, result, a.inner.ID())
	}
	return a.inner.Blocked(ctx, result)
}

func (a *dispatching) objects(ctx *action.Context) []*world.Entity {
	var out []*world.Entity
	for _, id := range []string{ctx.Command.DirectObject, ctx.Command.IndirectObject} {
		if id == "" {
			continue
		}
		if e, ok := ctx.World.GetEntity(id); ok {
			out = append(out, e)
		}
	}
	return out
}

func dispatched(r *action.ValidationResult) bool {
	_, ok := action.DataAs[*DispatchData](r)
	return ok
}
