package stdlib

import (
	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// LockData is the payload of unlocking.
type LockData struct {
	TargetID string
	KeyID    string
}

// PayloadKind implements action.Payload.
func (LockData) PayloadKind() string { return "lock" }

// target resolves the direct object and checks it can be reached.
func target(ctx *action.Context) (*world.Entity, action.ValidationResult, bool) {
	id := ctx.Command.DirectObject
	if id == "" {
		return nil, action.Invalid("no_target", nil), false
	}
	e, ok := ctx.World.GetEntity(id)
	if !ok || !Reachable(ctx.World, ctx.PlayerID, id) {
		return nil, action.Invalid("not_visible", nil), false
	}
	return e, action.ValidationResult{}, true
}

type opening struct{}

func (opening) ID() string { return Opening }

func (opening) Validate(ctx *action.Context) action.ValidationResult {
	e, r, ok := target(ctx)
	if !ok {
		return r
	}
	params := map[string]any{"item": e.DisplayName()}
	t := e.Get(TraitOpenable)
	switch {
	case t == nil:
		return action.Invalid("not_openable", params)
	case t.Bool("open"):
		return action.Invalid("already_open", params)
	case e.Has(TraitLockable) && e.Get(TraitLockable).Bool("locked"):
		return action.Invalid("locked", params)
	}
	return action.Valid(TargetData{TargetID: e.ID})
}

func (opening) Execute(ctx *action.Context) ([]types.Effect, error) {
	return setOpen(ctx, true), nil
}

func (opening) Report(ctx *action.Context) []types.Event {
	return openReport(ctx, "if.event.opened", Opening, "opened")
}

func (opening) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Opening, r)}
}

type closing struct{}

func (closing) ID() string { return Closing }

func (closing) Validate(ctx *action.Context) action.ValidationResult {
	e, r, ok := target(ctx)
	if !ok {
		return r
	}
	params := map[string]any{"item": e.DisplayName()}
	t := e.Get(TraitOpenable)
	switch {
	case t == nil:
		return action.Invalid("not_closable", params)
	case !t.Bool("open"):
		return action.Invalid("already_closed", params)
	}
	return action.Valid(TargetData{TargetID: e.ID})
}

func (closing) Execute(ctx *action.Context) ([]types.Effect, error) {
	return setOpen(ctx, false), nil
}

func (closing) Report(ctx *action.Context) []types.Event {
	return openReport(ctx, "if.event.closed", Closing, "closed")
}

func (closing) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Closing, r)}
}

func setOpen(ctx *action.Context, open bool) []types.Effect {
	d, ok := action.DataAs[TargetData](ctx.Validation)
	if !ok {
		return nil
	}
	return []types.Effect{effects.UpdateEntity(d.TargetID, map[string]any{TraitOpenable + ".open": open})}
}

func openReport(ctx *action.Context, typ, actionID, key string) []types.Event {
	d, ok := action.DataAs[TargetData](ctx.Validation)
	if !ok {
		return nil
	}
	params := map[string]any{"item": name(ctx.World, d.TargetID)}
	if typ == "if.event.opened" {
		if e, ok := ctx.World.GetEntity(d.TargetID); ok && e.Has(TraitContainer) {
			params["contents"] = visibleContents(ctx.World, ctx.PlayerID, d.TargetID)
		}
	}
	return []types.Event{ctx.Event(typ, map[string]any{
		"messageId": messageID(actionID, key),
		"params":    params,
	})}
}

type unlocking struct{}

func (unlocking) ID() string { return Unlocking }

func (unlocking) Validate(ctx *action.Context) action.ValidationResult {
	e, r, ok := target(ctx)
	if !ok {
		return r
	}
	params := map[string]any{"item": e.DisplayName()}
	t := e.Get(TraitLockable)
	if t == nil {
		return action.Invalid("not_lockable", params)
	}
	if !t.Bool("locked") {
		return action.Invalid("already_unlocked", params)
	}
	key := ctx.Command.IndirectObject
	required := t.String("key")
	switch {
	case required != "" && key == "":
		return action.Invalid("no_key", params)
	case key != "" && ctx.World.GetLocation(key) != ctx.PlayerID:
		params["key"] = name(ctx.World, key)
		return action.Invalid("key_not_held", params)
	case required != "" && key != required:
		params["key"] = name(ctx.World, key)
		return action.Invalid("wrong_key", params)
	}
	return action.Valid(LockData{TargetID: e.ID, KeyID: key})
}

func (unlocking) Execute(ctx *action.Context) ([]types.Effect, error) {
	d, ok := action.DataAs[LockData](ctx.Validation)
	if !ok {
		return nil, nil
	}
	return []types.Effect{effects.UpdateEntity(d.TargetID, map[string]any{TraitLockable + ".locked": false})}, nil
}

func (unlocking) Report(ctx *action.Context) []types.Event {
	d, ok := action.DataAs[LockData](ctx.Validation)
	if !ok {
		return nil
	}
	params := map[string]any{"item": name(ctx.World, d.TargetID)}
	key := "unlocked"
	if d.KeyID != "" {
		params["key"] = name(ctx.World, d.KeyID)
		key = "unlocked_with"
	}
	return []types.Event{ctx.Event("if.event.unlocked", map[string]any{
		"messageId": messageID(Unlocking, key),
		"params":    params,
	})}
}

func (unlocking) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Unlocking, r)}
}
