package stdlib

import (
	"github.com/nathoo/fablecore/engine/action"
	"github.com/nathoo/fablecore/types"
)

// TargetData is the payload of actions on a single entity.
type TargetData struct {
	TargetID string
}

// PayloadKind implements action.Payload.
func (TargetData) PayloadKind() string { return "target" }

type looking struct{}

func (looking) ID() string { return Looking }

func (looking) Validate(ctx *action.Context) action.ValidationResult {
	room := ctx.Location()
	if room == "" {
		return action.Invalid("not_in_room", nil)
	}
	return action.Valid(TargetData{TargetID: room})
}

func (looking) Execute(*action.Context) ([]types.Effect, error) { return nil, nil }

func (looking) Report(ctx *action.Context) []types.Event {
	d, ok := action.DataAs[TargetData](ctx.Validation)
	if !ok {
		return nil
	}
	return []types.Event{ctx.Event(RoomDescribed, describeRoom(ctx, d.TargetID))}
}

func (looking) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Looking, r)}
}

type examining struct{}

func (examining) ID() string { return Examining }

func (examining) Validate(ctx *action.Context) action.ValidationResult {
	id := ctx.Command.DirectObject
	if id == "" {
		return action.Invalid("no_target", nil)
	}
	if !ctx.World.HasEntity(id) || !Reachable(ctx.World, ctx.PlayerID, id) {
		return action.Invalid("not_visible", nil)
	}
	return action.Valid(TargetData{TargetID: id})
}

func (examining) Execute(*action.Context) ([]types.Effect, error) { return nil, nil }

func (examining) Report(ctx *action.Context) []types.Event {
	d, ok := action.DataAs[TargetData](ctx.Validation)
	if !ok {
		return nil
	}
	e, _ := ctx.World.GetEntity(d.TargetID)
	params := map[string]any{"item": e.DisplayName(), "description": e.Description()}
	key := "examined"
	if e.Description() == "" {
		key = "nothing_special"
	}
	if t := e.Get(TraitOpenable); t != nil {
		params["open"] = t.Bool("open")
	}
	if e.Has(TraitContainer) {
		params["contents"] = visibleContents(ctx.World, ctx.PlayerID, d.TargetID)
	}
	return []types.Event{ctx.Event("if.event.examined", map[string]any{
		"messageId": messageID(Examining, key),
		"params":    params,
	})}
}

func (examining) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Examining, r)}
}

type inventory struct{}

func (inventory) ID() string { return Inventory }

func (inventory) Validate(*action.Context) action.ValidationResult { return action.Valid(nil) }

func (inventory) Execute(*action.Context) ([]types.Effect, error) { return nil, nil }

func (inventory) Report(ctx *action.Context) []types.Event {
	items := visibleContents(ctx.World, ctx.PlayerID, ctx.PlayerID)
	key := "carrying"
	if len(items) == 0 {
		key = "empty"
	}
	return []types.Event{ctx.Event("if.event.inventory", map[string]any{
		"messageId": messageID(Inventory, key),
		"params":    map[string]any{"items": items},
	})}
}

func (inventory) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Inventory, r)}
}

type waiting struct{}

func (waiting) ID() string { return Waiting }

func (waiting) Validate(*action.Context) action.ValidationResult { return action.Valid(nil) }

func (waiting) Execute(*action.Context) ([]types.Effect, error) { return nil, nil }

func (waiting) Report(ctx *action.Context) []types.Event {
	return []types.Event{ctx.Event("if.event.waited", map[string]any{
		"messageId": messageID(Waiting, "time_passes"),
	})}
}

func (waiting) Blocked(ctx *action.Context, r action.ValidationResult) []types.Event {
	return []types.Event{action.BlockedEvent(ctx, Waiting, r)}
}
