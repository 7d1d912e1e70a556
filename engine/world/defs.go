package world

import "github.com/nathoo/fablecore/types"

// DefaultPlayerID is the player entity ID when the game does not name one.
const DefaultPlayerID = "player"

// Defs holds the immutable game definitions produced by the loader.
type Defs struct {
	Game         types.GameDef
	Rooms        map[string]types.RoomDef
	Entities     map[string]types.EntityDef
	GlobalRules  []types.RuleDef
	Handlers     []types.EventHandler
	Machines     []types.MachineDef
	Daemons      map[string]types.DaemonDef
	Fuses        map[string]types.FuseDef
	Messages     map[string]string
	Capabilities map[string]map[string]any
	Checksum     string // content fingerprint; empty for hand-built defs
}

// PlayerID returns the player entity ID.
func (d *Defs) PlayerID() string {
	if d.Game.Player != "" {
		return d.Game.Player
	}
	return DefaultPlayerID
}
