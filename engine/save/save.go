// Package save implements JSON serialization and deserialization of a
// running game: the world snapshot, machine states, scheduler state and
// the turn counter.
package save

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nathoo/fablecore/engine"
	"github.com/nathoo/fablecore/engine/scheduler"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// FormatVersion is the save layout written by this package.
const FormatVersion = 1

var (
	// ErrVersion is returned for a save written in another layout.
	ErrVersion = errors.New("unsupported save version")
	// ErrGameMismatch is returned when a save belongs to another game.
	ErrGameMismatch = errors.New("save belongs to a different game")
	// ErrSession is returned when the session ID is not a UUID.
	ErrSession = errors.New("invalid session id")
)

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version     int                  `json:"version"`
	Game        string               `json:"game"`
	GameVersion string               `json:"gameVersion,omitempty"`
	Checksum    string               `json:"checksum,omitempty"`
	Session     string               `json:"session"`
	Turn        int                  `json:"turn"`
	World       world.Snapshot       `json:"world"`
	Machines    []types.MachineState `json:"machines"`
	Scheduler   scheduler.State      `json:"scheduler"`
}

// Capture takes the engine's state between turns.
func Capture(e *engine.Engine) SaveData {
	var sd SaveData
	e.Locked(func() {
		sd = SaveData{
			Version:     FormatVersion,
			Game:        e.Defs.Game.Title,
			GameVersion: e.Defs.Game.Version,
			Checksum:    e.Defs.Checksum,
			Session:     e.Session,
			Turn:        e.Turn,
			World:       e.World.Snapshot(),
			Machines:    e.Machines.GetState(),
			Scheduler:   e.Scheduler.GetState(),
		}
	})
	return sd
}

// Save serializes the engine's state to JSON bytes.
func Save(e *engine.Engine) ([]byte, error) {
	return json.MarshalIndent(Capture(e), "", "  ")
}

// Load deserializes and checks JSON save bytes.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("decode save: %w", err)
	}
	if sd.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, sd.Version)
	}
	if _, err := uuid.Parse(sd.Session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSession, err)
	}
	if sd.Machines == nil {
		sd.Machines = []types.MachineState{}
	}
	return &sd, nil
}

// Stale reports whether the game content changed since sd was written.
// Such a save still loads, but content edits may not line up with it.
func (sd *SaveData) Stale(e *engine.Engine) bool {
	return sd.Checksum != "" && e.Defs.Checksum != "" && sd.Checksum != e.Defs.Checksum
}

// Apply restores sd onto e. Machine states are assigned directly, so no
// entry or exit effects run. Nothing is changed if the machine states do
// not fit the engine's machines.
func Apply(e *engine.Engine, sd *SaveData) error {
	if sd.Game != e.Defs.Game.Title {
		return fmt.Errorf("%w: %q", ErrGameMismatch, sd.Game)
	}
	var err error
	e.Locked(func() {
		if err = e.Machines.SetState(sd.Machines); err != nil {
			return
		}
		e.World.Restore(sd.World)
		e.Scheduler.SetState(sd.Scheduler)
		e.Turn = sd.Turn
		e.Session = sd.Session
	})
	if err != nil {
		return fmt.Errorf("restore machines: %w", err)
	}
	return nil
}
