// Package scheduler runs daemons (recurring processes) and fuses
// (one-shot countdowns) once per turn. Both yield effect batches that the
// turn controller runs through the effect processor.
package scheduler

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/nathoo/fablecore/engine/events"
	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// ErrUnknown is returned when scheduling an ID that names no daemon or fuse.
var ErrUnknown = errors.New("unknown daemon or fuse")

// DaemonState is the runtime state of one daemon.
type DaemonState struct {
	Active bool `json:"active"`
	Wait   int  `json:"wait,omitempty"`  // turns before the daemon starts counting
	Since  int  `json:"since,omitempty"` // turns since the last run
	Runs   int  `json:"runs,omitempty"`
}

// State is the serializable scheduler state.
type State struct {
	Daemons     map[string]DaemonState `json:"daemons"`
	Fuses       map[string]int         `json:"fuses"`
	Seed        int64                  `json:"seed"`
	RNGPosition int64                  `json:"rngPosition"`
}

// Fired is what one tick produced.
type Fired struct {
	Effects []types.Effect
	Events  []types.Event
}

// Scheduler holds daemon and fuse definitions and their runtime state.
type Scheduler struct {
	daemons map[string]types.DaemonDef
	fuses   map[string]types.FuseDef
	state   map[string]*DaemonState
	armed   map[string]int
	rng     *RNG
	guards  *guard.Evaluator
}

// New creates a scheduler. Daemons marked Active start running at once.
func New(daemons map[string]types.DaemonDef, fuses map[string]types.FuseDef, ev *guard.Evaluator, seed int64) *Scheduler {
	s := &Scheduler{
		daemons: maps.Clone(daemons),
		fuses:   maps.Clone(fuses),
		state:   map[string]*DaemonState{},
		armed:   map[string]int{},
		rng:     NewRNG(seed),
		guards:  ev,
	}
	if s.daemons == nil {
		s.daemons = map[string]types.DaemonDef{}
	}
	if s.fuses == nil {
		s.fuses = map[string]types.FuseDef{}
	}
	for id, d := range s.daemons {
		s.state[id] = &DaemonState{Active: d.Active}
	}
	return s
}

// Known reports whether id names a daemon or a fuse.
func (s *Scheduler) Known(id string) bool {
	_, d := s.daemons[id]
	_, f := s.fuses[id]
	return d || f
}

// Schedule arms a fuse to burn for turns, or starts a daemon after turns.
func (s *Scheduler) Schedule(id string, turns int) error {
	if _, ok := s.fuses[id]; ok {
		s.armed[id] = turns
		return nil
	}
	if _, ok := s.daemons[id]; ok {
		st := s.state[id]
		st.Active = true
		st.Wait = turns
		st.Since = 0
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknown, id)
}

// Cancel disarms a fuse or stops a daemon.
func (s *Scheduler) Cancel(id string) {
	delete(s.armed, id)
	if st, ok := s.state[id]; ok {
		st.Active = false
	}
}

// Remaining returns the turns left on an armed fuse.
func (s *Scheduler) Remaining(id string) (int, bool) {
	n, ok := s.armed[id]
	return n, ok
}

// Active reports whether a daemon is running.
func (s *Scheduler) Active(id string) bool {
	st, ok := s.state[id]
	return ok && st.Active
}

// Tick advances every daemon and fuse by one turn. Daemons run before
// fuses; within each group higher priority runs first, then ID order.
func (s *Scheduler) Tick(w world.Model, playerID string) (Fired, error) {
	var out Fired

	for _, d := range s.sortedDaemons() {
		st := s.state[d.ID]
		if !st.Active {
			continue
		}
		if st.Wait > 0 {
			st.Wait--
			continue
		}
		st.Since++
		every := d.Every
		if every <= 0 {
			every = 1
		}
		if st.Since < every {
			continue
		}
		st.Since = 0
		chance := d.Chance
		if chance == 0 {
			chance = 100
		}
		if !s.rng.Chance(chance) {
			continue
		}
		ok, err := s.guards.All(d.Guards, w, nil, playerID)
		if err != nil {
			return Fired{}, fmt.Errorf("daemon %s: %w", d.ID, err)
		}
		if !ok {
			continue
		}
		st.Runs++
		out.Effects = append(out.Effects, d.Effects...)
		out.Events = append(out.Events, events.New("scheduler.daemon", nil, map[string]any{"daemonId": d.ID}))
	}

	for _, f := range s.sortedArmedFuses() {
		s.armed[f.ID]--
		if s.armed[f.ID] > 0 {
			continue
		}
		delete(s.armed, f.ID)
		ok, err := s.guards.All(f.Guards, w, nil, playerID)
		if err != nil {
			return Fired{}, fmt.Errorf("fuse %s: %w", f.ID, err)
		}
		if !ok {
			continue
		}
		out.Effects = append(out.Effects, f.Effects...)
		out.Events = append(out.Events, events.New("scheduler.fuse", nil, map[string]any{"fuseId": f.ID}))
	}

	return out, nil
}

// GetState captures daemon, fuse and RNG state.
func (s *Scheduler) GetState() State {
	st := State{
		Daemons:     map[string]DaemonState{},
		Fuses:       maps.Clone(s.armed),
		Seed:        s.rng.Seed(),
		RNGPosition: s.rng.Position(),
	}
	for id, d := range s.state {
		st.Daemons[id] = *d
	}
	return st
}

// SetState restores a captured state. Entries for unknown IDs are ignored.
func (s *Scheduler) SetState(st State) {
	for id := range s.state {
		s.state[id] = &DaemonState{}
	}
	for id, d := range st.Daemons {
		if _, ok := s.daemons[id]; ok {
			d := d
			s.state[id] = &d
		}
	}
	s.armed = map[string]int{}
	for id, n := range st.Fuses {
		if _, ok := s.fuses[id]; ok {
			s.armed[id] = n
		}
	}
	s.rng = RestoreRNG(st.Seed, st.RNGPosition)
}

func (s *Scheduler) sortedDaemons() []types.DaemonDef {
	ds := slices.Collect(maps.Values(s.daemons))
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Priority != ds[j].Priority {
			return ds[i].Priority > ds[j].Priority
		}
		return ds[i].ID < ds[j].ID
	})
	return ds
}

func (s *Scheduler) sortedArmedFuses() []types.FuseDef {
	var fs []types.FuseDef
	for id := range s.armed {
		fs = append(fs, s.fuses[id])
	}
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Priority != fs[j].Priority {
			return fs[i].Priority > fs[j].Priority
		}
		return fs[i].ID < fs[j].ID
	})
	return fs
}
