package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/fablecore/engine/guard"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

func testWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.FromDefs(&world.Defs{
		Game:  types.GameDef{Start: "hall"},
		Rooms: map[string]types.RoomDef{"hall": {ID: "hall"}},
	})
	require.NoError(t, err)
	return w
}

func msg(id string) types.Effect {
	return types.Effect{Type: "message", Params: map[string]any{"id": id}}
}

func testScheduler() *Scheduler {
	return New(
		map[string]types.DaemonDef{
			"clock":  {ID: "clock", Every: 2, Active: true, Effects: []types.Effect{msg("tick_tock")}},
			"breeze": {ID: "breeze", Effects: []types.Effect{msg("breeze")}},
			"ghost": {
				ID: "ghost", Active: true, Priority: 5,
				Guards:  []types.Guard{{Type: "state", Key: "haunted", Value: true}},
				Effects: []types.Effect{msg("boo")},
			},
		},
		map[string]types.FuseDef{
			"bomb": {ID: "bomb", Effects: []types.Effect{msg("boom")}},
		},
		guard.NewEvaluator(),
		42,
	)
}

func messageIDs(f Fired) []string {
	var ids []string
	for _, e := range f.Effects {
		ids = append(ids, e.Params["id"].(string))
	}
	return ids
}

func TestTick_DaemonEvery(t *testing.T) {
	s := testScheduler()
	w := testWorld(t)

	var got [][]string
	for i := 0; i < 4; i++ {
		f, err := s.Tick(w, "player")
		require.NoError(t, err)
		got = append(got, messageIDs(f))
	}
	assert.Equal(t, [][]string{nil, {"tick_tock"}, nil, {"tick_tock"}}, got)
}

func TestTick_DaemonGuardAndPriority(t *testing.T) {
	s := testScheduler()
	w := testWorld(t)
	w.SetStateValue("haunted", true)

	_, err := s.Tick(w, "player")
	require.NoError(t, err)
	f, err := s.Tick(w, "player")
	require.NoError(t, err)

	// ghost has higher priority than clock.
	assert.Equal(t, []string{"boo", "tick_tock"}, messageIDs(f))
	require.Len(t, f.Events, 2)
	assert.Equal(t, "scheduler.daemon", f.Events[0].Type)
	assert.Equal(t, "ghost", f.Events[0].Data["daemonId"])
}

func TestSchedule_Fuse(t *testing.T) {
	s := testScheduler()
	w := testWorld(t)
	s.Cancel("clock")
	s.Cancel("ghost")

	require.NoError(t, s.Schedule("bomb", 3))
	assert.True(t, s.Known("bomb"))

	var fired []int
	for turn := 1; turn <= 5; turn++ {
		f, err := s.Tick(w, "player")
		require.NoError(t, err)
		if len(f.Effects) > 0 {
			fired = append(fired, turn)
			assert.Equal(t, "scheduler.fuse", f.Events[0].Type)
		}
	}
	assert.Equal(t, []int{3}, fired)
	_, armed := s.Remaining("bomb")
	assert.False(t, armed)
}

func TestSchedule_DaemonDelay(t *testing.T) {
	s := testScheduler()
	w := testWorld(t)
	s.Cancel("clock")
	s.Cancel("ghost")

	require.NoError(t, s.Schedule("breeze", 2))
	assert.True(t, s.Active("breeze"))

	var fired []int
	for turn := 1; turn <= 4; turn++ {
		f, err := s.Tick(w, "player")
		require.NoError(t, err)
		if len(f.Effects) > 0 {
			fired = append(fired, turn)
		}
	}
	assert.Equal(t, []int{3, 4}, fired)
}

func TestSchedule_Unknown(t *testing.T) {
	s := testScheduler()
	assert.False(t, s.Known("dragon"))
	assert.ErrorIs(t, s.Schedule("dragon", 1), ErrUnknown)
}

func TestDaemonChance(t *testing.T) {
	s := New(map[string]types.DaemonDef{
		"rat": {ID: "rat", Active: true, Chance: 30, Effects: []types.Effect{msg("squeak")}},
	}, nil, guard.NewEvaluator(), 7)
	w := testWorld(t)

	runs := 0
	for i := 0; i < 200; i++ {
		f, err := s.Tick(w, "player")
		require.NoError(t, err)
		runs += len(f.Effects)
	}
	assert.Greater(t, runs, 20)
	assert.Less(t, runs, 120)
}

func TestStateRoundTrip(t *testing.T) {
	s := testScheduler()
	w := testWorld(t)
	require.NoError(t, s.Schedule("bomb", 4))
	_, err := s.Tick(w, "player")
	require.NoError(t, err)

	st := s.GetState()

	restored := testScheduler()
	restored.SetState(st)

	n, ok := restored.Remaining("bomb")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, st, restored.GetState())

	// Both continue identically.
	a, err := s.Tick(w, "player")
	require.NoError(t, err)
	b, err := restored.Tick(w, "player")
	require.NoError(t, err)
	assert.Equal(t, messageIDs(a), messageIDs(b))
}

func TestTick_GuardError(t *testing.T) {
	s := New(map[string]types.DaemonDef{
		"bad": {ID: "bad", Active: true, Guards: []types.Guard{{Type: "inventory", Entity: "$nothing"}}},
	}, nil, guard.NewEvaluator(), 1)

	_, err := s.Tick(testWorld(t), "player")
	assert.ErrorIs(t, err, guard.ErrUnresolvedBinding)
}
