package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/fablecore/engine"
	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/metrics"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

func testDefs() *world.Defs {
	return &world.Defs{
		Game: types.GameDef{
			Title:   "Test Game",
			Version: "1.0",
			Start:   "hall",
			Intro:   "Welcome to the test.",
		},
		Rooms: map[string]types.RoomDef{
			"hall": {
				ID:          "hall",
				Description: "A grand hall.",
				Exits:       map[string]string{"north": "garden"},
			},
			"garden": {
				ID:          "garden",
				Description: "A peaceful garden.",
				Exits:       map[string]string{"south": "hall"},
			},
		},
		Entities: map[string]types.EntityDef{
			"key": {ID: "key", Name: "rusty key", Kind: "item", Location: "hall",
				Attrs: map[string]any{"description": "An old key."}},
		},
		GlobalRules: []types.RuleDef{{
			ID:      "vanish",
			Scope:   "global",
			When:    types.MatchCriteria{Action: "if.action.vanish"},
			Guards:  []types.Guard{{Type: types.GuardCustom, Name: "is_haunted"}},
			Effects: []types.Effect{effects.Message("You fade away.", nil)},
		}, {
			ID:      "jump",
			Scope:   "global",
			When:    types.MatchCriteria{Action: "if.action.jump"},
			Effects: []types.Effect{effects.MoveEntity("ghost", "hall")},
		}},
	}
}

func newTestCLI(t *testing.T, input string, opts ...engine.Option) (*CLI, *bytes.Buffer) {
	t.Helper()
	opts = append([]engine.Option{engine.WithLogger(slogt.New(t))}, opts...)
	eng, err := engine.New(testDefs(), opts...)
	require.NoError(t, err)
	var out bytes.Buffer
	return &CLI{
		Commands: NewCommands(eng, t.TempDir(), slogt.New(t)),
		In:       strings.NewReader(input),
		Out:      &out,
	}, &out
}

func TestCLI_IntroAndStartingRoom(t *testing.T) {
	c, out := newTestCLI(t, "/quit\n")
	c.Run()

	assert.Contains(t, out.String(), "Welcome to the test.")
	assert.Contains(t, out.String(), "A grand hall.")
	assert.Contains(t, out.String(), "[Goodbye.]")
}

func TestCLI_Gameplay(t *testing.T) {
	c, out := newTestCLI(t, "take key\ngo north\ni\n/quit\n")
	c.Run()

	output := out.String()
	assert.Contains(t, output, "Taken.")
	assert.Contains(t, output, "A peaceful garden.")
	assert.Equal(t, 3, c.Engine.Turn)
}

func TestCLI_HelpCommand(t *testing.T) {
	c, out := newTestCLI(t, "/help\n/quit\n")
	c.Run()

	for _, cmd := range []string{"/save", "/load", "/quit", "/metrics"} {
		assert.Contains(t, out.String(), cmd)
	}
}

func TestCLI_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	c, out := newTestCLI(t, "go north\n/save test\n/quit\n")
	c.SaveDir = dir
	c.Run()
	assert.Contains(t, out.String(), "Game saved to test.json.")
	assert.FileExists(t, filepath.Join(dir, "test.json"))

	c2, out2 := newTestCLI(t, "/load test\n/quit\n")
	c2.SaveDir = dir
	c2.Run()
	assert.Contains(t, out2.String(), "Game loaded from test.json (turn 1).")
	assert.Equal(t, "garden", world.RoomOf(c2.Engine.World, "player"))
	assert.Equal(t, c.Engine.Session, c2.Engine.Session)
}

func TestCLI_LoadFailures(t *testing.T) {
	c, out := newTestCLI(t, "/load nonexistent\n/load corrupt\n/quit\n")
	require.NoError(t, os.WriteFile(filepath.Join(c.SaveDir, "corrupt.json"), []byte("{"), 0o644))
	c.Run()

	assert.Equal(t, 2, strings.Count(out.String(), "Load failed"))
	assert.Equal(t, 0, c.Engine.Turn)
}

func TestCLI_ContentErrorIsLoggedAndPlayContinues(t *testing.T) {
	var logs bytes.Buffer
	c, out := newTestCLI(t, "vanish\nlook\n/quit\n")
	c.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	c.Run()

	assert.Contains(t, out.String(), "Something went wrong")
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "input=vanish")
	assert.Equal(t, 2, strings.Count(out.String(), "A grand hall."), "intro, then look after the failure")
}

func TestCLI_RejectedBatchIsNarrated(t *testing.T) {
	c, out := newTestCLI(t, "jump\n/quit\n")
	c.Run()

	assert.Contains(t, out.String(), "Nothing happens.")
	assert.NotContains(t, out.String(), "Something went wrong")
	assert.Equal(t, 1, c.Engine.Turn)
}

func TestCLI_Metrics(t *testing.T) {
	c, out := newTestCLI(t, "/metrics\n/quit\n")
	c.Run()
	assert.Contains(t, out.String(), "Metrics are disabled")

	reg := prometheus.NewRegistry()
	c, out = newTestCLI(t, "look\n/metrics\n/quit\n", engine.WithMetrics(metrics.New(reg)))
	c.Metrics = reg
	c.Run()
	assert.Contains(t, out.String(), `[fablecore_turns_total{outcome="ok"} 1]`)
}

func TestCLI_UnknownMetaCommand(t *testing.T) {
	c, out := newTestCLI(t, "/bogus\n/quit\n")
	c.Run()
	assert.Contains(t, out.String(), "Unknown command: /bogus")
}

func TestCLI_TraceToggle(t *testing.T) {
	c, out := newTestCLI(t, "/trace\ntake key\n/trace\n/quit\n")
	c.Run()

	output := out.String()
	assert.Contains(t, output, "Trace output enabled")
	assert.Contains(t, output, "[trace] Effects: 1")
	assert.Contains(t, output, "[trace]   if.event.taken")
	assert.Contains(t, output, "Trace output disabled")
}

func TestCLI_StateCommand(t *testing.T) {
	c, out := newTestCLI(t, "take key\n/state\n/quit\n")
	c.Run()

	output := out.String()
	assert.Contains(t, output, "[Location: hall]")
	assert.Contains(t, output, "[Turn: 1]")
	assert.Contains(t, output, "[Inventory: [key]]")
	assert.Contains(t, output, "[Session: "+c.Engine.Session+"]")
}

func TestCLI_EmptyAndCommentLinesSkipped(t *testing.T) {
	c, out := newTestCLI(t, "\n# a comment\n\n/quit\n")
	c.Run()

	assert.NotContains(t, out.String(), "What do you want to do?")
	assert.Equal(t, 0, c.Engine.Turn)
}

func TestCLI_EchoInput(t *testing.T) {
	c, out := newTestCLI(t, "look\n/quit\n")
	c.EchoInput = true
	c.Run()
	assert.Contains(t, out.String(), "> look\n")
}

func TestCLI_Again(t *testing.T) {
	for _, word := range []string{"again", "g"} {
		t.Run(word, func(t *testing.T) {
			c, out := newTestCLI(t, "look\n"+word+"\n/quit\n")
			c.Run()
			assert.Equal(t, 3, strings.Count(out.String(), "A grand hall."), "intro, look and the repeat")
		})
	}
}

func TestCLI_Again_NothingToRepeat(t *testing.T) {
	c, out := newTestCLI(t, "again\n/quit\n")
	c.Run()
	assert.Contains(t, out.String(), "Nothing to repeat")
}

func TestCLI_ListSaves(t *testing.T) {
	c, out := newTestCLI(t, "/saves\n/save slot10\n/save slot2\n/saves\n/quit\n")
	c.Run()

	assert.Contains(t, out.String(), "[No saved games.]")
	assert.Contains(t, out.String(), "[Saved games: slot2, slot10]")
}

func TestCLI_LoadWarnsWhenContentChanged(t *testing.T) {
	c, _ := newTestCLI(t, "/save old\n/quit\n")
	c.Engine.Defs.Checksum = "aaaa"
	c.Run()

	c2, out := newTestCLI(t, "/load old\n/quit\n")
	c2.SaveDir = c.SaveDir
	c2.Engine.Defs.Checksum = "bbbb"
	c2.Run()
	assert.Contains(t, out.String(), "Game loaded from old.json")
	assert.Contains(t, out.String(), "the game has changed since this save was made")
}
