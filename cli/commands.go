package cli

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nathoo/fablecore/engine"
	"github.com/nathoo/fablecore/engine/metrics"
	"github.com/nathoo/fablecore/engine/save"
	"github.com/nathoo/fablecore/engine/world"
	"github.com/nathoo/fablecore/types"
)

// LineKind classifies a line of output for the front end.
type LineKind int

const (
	Narrative LineKind = iota
	System
	Trace
)

// Line is one line of output.
type Line struct {
	Text string
	Kind LineKind
}

// Reply is everything one line of input produced.
type Reply struct {
	Lines []Line
	Quit  bool
}

func (r *Reply) add(kind LineKind, texts ...string) {
	for _, t := range texts {
		r.Lines = append(r.Lines, Line{Text: t, Kind: kind})
	}
}

// Commands turns player input into engine turns and runs the slash
// meta-commands. The plain and full-screen front ends share it.
type Commands struct {
	Engine  *engine.Engine
	SaveDir string
	Metrics prometheus.Gatherer // nil disables /metrics
	Logger  *slog.Logger
	Trace   bool
	lastCmd string
}

// NewCommands creates a command handler. A nil logger discards.
func NewCommands(eng *engine.Engine, saveDir string, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Commands{Engine: eng, SaveDir: saveDir, Logger: logger}
}

// Handle runs one trimmed, non-empty line of input.
func (c *Commands) Handle(input string) Reply {
	var r Reply
	if strings.HasPrefix(input, "/") {
		c.meta(&r, input)
		return r
	}

	switch strings.ToLower(input) {
	case "again", "g":
		if c.lastCmd == "" {
			r.add(Narrative, "Nothing to repeat.")
			return r
		}
		input = c.lastCmd
	default:
		c.lastCmd = input
	}
	c.turn(&r, input)
	return r
}

// turn runs one engine step. A content error is logged and reported; the
// session carries on.
func (c *Commands) turn(r *Reply, input string) {
	result, err := c.Engine.Step(input)
	r.add(Narrative, result.Output...)
	if err != nil {
		c.logger().Error("turn failed", "input", input, "turn", c.Engine.Turn, "err", err)
		r.add(System, fmt.Sprintf("Something went wrong: %v", err))
	}
	if c.Trace {
		r.add(Trace, traceLines(result)...)
	}
}

func (c *Commands) logger() *slog.Logger {
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

func (c *Commands) meta(r *Reply, input string) {
	parts := strings.Fields(input)
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch parts[0] {
	case "/quit", "/exit":
		r.add(System, "Goodbye.")
		r.Quit = true
	case "/save":
		c.save(r, arg)
	case "/load":
		c.load(r, arg)
	case "/saves":
		c.listSaves(r)
	case "/help":
		r.add(Narrative, helpText...)
	case "/state":
		r.add(System, c.stateLines()...)
	case "/metrics":
		c.metrics(r)
	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			r.add(System, "Trace output enabled.")
		} else {
			r.add(System, "Trace output disabled.")
		}
	default:
		r.add(System, fmt.Sprintf("Unknown command: %s. Type /help for available commands.", parts[0]))
	}
}

func (c *Commands) savePath(name string) string {
	if name == "" {
		name = "quicksave"
	}
	return filepath.Join(c.SaveDir, name+".json")
}

func (c *Commands) save(r *Reply, name string) {
	path := c.savePath(name)
	data, err := save.Save(c.Engine)
	if err == nil {
		err = os.MkdirAll(c.SaveDir, 0o755)
	}
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		c.logger().Warn("save failed", "path", path, "err", err)
		r.add(System, fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.logger().Info("game saved", "path", path, "turn", c.Engine.Turn)
	r.add(System, fmt.Sprintf("Game saved to %s.", filepath.Base(path)))
}

func (c *Commands) load(r *Reply, name string) {
	path := c.savePath(name)
	sd, err := readSave(c.Engine, path)
	if err != nil {
		c.logger().Warn("load failed", "path", path, "err", err)
		r.add(System, fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.logger().Info("game loaded", "path", path, "turn", sd.Turn, "session", sd.Session)
	r.add(System, fmt.Sprintf("Game loaded from %s (turn %d).", filepath.Base(path), sd.Turn))
	if sd.Stale(c.Engine) {
		c.logger().Warn("save predates content changes", "path", path, "checksum", sd.Checksum)
		r.add(System, "Warning: the game has changed since this save was made.")
	}
	c.turn(r, "look")
}

func (c *Commands) listSaves(r *Reply) {
	matches, err := filepath.Glob(filepath.Join(c.SaveDir, "*.json"))
	if err != nil || len(matches) == 0 {
		r.add(System, "No saved games.")
		return
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = strings.TrimSuffix(filepath.Base(m), ".json")
	}
	natsort.Sort(names)
	r.add(System, "Saved games: "+strings.Join(names, ", "))
}

func readSave(e *engine.Engine, path string) (*save.SaveData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sd, err := save.Load(data)
	if err != nil {
		return nil, err
	}
	if err := save.Apply(e, sd); err != nil {
		return nil, err
	}
	return sd, nil
}

func (c *Commands) stateLines() []string {
	var out []string
	e := c.Engine
	e.Locked(func() {
		player := e.PlayerID()
		out = append(out,
			fmt.Sprintf("Session: %s", e.Session),
			fmt.Sprintf("Turn: %d", e.Turn),
			fmt.Sprintf("Location: %s", world.RoomOf(e.World, player)),
			fmt.Sprintf("Inventory: %v", e.World.Contents(player)),
		)
		snap := e.World.Snapshot()
		for _, k := range slices.Sorted(maps.Keys(snap.State)) {
			out = append(out, fmt.Sprintf("State %s = %v", k, snap.State[k]))
		}
		for _, id := range e.Machines.IDs() {
			cur, _ := e.Machines.Current(id)
			out = append(out, fmt.Sprintf("Machine %s: %s", id, cur))
		}
	})
	return out
}

func (c *Commands) metrics(r *Reply) {
	if c.Metrics == nil {
		r.add(System, "Metrics are disabled. Set FABLECORE_METRICS=true to enable them.")
		return
	}
	lines, err := metrics.Summary(c.Metrics)
	if err != nil {
		r.add(System, fmt.Sprintf("Metrics failed: %v", err))
		return
	}
	r.add(System, lines...)
}

func traceLines(result types.Result) []string {
	var lines []string
	if len(result.Effects) > 0 {
		lines = append(lines, fmt.Sprintf("[trace] Effects: %d", len(result.Effects)))
		for _, e := range result.Effects {
			lines = append(lines, fmt.Sprintf("[trace]   %s %v", e.Type, e.Params))
		}
	}
	if len(result.Events) > 0 {
		lines = append(lines, fmt.Sprintf("[trace] Events: %d", len(result.Events)))
		for _, e := range result.Events {
			lines = append(lines, fmt.Sprintf("[trace]   %s %v", e.Type, e.Entities))
		}
	}
	return lines
}

var helpText = []string{
	"System:",
	"  /save [name]  Save game (default: quicksave)",
	"  /load [name]  Load game (default: quicksave)",
	"  /saves        List saved games",
	"  /quit         Exit game",
	"  /help         Show this help",
	"  /state        Debug: dump current state",
	"  /metrics      Debug: show engine counters",
	"  /trace        Toggle debug trace output",
	"",
	"Game commands:",
	"  look (l)              Describe the room",
	"  examine <thing> (x)   Look closely at something",
	"  go <dir>              Move (or just type n/s/e/w/u/d)",
	"  take/get <item>       Pick something up",
	"  drop <item>           Put something down",
	"  open / close <thing>  Open or close something",
	"  unlock <thing> with <key>",
	"  inventory (i)         Check what you're carrying",
	"  wait (z)              Let time pass",
	"  again (g)             Repeat your last command",
}
