// Package loader reads game content from a directory of Lua scripts and
// YAML machine files and compiles it into immutable definitions. The Lua
// VM only lives for the duration of Load.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fablecore/engine/world"
)

// collector accumulates definitions while scripts run.
type collector struct {
	game         *lua.LTable
	rooms        []rawRoom
	entities     []rawEntity
	rules        []rawRule
	handlers     []rawHandler
	machines     []rawMachine
	daemons      []rawTimer
	fuses        []rawTimer
	messages     map[string]string
	capabilities map[string]*lua.LTable
	order        int
}

func newCollector() *collector {
	return &collector{messages: map[string]string{}, capabilities: map[string]*lua.LTable{}}
}

func (c *collector) nextSourceOrder() int {
	c.order++
	return c.order
}

type options struct {
	logger *slog.Logger
}

// Option configures Load.
type Option func(*options)

// WithLogger sets the logger that receives validation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Load runs every .lua file in dir (game.lua first, the rest sorted),
// decodes every .yaml or .yml file as a machine definition, then compiles
// and validates the result.
func Load(dir string, opts ...Option) (*world.Defs, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading game directory %s: %w", dir, err)
	}
	var scripts, machineFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".lua":
			scripts = append(scripts, e.Name())
		case ".yaml", ".yml":
			machineFiles = append(machineFiles, e.Name())
		}
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}
	scripts = scriptOrder(scripts)
	slices.Sort(machineFiles)

	L := newVM()
	defer L.Close()
	coll := newCollector()
	registerAPI(L, coll)

	for _, f := range scripts {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}

	defs, err := compile(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling game data: %w", err)
	}
	for _, f := range machineFiles {
		ms, err := readMachineFile(filepath.Join(dir, f))
		if err != nil {
			return nil, err
		}
		defs.Machines = append(defs.Machines, ms...)
	}
	if defs.Checksum, err = checksum(dir, append(scripts, machineFiles...)); err != nil {
		return nil, err
	}

	warnings, err := validate(defs)
	for _, w := range warnings {
		o.logger.Warn("content warning", "dir", dir, "detail", w)
	}
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// scriptOrder puts game.lua first and sorts the rest.
func scriptOrder(files []string) []string {
	out := slices.Clone(files)
	slices.SortFunc(out, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "game.lua":
			return -1
		case b == "game.lua":
			return 1
		}
		return strings.Compare(a, b)
	})
	return out
}

// newVM opens a Lua state with only the base, table, string and math
// libraries, minus anything that reaches the filesystem, bypasses
// metatables or reseeds the random generator.
func newVM() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring", "require",
		"rawset", "rawget", "rawequal", "collectgarbage",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	if m, ok := L.GetGlobal("math").(*lua.LTable); ok {
		m.RawSetString("randomseed", lua.LNil)
	}
	return L
}
