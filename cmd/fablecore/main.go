// Command fablecore plays interactive fiction written in the Lua DSL.
package main

import "github.com/nathoo/fablecore/config"

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		config.Exitf("fablecore: %v", err)
	}
}
