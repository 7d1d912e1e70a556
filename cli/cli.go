// Package cli runs a game over plain line-oriented terminal I/O and
// handles the slash meta-commands.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nathoo/fablecore/engine"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	*Commands
	In        io.Reader
	Out       io.Writer
	EchoInput bool // echo each input line after the prompt, for script playback
}

// New creates a CLI on stdin and stdout.
func New(eng *engine.Engine, saveDir string, logger *slog.Logger) *CLI {
	return &CLI{
		Commands: NewCommands(eng, saveDir, logger),
		In:       os.Stdin,
		Out:      os.Stdout,
	}
}

// Run shows the intro, then loops prompt, input, dispatch, output until
// input ends or the player quits. Blank lines and # comments are skipped.
func (c *CLI) Run() {
	for _, line := range c.Engine.Intro() {
		fmt.Fprintln(c.Out, line)
	}

	scanner := bufio.NewScanner(c.In)
	for {
		fmt.Fprint(c.Out, "> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" || strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			fmt.Fprintln(c.Out, input)
		}

		reply := c.Handle(input)
		c.print(reply)
		if reply.Quit {
			return
		}
	}
}

func (c *CLI) print(r Reply) {
	for _, l := range r.Lines {
		if l.Kind == Narrative {
			fmt.Fprintln(c.Out, l.Text)
			continue
		}
		fmt.Fprintf(c.Out, "[%s]\n", l.Text)
	}
}
