package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nathoo/fablecore/cli"
	"github.com/nathoo/fablecore/config"
	"github.com/nathoo/fablecore/engine"
	"github.com/nathoo/fablecore/engine/metrics"
	"github.com/nathoo/fablecore/loader"
	"github.com/nathoo/fablecore/tui"
)

// playOptions holds the flags of the root command.
type playOptions struct {
	plain  bool
	script string
	trace  bool
}

func newRootCommand() *cobra.Command {
	opts := &playOptions{}

	cmd := &cobra.Command{
		Use:   "fablecore <game-dir>",
		Short: "Play a FableCore game",
		Long: `Load the Lua and YAML files in a game directory and play it.

The full-screen interface is used when stdout is a terminal. Settings come
from FABLECORE_* environment variables.

Example:
  fablecore ./games/tower
  fablecore --script walkthrough.txt ./games/tower`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.plain, "plain", false, "use the line-oriented interface")
	cmd.Flags().StringVar(&opts.script, "script", "", "read commands from a file and echo them")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "show effects and events after each turn")

	cmd.AddCommand(newValidateCommand())
	return cmd
}

// session is a loaded game ready to play.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	engine  *engine.Engine
	metrics prometheus.Gatherer
}

func openGame(dir string) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg.LoggerOptions("fablecore"))

	defs, err := loader.Load(dir, loader.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("loading game: %w", err)
	}

	s := &session{cfg: cfg, logger: logger}
	opts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		opts = append(opts, engine.WithMetrics(metrics.New(reg)))
		s.metrics = reg
	}
	if s.engine, err = engine.New(defs, opts...); err != nil {
		return nil, fmt.Errorf("starting game: %w", err)
	}
	return s, nil
}

func play(cmd *cobra.Command, opts *playOptions, dir string) error {
	s, err := openGame(dir)
	if err != nil {
		return err
	}
	cmds := cli.NewCommands(s.engine, s.cfg.SaveDir, s.logger)
	cmds.Metrics = s.metrics
	cmds.Trace = opts.trace

	if opts.script == "" && !opts.plain && isTerminal(cmd.OutOrStdout()) {
		return tui.Run(cmds)
	}

	c := &cli.CLI{Commands: cmds, In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
	if opts.script != "" {
		f, err := os.Open(opts.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c.In = f
		c.EchoInput = true
	}

	g := s.engine.Defs.Game
	fmt.Fprintf(c.Out, "%s v%s by %s\n\n", g.Title, g.Version, g.Author)
	c.Run()
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
