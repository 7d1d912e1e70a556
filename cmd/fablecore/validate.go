package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nathoo/fablecore/config"
	"github.com/nathoo/fablecore/loader"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <game-dir>",
		Short: "Load a game and report content errors without playing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts := cfg.LoggerOptions("validate")
			opts.Output = cmd.ErrOrStderr()
			logger := config.NewLogger(opts)

			defs, err := loader.Load(args[0], loader.WithLogger(logger))
			if err != nil {
				return err
			}
			rules := len(defs.GlobalRules)
			for _, r := range defs.Rooms {
				rules += len(r.Rules)
			}
			for _, e := range defs.Entities {
				rules += len(e.Rules)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rooms, %d entities, %d rules, %d machines\n",
				defs.Game.Title, len(defs.Rooms), len(defs.Entities), rules, len(defs.Machines))
			return nil
		},
	}
}
