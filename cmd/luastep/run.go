package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/wudi/luastep/vm"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "run a registered native function to completion and print its results",
	ArgsUsage: "<function> [args...]",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		args := cmd.Args().Slice()
		if len(args) == 0 {
			return fmt.Errorf("usage: luastep run <function> [args...]")
		}
		fn, ok := builtins[args[0]]
		if !ok {
			return fmt.Errorf("no such builtin function: %s", args[0])
		}

		vals := make([]vm.Value, 0, len(args)-1)
		for _, tok := range args[1:] {
			vals = append(vals, parseArg(tok))
		}

		log := loadLogger(cmd)
		tariffs, err := loadTariffs(cmd)
		if err != nil {
			return err
		}

		results, runErr := driveToResult(log, tariffs, fn, vals)
		if runErr != nil {
			return runErr
		}
		for i, v := range results {
			if i > 0 {
				fmt.Print("\t")
			}
			fmt.Print(v.String())
		}
		fmt.Println()
		return nil
	},
}
