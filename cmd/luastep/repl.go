package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/wudi/luastep/vm"
)

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "interactive shell: <function> [args...] per line, against the builtin registry",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		log := loadLogger(cmd)
		tariffs, err := loadTariffs(cmd)
		if err != nil {
			return err
		}

		rl, err := readline.New("luastep> ")
		if err != nil {
			return err
		}
		defer rl.Close()

		for {
			line, err := rl.Readline()
			if err == io.EOF || err == readline.ErrInterrupt {
				return nil
			}
			if err != nil {
				return err
			}
			tokens := strings.Fields(line)
			if len(tokens) == 0 {
				continue
			}
			fn, ok := builtins[tokens[0]]
			if !ok {
				fmt.Printf("no such builtin function: %s\n", tokens[0])
				continue
			}
			vals := make([]vm.Value, 0, len(tokens)-1)
			for _, tok := range tokens[1:] {
				vals = append(vals, parseArg(tok))
			}
			results, runErr := driveToResult(log, tariffs, fn, vals)
			if runErr != nil {
				fmt.Printf("error: %v\n", runErr)
				continue
			}
			for i, v := range results {
				if i > 0 {
					fmt.Print("\t")
				}
				fmt.Print(v.String())
			}
			fmt.Println()
		}
	},
}
