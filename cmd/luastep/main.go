package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wudi/luastep/config"
)

func main() {
	app := &cli.Command{
		Name:  "luastep",
		Usage: "drive the luastep executor core against a native function registry",
		Commands: []*cli.Command{
			runCommand,
			replCommand,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log every executor step at debug level",
			},
			&cli.StringFlag{
				Name:  "tariffs",
				Usage: "path to a YAML fuel tariffs file",
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadLogger(cmd *cli.Command) zerolog.Logger {
	level := zerolog.InfoLevel
	if cmd.Bool("debug") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func loadTariffs(cmd *cli.Command) (config.Tariffs, error) {
	if path := cmd.String("tariffs"); path != "" {
		return config.Load(path)
	}
	return config.DefaultTariffs(), nil
}
