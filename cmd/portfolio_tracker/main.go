package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"portfolio_tracker/internal/infrastructure/configloader"
)

var configPath = flag.String("config", configloader.PathFromEnv(), "Path to the configuration file (YAML or TOML)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&serveCmd{}, "")
	commander.Register(&snapshotCmd{}, "portfolio")
	commander.Register(&walletsCmd{}, "portfolio")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
