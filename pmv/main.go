// Command pmv values portfolios of securities and cash.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/etnz/valuation/cmd"
	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, "pmv")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	// Answers shell completion requests (COMP_LINE) and exits.
	cmd.Completion().Complete("pmv")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
