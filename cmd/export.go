package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/valuation"
	"github.com/google/subcommands"
)

type exportCmd struct {
	portfolio string
	output    string
	jsonl     bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the transactions of a portfolio" }
func (*exportCmd) Usage() string {
	return `pmv export -p <portfolio> [-o <file>] [-jsonl]

  Writes the transactions of a portfolio in the CSV format read by import, or
  as JSON lines with -jsonl.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio ID.")
	f.StringVar(&c.output, "o", "", "Output file. Defaults to the standard output.")
	f.BoolVar(&c.jsonl, "jsonl", false, "Write JSON lines instead of CSV.")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolio == "" {
		fmt.Fprintln(os.Stderr, "Error: -p is required.")
		return subcommands.ExitUsageError
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	events, err := a.service.ListPortfolioTransactions(ctx, c.portfolio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing transactions: %v\n", err)
		return subcommands.ExitFailure
	}

	out := stdout
	if c.output != "" {
		file, err := os.Create(c.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating file: %v\n", err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		out = file
	}

	if c.jsonl {
		err = valuation.EncodeEvents(out, events)
	} else {
		err = exportCSV(ctx, a, out, events)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting transactions: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func exportCSV(ctx context.Context, a *app, w io.Writer, events []valuation.PortfolioEvent) error {
	securities, err := a.securities(ctx)
	if err != nil {
		return err
	}
	return valuation.ExportCSV(w, events, securities)
}
