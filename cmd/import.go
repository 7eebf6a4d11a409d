package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
)

type importCmd struct {
	portfolio string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import transactions from a broker CSV export" }
func (*importCmd) Usage() string {
	return `pmv import -p <portfolio> <file.csv>

  Imports the transactions of a semicolon separated CSV file, as exported by
  the broker, into a portfolio. Reads the standard input when the file is "-".
  Transactions already imported are skipped, so importing twice is harmless.
  Securities found in the file are registered.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio ID.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolio == "" || f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: -p and exactly one file are required.")
		return subcommands.ExitUsageError
	}

	var in io.Reader = os.Stdin
	if name := f.Arg(0); name != "-" {
		file, err := os.Open(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening file: %v\n", err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		in = file
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := a.service.ImportTransactions(ctx, c.portfolio, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing transactions: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "Imported %d transactions (%d already known), %d securities\n", res.Added, res.Skipped, res.Securities)
	return subcommands.ExitSuccess
}
