package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type updateCmd struct {
	id string
	eventFlags
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "change the fields of a transaction" }
func (*updateCmd) Usage() string {
	return `pmv update -id <transaction> [-type <type>] [-d <time>] [-s <security>] [-q <quantity>] [-price <amount>] [-fees <amount>] [-taxes <amount>] [-c <currency>]

  Changes only the fields given on the command line. Amounts are in the
  currency of the transaction price unless -c is set. The change is rejected
  if any transaction of the portfolio would then sell more shares than held.
`
}

func (c *updateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "ID of the transaction to update.")
	c.eventFlags.SetFlags(f)
}

func (c *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}
	paths := mask(f)
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: nothing to update.")
		return subcommands.ExitUsageError
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	old, err := a.store.GetEvent(ctx, c.id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting transaction: %v\n", err)
		return subcommands.ExitFailure
	}
	symbol := old.Price.Symbol
	if symbol == "" {
		p, err := a.service.GetPortfolio(ctx, old.PortfolioID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting portfolio: %v\n", err)
			return subcommands.ExitFailure
		}
		symbol = p.Currency
	}
	e, err := c.event(old.PortfolioID, symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing transaction: %v\n", err)
		return subcommands.ExitUsageError
	}
	e, err = a.service.UpdatePortfolioTransaction(ctx, c.id, e, paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error updating transaction: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "Updated %s: %s\n", e.ID, e.Type)
	return subcommands.ExitSuccess
}
