package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/valuation"
	"github.com/google/subcommands"
)

type portfolioCmd struct {
	create   string
	name     string
	bank     string
	currency string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "list or create portfolios" }
func (*portfolioCmd) Usage() string {
	return `pmv portfolio [-create <id> [-n <name>] [-bank <account>] [-c <currency>]]

  Lists the portfolios, or creates one with -create. The currency defaults to
  $VALUATION_CURRENCY.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.create, "create", "", "ID of the portfolio to create.")
	f.StringVar(&c.name, "n", "", "Display name of the new portfolio.")
	f.StringVar(&c.bank, "bank", "", "Bank account of the new portfolio.")
	f.StringVar(&c.currency, "c", "", "Reporting currency of the new portfolio.")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if c.create != "" {
		p, err := a.service.CreatePortfolio(ctx, valuation.Portfolio{ID: c.create, DisplayName: c.name, BankAccountID: c.bank, Currency: c.currency})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating portfolio: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "Created portfolio %s in %s\n", p.ID, p.Currency)
		return subcommands.ExitSuccess
	}

	portfolios, err := a.service.ListPortfolios(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing portfolios: %v\n", err)
		return subcommands.ExitFailure
	}
	var b strings.Builder
	fmt.Fprintln(&b, "| ID | Name | Currency | Bank Account |")
	fmt.Fprintln(&b, "|:---|:---|:---|:---|")
	for _, p := range portfolios {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", p.ID, p.DisplayName, p.Currency, p.BankAccountID)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
