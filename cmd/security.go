package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/valuation"
	"github.com/google/subcommands"
)

type securityCmd struct {
	add      string
	name     string
	ticker   string
	currency string
	provider string
}

func (*securityCmd) Name() string     { return "security" }
func (*securityCmd) Synopsis() string { return "list or register securities" }
func (*securityCmd) Usage() string {
	return `pmv security [-add <id> -n <name> [-s <ticker> -c <currency>] [-provider <name>]]

  Lists the known securities, or registers one with -add. A ticker adds a
  listing to an already registered security.
`
}

func (c *securityCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.add, "add", "", "ID (ISIN) of the security to register.")
	f.StringVar(&c.name, "n", "", "Display name of the security.")
	f.StringVar(&c.ticker, "s", "", "Ticker of a listing of the security.")
	f.StringVar(&c.currency, "c", "EUR", "Currency of the listing.")
	f.StringVar(&c.provider, "provider", "", "Quote provider of the security.")
}

func (c *securityCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if c.add != "" {
		sec, err := a.store.GetSecurity(ctx, c.add)
		switch {
		case errors.Is(err, valuation.ErrNotFound):
			sec = valuation.Security{ID: c.add}
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error getting security: %v\n", err)
			return subcommands.ExitFailure
		}
		if c.name != "" {
			sec.DisplayName = c.name
		}
		if c.provider != "" {
			sec.QuoteProvider = c.provider
		}
		if c.ticker != "" {
			if _, ok := sec.Listing(c.ticker); !ok {
				sec.Listings = append(sec.Listings, valuation.ListedSecurity{SecurityID: sec.ID, Ticker: c.ticker, Currency: strings.ToUpper(c.currency)})
			}
		}
		if err := a.store.PutSecurity(ctx, sec); err != nil {
			fmt.Fprintf(os.Stderr, "Error registering security: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "Registered security %s\n", sec.ID)
		return subcommands.ExitSuccess
	}

	securities, err := a.store.ListSecurities(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing securities: %v\n", err)
		return subcommands.ExitFailure
	}
	var b strings.Builder
	fmt.Fprintln(&b, "| ID | Name | Ticker | Currency | Latest Quote |")
	fmt.Fprintln(&b, "|:---|:---|:---|:---|---:|")
	for _, s := range securities {
		if len(s.Listings) == 0 {
			fmt.Fprintf(&b, "| %s | %s | | | |\n", s.ID, s.DisplayName)
		}
		for _, l := range s.Listings {
			latest := ""
			if l.LatestQuote != nil {
				latest = l.LatestQuote.String()
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", s.ID, s.DisplayName, l.Ticker, l.Currency, latest)
		}
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
