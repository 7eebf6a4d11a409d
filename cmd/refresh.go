package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/valuation/quote"
	"github.com/google/subcommands"
)

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "fetch the latest quotes of the listed securities" }
func (*refreshCmd) Usage() string {
	return `pmv refresh

  Fetches the latest quote of every listing of securities whose provider is
  "json". The provider reads $VALUATION_QUOTE_URL, where {ticker}, {isin} and
  {currency} are replaced, and extracts the price at $VALUATION_QUOTE_PATH.
`
}

func (*refreshCmd) SetFlags(f *flag.FlagSet) {}

func (*refreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "Error: no arguments expected.")
		return subcommands.ExitUsageError
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	u := quote.NewUpdater(a.store, a.store, a.log).WithWorkers(a.cfg.QuoteWorkers)
	if a.cfg.QuoteURL != "" {
		u.Register("json", quote.NewJSONProvider(a.cfg.QuoteURL, a.cfg.QuotePath))
	}
	res, err := u.Update(ctx)
	fmt.Fprintf(stdout, "Updated %d listings, skipped %d\n", res.Updated, res.Skipped)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error updating quotes: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
