package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/currency"
	"github.com/google/subcommands"
)

type quoteCmd struct {
	security string
	date     string
	price    string
	currency string
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "record or show the quote of a security" }
func (*quoteCmd) Usage() string {
	return `pmv quote -s <security> [-d <time>] [-p <price> -c <currency>]

  Records the price of one share of a security, or shows its quote as of -d
  when no price is given.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.security, "s", "", "Security ID.")
	f.StringVar(&c.date, "d", "", "Time of the quote. Defaults to now.")
	f.StringVar(&c.price, "p", "", "Price of one share, in major units (e.g. 12.34).")
	f.StringVar(&c.currency, "c", "EUR", "Currency of the price.")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.security == "" {
		fmt.Fprintln(os.Stderr, "Error: -s is required.")
		return subcommands.ExitUsageError
	}
	on := time.Now().UTC()
	if c.date != "" {
		var err error
		if on, err = parseTime(c.date, c.price == ""); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing time: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if c.price == "" {
		q, err := a.store.GetQuote(ctx, c.security, on)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting quote: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "%s %s %s\n", q.SecurityID, q.Time.Format(time.RFC3339), q.Price)
		return subcommands.ExitSuccess
	}

	price, err := currency.Parse(c.price, c.currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing price: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := a.store.PutQuote(ctx, valuation.Quote{SecurityID: c.security, Time: on, Price: price}); err != nil {
		fmt.Fprintf(os.Stderr, "Error recording quote: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "Recorded %s for %s\n", price, c.security)
	return subcommands.ExitSuccess
}

type rateCmd struct {
	from string
	to   string
	date string
	rate float64
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "record or show an exchange rate" }
func (*rateCmd) Usage() string {
	return `pmv rate -from <currency> -to <currency> [-d <time>] [-r <rate>]

  Records how many units of -to one unit of -from is worth, or shows that rate
  as of -d when no rate is given.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Currency converted from.")
	f.StringVar(&c.to, "to", "", "Currency converted to.")
	f.StringVar(&c.date, "d", "", "Time of the rate. Defaults to now.")
	f.Float64Var(&c.rate, "r", 0, "Units of -to for one unit of -from.")
}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" || c.to == "" {
		fmt.Fprintln(os.Stderr, "Error: -from and -to are required.")
		return subcommands.ExitUsageError
	}
	from, to := strings.ToUpper(c.from), strings.ToUpper(c.to)
	on := time.Now().UTC()
	if c.date != "" {
		var err error
		if on, err = parseTime(c.date, c.rate == 0); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing time: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if c.rate == 0 {
		r, err := a.store.Rate(ctx, from, to, on)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting rate: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "1 %s = %s %s\n", from, strconv.FormatFloat(r, 'f', -1, 64), to)
		return subcommands.ExitSuccess
	}
	if err := a.store.PutRate(ctx, from, to, on, c.rate); err != nil {
		fmt.Fprintf(os.Stderr, "Error recording rate: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "Recorded 1 %s = %s %s\n", from, strconv.FormatFloat(c.rate, 'f', -1, 64), to)
	return subcommands.ExitSuccess
}
