package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/currency"
	"github.com/google/subcommands"
)

// eventFlags are the fields of a transaction, shared by add and update.
type eventFlags struct {
	typ      string
	date     string
	security string
	quantity float64
	price    string
	fees     string
	taxes    string
	currency string
}

func (e *eventFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.typ, "type", "", "Transaction type: "+strings.Join(eventTypeNames(), ", ")+".")
	f.StringVar(&e.date, "d", "", "Time of the transaction. Defaults to now.")
	f.StringVar(&e.security, "s", "", "Security ID of trades, deliveries and income.")
	f.Float64Var(&e.quantity, "q", 0, "Quantity of shares.")
	f.StringVar(&e.price, "price", "", "Price of one share, or the amount of cash events, in major units.")
	f.StringVar(&e.fees, "fees", "", "Fees, in major units.")
	f.StringVar(&e.taxes, "taxes", "", "Taxes, in major units.")
	f.StringVar(&e.currency, "c", "", "Currency of the amounts. Defaults to the portfolio currency.")
}

// maskFields maps the flags of eventFlags to update mask paths.
var maskFields = map[string]string{
	"type":  "type",
	"d":     "time",
	"s":     "security_id",
	"q":     "quantity",
	"price": "price",
	"fees":  "fees",
	"taxes": "taxes",
}

// mask lists the fields set on the command line, in flag order.
func mask(f *flag.FlagSet) []string {
	var paths []string
	f.Visit(func(fl *flag.Flag) {
		if path, ok := maskFields[fl.Name]; ok {
			paths = append(paths, path)
		}
	})
	return paths
}

// event builds the transaction described by the flags. Amounts are in
// symbol when -c is not set.
func (e *eventFlags) event(portfolioID, symbol string) (valuation.PortfolioEvent, error) {
	if e.currency != "" {
		symbol = strings.ToUpper(e.currency)
	}
	r := valuation.PortfolioEvent{PortfolioID: portfolioID, SecurityID: e.security, Quantity: e.quantity}
	if e.typ != "" {
		t, err := valuation.ParseEventType(e.typ)
		if err != nil {
			return r, err
		}
		r.Type = t
	}
	if e.date != "" {
		t, err := parseTime(e.date, false)
		if err != nil {
			return r, err
		}
		r.Time = t
	}
	for _, m := range []struct {
		name string
		s    string
		dst  *currency.Currency
	}{
		{"price", e.price, &r.Price},
		{"fees", e.fees, &r.Fees},
		{"taxes", e.taxes, &r.Taxes},
	} {
		if m.s == "" {
			continue
		}
		c, err := currency.Parse(m.s, symbol)
		if err != nil {
			return r, fmt.Errorf("-%s: %w", m.name, err)
		}
		*m.dst = c
	}
	return r, nil
}

func eventTypeNames() []string {
	var names []string
	for _, t := range valuation.EventTypes() {
		names = append(names, t.String())
	}
	return names
}

type addCmd struct {
	portfolio string
	eventFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a transaction" }
func (*addCmd) Usage() string {
	return `pmv add -p <portfolio> -type <type> [-d <time>] [-s <security>] [-q <quantity>] [-price <amount>] [-fees <amount>] [-taxes <amount>] [-c <currency>]

  Records a transaction in a portfolio and prints its ID. The transaction is
  rejected if it sells or delivers more shares than held at its time.

  Example:
    pmv add -p main -type buy -d 2025-01-10 -s US0378331005 -q 10 -price 101 -fees 1
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio ID.")
	c.eventFlags.SetFlags(f)
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolio == "" || c.typ == "" {
		fmt.Fprintln(os.Stderr, "Error: -p and -type are required.")
		return subcommands.ExitUsageError
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	p, err := a.service.GetPortfolio(ctx, c.portfolio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	e, err := c.event(p.ID, p.Currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing transaction: %v\n", err)
		return subcommands.ExitUsageError
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	e, err = a.service.CreatePortfolioTransaction(ctx, e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recording transaction: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, e.ID)
	return subcommands.ExitSuccess
}
