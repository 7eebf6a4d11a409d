package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/renderer"
	"github.com/google/subcommands"
)

type txCmd struct {
	portfolio string
	start     string
	date      string
	sortBy    string
	desc      bool
	head      int
	tail      int
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list the transactions of a portfolio" }
func (*txCmd) Usage() string {
	return `pmv tx -p <portfolio> [-s <start_date>] [-d <end_date>] [-sort <column>] [-desc] [-head <n>] [-tail <n>]

  Lists the transactions of a portfolio, by time unless -sort is given.
  Columns: ` + strings.Join(valuation.EventColumns(), ", ") + `.
`
}

func (p *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.portfolio, "p", "", "Portfolio ID.")
	f.StringVar(&p.start, "s", "", "Only list transactions from this date.")
	f.StringVar(&p.date, "d", "", "Only list transactions until this date, included.")
	f.StringVar(&p.sortBy, "sort", "time", "Column to sort by.")
	f.BoolVar(&p.desc, "desc", false, "Sort in descending order.")
	f.IntVar(&p.head, "head", 0, "Show only the first N transactions.")
	f.IntVar(&p.tail, "tail", 0, "Show only the last N transactions.")
}

func (p *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.portfolio == "" {
		fmt.Fprintln(os.Stderr, "Error: -p is required.")
		return subcommands.ExitUsageError
	}
	if p.head > 0 && p.tail > 0 {
		fmt.Fprintln(os.Stderr, "Error: -head and -tail flags cannot be used together.")
		return subcommands.ExitUsageError
	}
	if !slices.ContainsFunc(valuation.EventColumns(), func(c string) bool { return strings.EqualFold(c, p.sortBy) }) {
		fmt.Fprintf(os.Stderr, "Error: unknown column %q.\n", p.sortBy)
		return subcommands.ExitUsageError
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	events, err := a.service.ListPortfolioTransactions(ctx, p.portfolio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing transactions: %v\n", err)
		return subcommands.ExitFailure
	}

	if p.start != "" {
		start, err := parseTime(p.start, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing start date: %v\n", err)
			return subcommands.ExitUsageError
		}
		events = slices.DeleteFunc(events, func(e valuation.PortfolioEvent) bool { return e.Time.Before(start) })
	}
	if p.date != "" {
		end, err := parseTime(p.date, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing end date: %v\n", err)
			return subcommands.ExitUsageError
		}
		events = slices.DeleteFunc(events, func(e valuation.PortfolioEvent) bool { return e.Time.After(end) })
	}

	dir := valuation.Ascending
	if p.desc {
		dir = valuation.Descending
	}
	valuation.SortEvents(events, p.sortBy, dir)

	if p.head > 0 && len(events) > p.head {
		events = events[:p.head]
	}
	if p.tail > 0 && len(events) > p.tail {
		events = events[len(events)-p.tail:]
	}

	securities, err := a.securities(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing securities: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderTransactions(events, securities))
	return subcommands.ExitSuccess
}
