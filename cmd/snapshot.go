package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/renderer"
	"github.com/google/subcommands"
)

type snapshotCmd struct {
	portfolio string
	date      string
	sortBy    string
	desc      bool
	json      bool
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "value a portfolio at a point in time" }
func (*snapshotCmd) Usage() string {
	return `pmv snapshot -p <portfolio> [-d <date>] [-sort <column>] [-desc] [-json]

  Values every position of a portfolio with the latest quote known at -d,
  the end of the day for a date, or now. Columns: ` + strings.Join(valuation.PositionColumns(), ", ") + `.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio ID.")
	f.StringVar(&c.date, "d", "", "Valuation date or time. Defaults to now.")
	f.StringVar(&c.sortBy, "sort", "securityId", "Column to sort the positions by.")
	f.BoolVar(&c.desc, "desc", false, "Sort in descending order.")
	f.BoolVar(&c.json, "json", false, "Print the snapshot as JSON.")
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolio == "" {
		fmt.Fprintln(os.Stderr, "Error: -p is required.")
		return subcommands.ExitUsageError
	}
	if !slices.ContainsFunc(valuation.PositionColumns(), func(col string) bool { return strings.EqualFold(col, c.sortBy) }) {
		fmt.Fprintf(os.Stderr, "Error: unknown column %q.\n", c.sortBy)
		return subcommands.ExitUsageError
	}
	var asOf time.Time
	if c.date != "" {
		var err error
		if asOf, err = parseTime(c.date, true); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	a, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	s, err := a.service.GetPortfolioSnapshot(ctx, c.portfolio, asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing snapshot: %v\n", err)
		return subcommands.ExitFailure
	}

	dir := valuation.Ascending
	if c.desc {
		dir = valuation.Descending
	}
	if c.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.RenderSnapshot(s, renderer.SnapshotOptions{SortBy: c.sortBy, Direction: dir}))
	return subcommands.ExitSuccess
}
