// Package cmd implements the pmv command line application: portfolios,
// transactions and point in time valuations.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/valuation"
	"github.com/etnz/valuation/config"
	"github.com/etnz/valuation/logger"
	"github.com/etnz/valuation/storage"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	storeSpec = flag.String("store", "", "Storage backend: memory, file:<dir> or sqlite:<path>. Defaults to $VALUATION_STORE.")
	Verbose   = flag.Bool("v", false, "Log debug messages.")
	plain     = flag.Bool("plain", false, "Print reports as raw markdown.")
)

// stdout receives the reports.
var stdout io.Writer = os.Stdout

// Commands lists the subcommands of pmv.
var Commands = []subcommands.Command{
	&portfolioCmd{},
	&securityCmd{},
	&quoteCmd{},
	&rateCmd{},
	&addCmd{},
	&updateCmd{},
	&importCmd{},
	&exportCmd{},
	&txCmd{},
	&snapshotCmd{},
	&refreshCmd{},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, cmd := range Commands {
		c.Register(cmd, "")
	}
}

// app is what commands work with: the storage and the engine on top of it.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   storage.Backend
	service *valuation.Service
}

// open loads the configuration, then opens the storage.
func open() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if *storeSpec != "" {
		cfg.Store = *storeSpec
	}
	if *Verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	store, err := storage.Open(cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("cannot open storage %q: %w", cfg.Store, err)
	}
	stores := valuation.StoresOf(store)
	stores.Rates = store
	svc := valuation.NewService(stores, valuation.Options{DefaultCurrency: cfg.Currency, QuoteWorkers: cfg.QuoteWorkers}, log)
	return &app{cfg: cfg, log: log, store: store, service: svc}, nil
}

func (a *app) Close() error { return a.store.Close() }

// securities returns the known securities by ID.
func (a *app) securities(ctx context.Context) (map[string]valuation.Security, error) {
	list, err := a.store.ListSecurities(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]valuation.Security, len(list))
	for _, s := range list {
		m[s.ID] = s
	}
	return m, nil
}

// printMarkdown renders md for the terminal, unless -plain is set.
func printMarkdown(md string) {
	if !*plain {
		if out, err := glamour.Render(md, "dark"); err == nil {
			md = out
		}
	}
	fmt.Fprint(stdout, md)
}

// parseTime accepts RFC 3339 times, "2006-01-02T15:04" and dates, in UTC.
// A date alone is the start of the day, or its last instant with endOfDay.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC 3339", s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
