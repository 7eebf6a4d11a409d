package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/quote"
	"github.com/rs/zerolog"
)

// File names within a File directory.
const (
	portfoliosFile = "portfolios.jsonl"
	eventsFile     = "transactions.jsonl"
	securitiesFile = "securities.jsonl"
	quotesFile     = "quotes.jsonl"
	ratesFile      = "rates.jsonl"
)

// File keeps every repository in memory and saves each change to a directory
// of JSONL files, one record per line.
type File struct {
	*Memory

	dir string
	mu  sync.Mutex // serializes saves
	log zerolog.Logger
}

var _ Backend = (*File)(nil)

// OpenFile loads the store in dir, creating the directory if needed.
func OpenFile(dir string, log zerolog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create storage directory: %w", err)
	}
	f := &File{Memory: NewMemory(), dir: dir, log: log}
	if err := f.load(); err != nil {
		return nil, err
	}
	f.log.Debug().Str("dir", dir).Int("transactions", len(f.events)).Msg("storage loaded")
	return f, nil
}

func (f *File) load() error {
	ctx := context.Background()
	m := f.Memory

	portfolios, err := readJSONL[valuation.Portfolio](f.path(portfoliosFile))
	if err != nil {
		return err
	}
	for _, p := range portfolios {
		m.portfolios[p.ID] = p
	}

	r, err := os.Open(f.path(eventsFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("cannot open transactions: %w", err)
	default:
		events, err := valuation.DecodeEvents(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", f.path(eventsFile), err)
		}
		for _, e := range events {
			m.events[e.ID] = e
		}
	}

	securities, err := readJSONL[valuation.Security](f.path(securitiesFile))
	if err != nil {
		return err
	}
	for _, s := range securities {
		m.securities[s.ID] = s
	}

	quotes, err := readJSONL[valuation.Quote](f.path(quotesFile))
	if err != nil {
		return err
	}
	for _, q := range quotes {
		if err := m.Store.PutQuote(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", f.path(quotesFile), err)
		}
	}

	rates, err := readJSONL[quote.Rate](f.path(ratesFile))
	if err != nil {
		return err
	}
	for _, r := range rates {
		if err := m.Store.PutRate(ctx, r.From, r.To, r.Time, r.Value); err != nil {
			return fmt.Errorf("%s: %w", f.path(ratesFile), err)
		}
	}
	return nil
}

func (f *File) path(name string) string { return filepath.Join(f.dir, name) }

func (f *File) CreatePortfolio(ctx context.Context, p valuation.Portfolio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Memory.CreatePortfolio(ctx, p); err != nil {
		return err
	}
	f.Memory.mu.RLock()
	defer f.Memory.mu.RUnlock()
	return writeJSONL(f.path(portfoliosFile), f.portfolioList())
}

func (f *File) AddEvents(ctx context.Context, events ...valuation.PortfolioEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Memory.AddEvents(ctx, events...); err != nil {
		return err
	}
	return f.saveEvents()
}

func (f *File) ReplaceEvent(ctx context.Context, e valuation.PortfolioEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Memory.ReplaceEvent(ctx, e); err != nil {
		return err
	}
	return f.saveEvents()
}

func (f *File) saveEvents() error {
	f.Memory.mu.RLock()
	events := f.eventList()
	f.Memory.mu.RUnlock()
	return writeFile(f.path(eventsFile), func(w io.Writer) error {
		return valuation.EncodeEvents(w, events)
	})
}

func (f *File) PutSecurity(ctx context.Context, s valuation.Security) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Memory.PutSecurity(ctx, s); err != nil {
		return err
	}
	f.Memory.mu.RLock()
	defer f.Memory.mu.RUnlock()
	return writeJSONL(f.path(securitiesFile), f.securityList())
}

func (f *File) PutQuote(ctx context.Context, q valuation.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Memory.PutQuote(ctx, q); err != nil {
		return err
	}
	return writeJSONL(f.path(quotesFile), f.Quotes())
}

func (f *File) PutRate(ctx context.Context, from, to string, t time.Time, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Memory.PutRate(ctx, from, to, t, rate); err != nil {
		return err
	}
	return writeJSONL(f.path(ratesFile), f.AllRates())
}

// readJSONL reads one T per line. A missing file is empty.
func readJSONL[T any](path string) ([]T, error) {
	r, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer r.Close()

	var out []T
	dec := json.NewDecoder(r)
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("cannot decode %s: %w", path, err)
		}
		out = append(out, v)
	}
}

// writeJSONL replaces path with one line per item.
func writeJSONL[T any](path string, items []T) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, v := range items {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeFile writes a temporary file next to path and renames it over path,
// so that readers never see a partial file.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("cannot save %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot save %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cannot save %s: %w", path, err)
	}
	return nil
}
