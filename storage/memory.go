package storage

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/quote"
)

// Memory keeps every repository in memory. Useful for tests or ephemeral
// runs where persistence is not required. Values are copied in and out.
type Memory struct {
	*quote.Store

	mu         sync.RWMutex
	portfolios map[string]valuation.Portfolio
	events     map[string]valuation.PortfolioEvent
	securities map[string]valuation.Security
}

var _ Backend = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		Store:      quote.NewStore(),
		portfolios: make(map[string]valuation.Portfolio),
		events:     make(map[string]valuation.PortfolioEvent),
		securities: make(map[string]valuation.Security),
	}
}

func (m *Memory) GetPortfolio(_ context.Context, id string) (valuation.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.portfolios[id]
	if !ok {
		return valuation.Portfolio{}, fmt.Errorf("portfolio %q: %w", id, valuation.ErrNotFound)
	}
	return p, nil
}

func (m *Memory) ListPortfolios(context.Context) ([]valuation.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portfolioList(), nil
}

func (m *Memory) portfolioList() []valuation.Portfolio {
	ps := slices.Collect(maps.Values(m.portfolios))
	slices.SortFunc(ps, func(a, b valuation.Portfolio) int { return cmp.Compare(a.ID, b.ID) })
	return ps
}

func (m *Memory) CreatePortfolio(_ context.Context, p valuation.Portfolio) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.portfolios[p.ID]; ok {
		return fmt.Errorf("portfolio %q: %w", p.ID, valuation.ErrAlreadyExists)
	}
	m.portfolios[p.ID] = p
	return nil
}

func (m *Memory) ListEvents(ctx context.Context, portfolioID string, asOf time.Time) ([]valuation.PortfolioEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []valuation.PortfolioEvent
	for _, e := range m.events {
		if e.PortfolioID == portfolioID && (asOf.IsZero() || !e.Time.After(asOf)) {
			out = append(out, e)
		}
	}
	valuation.SortRecords(out)
	return out, nil
}

// eventList returns every event of every portfolio, in ledger order.
func (m *Memory) eventList() []valuation.PortfolioEvent {
	out := slices.Collect(maps.Values(m.events))
	valuation.SortRecords(out)
	return out
}

func (m *Memory) GetEvent(_ context.Context, id string) (valuation.PortfolioEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return valuation.PortfolioEvent{}, fmt.Errorf("transaction %q: %w", id, valuation.ErrNotFound)
	}
	return e, nil
}

func (m *Memory) AddEvents(_ context.Context, events ...valuation.PortfolioEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		if _, ok := m.events[e.ID]; ok || seen[e.ID] {
			return fmt.Errorf("transaction %q: %w", e.ID, valuation.ErrAlreadyExists)
		}
		seen[e.ID] = true
	}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return nil
}

func (m *Memory) ReplaceEvent(_ context.Context, e valuation.PortfolioEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return fmt.Errorf("transaction %q: %w", e.ID, valuation.ErrNotFound)
	}
	m.events[e.ID] = e
	return nil
}

func (m *Memory) GetSecurity(_ context.Context, id string) (valuation.Security, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sec, ok := m.securities[id]
	if !ok {
		return valuation.Security{}, fmt.Errorf("security %q: %w", id, valuation.ErrNotFound)
	}
	return cloneSecurity(sec), nil
}

func (m *Memory) ListSecurities(context.Context) ([]valuation.Security, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.securityList(), nil
}

func (m *Memory) securityList() []valuation.Security {
	out := make([]valuation.Security, 0, len(m.securities))
	for _, id := range slices.Sorted(maps.Keys(m.securities)) {
		out = append(out, cloneSecurity(m.securities[id]))
	}
	return out
}

func (m *Memory) PutSecurity(_ context.Context, sec valuation.Security) error {
	if err := sec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.securities[sec.ID] = cloneSecurity(sec)
	return nil
}

// Close does nothing.
func (m *Memory) Close() error { return nil }

// cloneSecurity copies the listings and their latest quotes.
func cloneSecurity(s valuation.Security) valuation.Security {
	s.Listings = slices.Clone(s.Listings)
	for i := range s.Listings {
		l := &s.Listings[i]
		if l.LatestQuote != nil {
			q := *l.LatestQuote
			l.LatestQuote = &q
		}
		if l.LatestQuoteTime != nil {
			t := *l.LatestQuoteTime
			l.LatestQuoteTime = &t
		}
	}
	return s
}
