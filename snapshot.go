package valuation

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/etnz/valuation/currency"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultCurrency is the reporting currency of portfolios without one, when
// nothing else can be inferred.
const DefaultCurrency = "EUR"

// Snapshot is the valuation of a portfolio at a point in time.
//
// All figures are in Currency. Positions only lists open positions, and the
// totals are computed over them. TotalPortfolioValue is always
// TotalMarketValue + Cash.
type Snapshot struct {
	PortfolioID          string                       `json:"portfolioId"`
	Time                 time.Time                    `json:"time"`
	Currency             string                       `json:"currency"`
	Positions            map[string]Position          `json:"positions"`
	FirstTransactionTime time.Time                    `json:"firstTransactionTime,omitzero"`
	TotalPurchaseValue   currency.Currency            `json:"totalPurchaseValue"`
	TotalMarketValue     currency.Currency            `json:"totalMarketValue"`
	TotalProfitOrLoss    currency.Currency            `json:"totalProfitOrLoss"`
	TotalGains           float64                      `json:"totalGains"`
	Cash                 currency.Currency            `json:"cash"`
	CashBalances         map[string]currency.Currency `json:"cashBalances"`
	TotalPortfolioValue  currency.Currency            `json:"totalPortfolioValue"`
}

// PositionList returns the positions ordered by security id.
func (s *Snapshot) PositionList() []Position {
	ids := slices.Sorted(maps.Keys(s.Positions))
	ps := make([]Position, len(ids))
	for i, id := range ids {
		ps[i] = s.Positions[id]
	}
	return ps
}

// Builder computes snapshots from a ledger and quotes.
//
// A Builder holds no mutable state: concurrent Build calls are safe as long
// as the collaborators are.
type Builder struct {
	portfolios PortfolioRegistry
	events     EventStore
	quotes     QuoteStore
	securities SecurityRegistry // optional
	rates      RateSource       // optional

	defaultCurrency string
	workers         int
	now             func() time.Time
	log             zerolog.Logger
}

// NewBuilder returns a Builder reading from the given collaborators.
func NewBuilder(portfolios PortfolioRegistry, events EventStore, quotes QuoteStore, log zerolog.Logger) *Builder {
	return &Builder{
		portfolios:      portfolios,
		events:          events,
		quotes:          quotes,
		defaultCurrency: DefaultCurrency,
		workers:         8,
		now:             time.Now,
		log:             log.With().Str("component", "snapshot").Logger(),
	}
}

// WithSecurities sets the registry used to fill position display names.
func (b *Builder) WithSecurities(r SecurityRegistry) *Builder { b.securities = r; return b }

// WithRates sets the source of exchange rates for multi-currency portfolios.
func (b *Builder) WithRates(r RateSource) *Builder { b.rates = r; return b }

// WithDefaultCurrency sets the reporting currency used when a portfolio has
// none and no event tells one.
func (b *Builder) WithDefaultCurrency(symbol string) *Builder {
	if symbol != "" {
		b.defaultCurrency = symbol
	}
	return b
}

// WithWorkers bounds the number of concurrent quote lookups.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.workers = n
	}
	return b
}

// WithClock sets the clock used when no time is given.
func (b *Builder) WithClock(now func() time.Time) *Builder { b.now = now; return b }

// Build returns the snapshot of portfolioID as of asOf. A zero asOf means now.
//
// It fails with ErrNotFound for an unknown portfolio and with ErrCancelled
// when ctx is done before completion.
func (b *Builder) Build(ctx context.Context, portfolioID string, asOf time.Time) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(ctx, err)
	}
	if asOf.IsZero() {
		asOf = b.now()
	}
	p, err := b.portfolios.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, cancelled(ctx, fmt.Errorf("portfolio %q: %w", portfolioID, err))
	}
	records, err := b.events.ListEvents(ctx, portfolioID, asOf)
	if err != nil {
		return nil, cancelled(ctx, fmt.Errorf("events of %q: %w", portfolioID, err))
	}
	ledger, err := NewLedger(records...)
	if err != nil {
		return nil, fmt.Errorf("ledger of %q: %w", portfolioID, err)
	}
	s, err := b.build(ctx, p, ledger.Until(asOf), asOf)
	if err != nil {
		return nil, cancelled(ctx, err)
	}
	b.log.Debug().Str("portfolio", portfolioID).Time("as_of", asOf).
		Int("events", ledger.Len()).Int("positions", len(s.Positions)).
		Msg("snapshot built")
	return s, nil
}

func (b *Builder) build(ctx context.Context, p Portfolio, ledger *Ledger, asOf time.Time) (*Snapshot, error) {
	replay, err := ledger.Replay()
	if err != nil {
		return nil, err
	}
	symbol := b.reportingCurrency(p, ledger)

	var open []*Holding
	for _, id := range slices.Sorted(maps.Keys(replay.Holdings)) {
		if h := replay.Holdings[id]; h.Open() {
			open = append(open, h)
		}
	}

	quotes := make([]*Quote, len(open))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, h := range open {
		g.Go(func() error {
			q, err := b.quote(gctx, h.Security, asOf)
			if err != nil {
				return err
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conv := &converter{ctx: ctx, rates: b.rates, to: symbol, asOf: asOf, cache: make(map[string]float64)}
	s := &Snapshot{
		PortfolioID:          p.ID,
		Time:                 asOf,
		Currency:             symbol,
		Positions:            make(map[string]Position, len(open)),
		FirstTransactionTime: ledger.First(),
		TotalPurchaseValue:   currency.Zero(symbol),
		TotalMarketValue:     currency.Zero(symbol),
		Cash:                 currency.Zero(symbol),
		CashBalances:         replay.Cash.Balances(),
	}
	for i, h := range open {
		pos, err := b.position(conv, h, quotes[i])
		if err != nil {
			return nil, err
		}
		pos.DisplayName = b.displayName(ctx, h.Security)
		s.Positions[h.Security] = pos
		if s.TotalPurchaseValue, err = currency.Add(s.TotalPurchaseValue, pos.PurchaseValue); err != nil {
			return nil, err
		}
		if s.TotalMarketValue, err = currency.Add(s.TotalMarketValue, pos.MarketValue); err != nil {
			return nil, err
		}
	}
	for _, sym := range replay.Cash.Symbols() {
		c, err := conv.convert(replay.Cash.Balance(sym))
		if err != nil {
			return nil, fmt.Errorf("cash in %s: %w", sym, err)
		}
		if s.Cash, err = currency.Add(s.Cash, c); err != nil {
			return nil, err
		}
	}
	if s.TotalProfitOrLoss, err = currency.Sub(s.TotalMarketValue, s.TotalPurchaseValue); err != nil {
		return nil, err
	}
	s.TotalGains = ratio(s.TotalProfitOrLoss, s.TotalPurchaseValue)
	if s.TotalPortfolioValue, err = currency.Add(s.TotalMarketValue, s.Cash); err != nil {
		return nil, err
	}
	return s, nil
}

// position values h at q and expresses it in the reporting currency.
func (b *Builder) position(conv *converter, h *Holding, q *Quote) (Position, error) {
	if q != nil && h.Symbol() != "" && q.Price.Symbol != h.Symbol() {
		// Quoted in another currency than it was bought in.
		price, err := conv.between(q.Price, h.Symbol())
		if err != nil {
			return Position{}, fmt.Errorf("quote of %s: %w", h.Security, err)
		}
		converted := *q
		converted.Price = price
		q = &converted
	}
	pos, err := h.Position(q)
	if err != nil {
		return Position{}, err
	}
	fields := []*currency.Currency{&pos.PurchaseValue, &pos.PurchasePrice, &pos.MarketValue, &pos.MarketPrice, &pos.TotalFees, &pos.ProfitOrLoss}
	switch pos.PurchaseValue.Symbol {
	case conv.to:
		return pos, nil
	case "":
		// Delivered shares without any quote.
		for _, c := range fields {
			*c = withSymbol(*c, conv.to)
		}
		return pos, nil
	}
	for _, c := range fields[:5] {
		if *c, err = conv.convert(*c); err != nil {
			return Position{}, fmt.Errorf("position %s: %w", h.Security, err)
		}
	}
	if err := pos.settle(); err != nil {
		return Position{}, fmt.Errorf("position %s: %w", h.Security, err)
	}
	return pos, nil
}

// quote returns the most recent quote not after asOf, falling back to the
// latest known one. It returns nil when the security has no quote.
func (b *Builder) quote(ctx context.Context, security string, asOf time.Time) (*Quote, error) {
	q, err := b.quotes.GetQuote(ctx, security, asOf)
	if errors.Is(err, ErrNotFound) {
		q, err = b.quotes.LatestQuote(ctx, security)
	}
	switch {
	case errors.Is(err, ErrNotFound):
		b.log.Debug().Str("security", security).Time("as_of", asOf).Msg("no quote")
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("quote of %s: %w", security, err)
	}
	return &q, nil
}

func (b *Builder) displayName(ctx context.Context, security string) string {
	if b.securities == nil {
		return ""
	}
	s, err := b.securities.GetSecurity(ctx, security)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.log.Warn().Err(err).Str("security", security).Msg("cannot read security")
		}
		return ""
	}
	return s.DisplayName
}

// reportingCurrency is the portfolio currency, else the currency of its first
// priced event, else the default one.
func (b *Builder) reportingCurrency(p Portfolio, ledger *Ledger) string {
	if p.Currency != "" {
		return p.Currency
	}
	for e := range ledger.All() {
		if sym := e.Record().Price.Symbol; sym != "" {
			return sym
		}
	}
	return b.defaultCurrency
}

// converter converts amounts into one currency, caching rates for one build.
type converter struct {
	ctx   context.Context
	rates RateSource
	to    string
	asOf  time.Time
	cache map[string]float64
}

func (c *converter) convert(v currency.Currency) (currency.Currency, error) {
	return c.between(v, c.to)
}

func (c *converter) between(v currency.Currency, to string) (currency.Currency, error) {
	if v.Symbol == to {
		return v, nil
	}
	if v.Symbol == "" && v.Value == 0 {
		return currency.Zero(to), nil
	}
	if c.rates == nil {
		return currency.Currency{}, fmt.Errorf("%w: no exchange rate from %s to %s", currency.ErrCurrencyMismatch, v.Symbol, to)
	}
	key := v.Symbol + to
	rate, ok := c.cache[key]
	if !ok {
		var err error
		rate, err = c.rates.Rate(c.ctx, v.Symbol, to, c.asOf)
		if errors.Is(err, ErrNotFound) {
			return currency.Currency{}, fmt.Errorf("%w: no exchange rate from %s to %s: %w", currency.ErrCurrencyMismatch, v.Symbol, to, err)
		}
		if err != nil {
			return currency.Currency{}, fmt.Errorf("rate %s: %w", key, err)
		}
		c.cache[key] = rate
	}
	r, err := currency.Convert(v, rate, to)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("rate %s: %w", key, err)
	}
	return r, nil
}
