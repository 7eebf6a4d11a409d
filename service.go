package valuation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stores groups the collaborators of a Service. Securities and Rates are
// optional.
type Stores struct {
	Portfolios PortfolioRegistry
	Events     EventRepository
	Quotes     QuoteStore
	Securities SecurityRegistry
	Rates      RateSource
}

// StoresOf uses s for every collaborator but the rates.
func StoresOf(s Store) Stores {
	return Stores{Portfolios: s, Events: s, Quotes: s, Securities: s}
}

// Options tunes a Service.
type Options struct {
	// DefaultCurrency is given to portfolios created without one.
	DefaultCurrency string
	// QuoteWorkers bounds the concurrent quote lookups of one snapshot.
	QuoteWorkers int
}

// Service is the engine API: snapshots and transactions of portfolios.
//
// Reads run concurrently. Writes are serialized so that the holdings check of
// a new or updated event and its storage are atomic with respect to other
// writes of the same Service.
type Service struct {
	stores          Stores
	builder         *Builder
	defaultCurrency string
	newID           func() string

	mu  sync.Mutex // serializes writes
	log zerolog.Logger
}

// NewService returns a Service over stores.
func NewService(stores Stores, opts Options, log zerolog.Logger) *Service {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = DefaultCurrency
	}
	b := NewBuilder(stores.Portfolios, stores.Events, stores.Quotes, log).
		WithDefaultCurrency(opts.DefaultCurrency).
		WithWorkers(opts.QuoteWorkers)
	if stores.Securities != nil {
		b.WithSecurities(stores.Securities)
	}
	if stores.Rates != nil {
		b.WithRates(stores.Rates)
	}
	return &Service{
		stores:          stores,
		builder:         b,
		defaultCurrency: opts.DefaultCurrency,
		newID:           uuid.NewString,
		log:             log.With().Str("component", "service").Logger(),
	}
}

// GetPortfolioSnapshot returns the snapshot of portfolioID as of asOf, now
// when asOf is zero.
func (s *Service) GetPortfolioSnapshot(ctx context.Context, portfolioID string, asOf time.Time) (*Snapshot, error) {
	return s.builder.Build(ctx, portfolioID, asOf)
}

// ListPortfolioTransactions returns every event of portfolioID ordered by
// time and id.
func (s *Service) ListPortfolioTransactions(ctx context.Context, portfolioID string) ([]PortfolioEvent, error) {
	if _, err := s.stores.Portfolios.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, cancelled(ctx, fmt.Errorf("portfolio %q: %w", portfolioID, err))
	}
	events, err := s.stores.Events.ListEvents(ctx, portfolioID, time.Time{})
	if err != nil {
		return nil, cancelled(ctx, fmt.Errorf("events of %q: %w", portfolioID, err))
	}
	SortRecords(events)
	return events, nil
}

// CreatePortfolioTransaction validates and stores e. An empty id is replaced
// by a new UUID. It fails with ErrInsufficientHoldings when e would sell
// shares the portfolio does not hold at that time, or make a later event do so.
func (s *Service) CreatePortfolioTransaction(ctx context.Context, e PortfolioEvent) (PortfolioEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.newID()
	}
	ev, err := e.Event()
	if err != nil {
		return PortfolioEvent{}, err
	}
	ledger, err := s.ledger(ctx, e.PortfolioID)
	if err != nil {
		return PortfolioEvent{}, err
	}
	if ledger.Contains(e.ID) {
		return PortfolioEvent{}, fmt.Errorf("transaction %q: %w", e.ID, ErrAlreadyExists)
	}
	ledger.Add(ev)
	if _, err := ledger.Replay(); err != nil {
		return PortfolioEvent{}, err
	}
	e = ev.Record()
	if err := s.stores.Events.AddEvents(ctx, e); err != nil {
		return PortfolioEvent{}, cancelled(ctx, fmt.Errorf("cannot store transaction %q: %w", e.ID, err))
	}
	s.log.Info().Str("portfolio", e.PortfolioID).Str("id", e.ID).Stringer("type", e.Type).Msg("transaction created")
	return e, nil
}

// UpdatePortfolioTransaction replaces the fields of transaction id named by
// updateMask with the ones of e. An empty mask replaces every field but the
// id and the portfolio.
func (s *Service) UpdatePortfolioTransaction(ctx context.Context, id string, e PortfolioEvent, updateMask []string) (PortfolioEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.stores.Events.GetEvent(ctx, id)
	if err != nil {
		return PortfolioEvent{}, cancelled(ctx, fmt.Errorf("transaction %q: %w", id, err))
	}
	updated, err := applyMask(old, e, updateMask)
	if err != nil {
		return PortfolioEvent{}, err
	}
	ev, err := updated.Event()
	if err != nil {
		return PortfolioEvent{}, err
	}
	ledger, err := s.ledger(ctx, old.PortfolioID)
	if err != nil {
		return PortfolioEvent{}, err
	}
	if err := ledger.Replace(ev); err != nil {
		return PortfolioEvent{}, err
	}
	if _, err := ledger.Replay(); err != nil {
		return PortfolioEvent{}, err
	}
	updated = ev.Record()
	if err := s.stores.Events.ReplaceEvent(ctx, updated); err != nil {
		return PortfolioEvent{}, cancelled(ctx, fmt.Errorf("cannot store transaction %q: %w", id, err))
	}
	s.log.Info().Str("portfolio", updated.PortfolioID).Str("id", id).Strs("mask", updateMask).Msg("transaction updated")
	return updated, nil
}

// ImportResult counts the events of an import.
type ImportResult struct {
	Added      int
	Skipped    int // Skipped counts events already in the ledger.
	Securities int // Securities counts the securities registered.
}

// ImportTransactions imports CSV transactions (see ImportCSV) into
// portfolioID. Events already imported are skipped. Either every new event
// is stored or none.
func (s *Service) ImportTransactions(ctx context.Context, portfolioID string, r io.Reader) (ImportResult, error) {
	imp, err := ImportCSV(r, portfolioID)
	if err != nil {
		return ImportResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.ledger(ctx, portfolioID)
	if err != nil {
		return ImportResult{}, err
	}
	var (
		res   ImportResult
		added []PortfolioEvent
	)
	for _, r := range imp.Events {
		if ledger.Contains(r.ID) {
			res.Skipped++
			continue
		}
		ev, err := r.Event()
		if err != nil {
			return ImportResult{}, fmt.Errorf("transaction on %s: %w", r.Time.Format(time.DateOnly), err)
		}
		ledger.Add(ev)
		added = append(added, ev.Record())
	}
	if _, err := ledger.Replay(); err != nil {
		return ImportResult{}, err
	}
	if len(added) > 0 {
		if err := s.stores.Events.AddEvents(ctx, added...); err != nil {
			return ImportResult{}, cancelled(ctx, fmt.Errorf("cannot store transactions: %w", err))
		}
	}
	res.Added = len(added)
	if s.stores.Securities != nil {
		for _, sec := range imp.Securities {
			if err := s.registerSecurity(ctx, sec); err != nil {
				s.log.Warn().Err(err).Str("security", sec.ID).Msg("cannot register imported security")
				continue
			}
			res.Securities++
		}
	}
	s.log.Info().Str("portfolio", portfolioID).Int("added", res.Added).Int("skipped", res.Skipped).Msg("transactions imported")
	return res, nil
}

// registerSecurity stores sec, or adds its new listings to the known security.
func (s *Service) registerSecurity(ctx context.Context, sec Security) error {
	known, err := s.stores.Securities.GetSecurity(ctx, sec.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := sec.Validate(); err != nil {
			return err
		}
		return s.stores.Securities.PutSecurity(ctx, sec)
	case err != nil:
		return err
	}
	changed := false
	for _, l := range sec.Listings {
		if _, ok := known.Listing(l.Ticker); !ok {
			known.Listings = append(known.Listings, l)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.stores.Securities.PutSecurity(ctx, known)
}

// CreatePortfolio registers p, giving it the default currency if it has none.
func (s *Service) CreatePortfolio(ctx context.Context, p Portfolio) (Portfolio, error) {
	if p.Currency == "" {
		p.Currency = s.defaultCurrency
	}
	p.Currency = strings.ToUpper(p.Currency)
	if err := p.Validate(); err != nil {
		return Portfolio{}, err
	}
	if err := s.stores.Portfolios.CreatePortfolio(ctx, p); err != nil {
		return Portfolio{}, cancelled(ctx, fmt.Errorf("cannot create portfolio %q: %w", p.ID, err))
	}
	s.log.Info().Str("portfolio", p.ID).Str("currency", p.Currency).Msg("portfolio created")
	return p, nil
}

// GetPortfolio returns the portfolio id, or ErrNotFound.
func (s *Service) GetPortfolio(ctx context.Context, id string) (Portfolio, error) {
	return s.stores.Portfolios.GetPortfolio(ctx, id)
}

// ListPortfolios returns every portfolio.
func (s *Service) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	return s.stores.Portfolios.ListPortfolios(ctx)
}

// ledger loads the whole ledger of portfolioID.
func (s *Service) ledger(ctx context.Context, portfolioID string) (*Ledger, error) {
	if _, err := s.stores.Portfolios.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, cancelled(ctx, fmt.Errorf("portfolio %q: %w", portfolioID, err))
	}
	records, err := s.stores.Events.ListEvents(ctx, portfolioID, time.Time{})
	if err != nil {
		return nil, cancelled(ctx, fmt.Errorf("events of %q: %w", portfolioID, err))
	}
	return NewLedger(records...)
}

// applyMask copies the fields of src named by mask into dst.
func applyMask(dst, src PortfolioEvent, mask []string) (PortfolioEvent, error) {
	if len(mask) == 0 {
		mask = []string{"time", "type", "security_id", "quantity", "price", "fees", "taxes"}
	}
	for _, path := range mask {
		switch columnKey(strings.TrimSpace(path)) {
		case "time":
			dst.Time = src.Time
		case "type":
			dst.Type = src.Type
		case "securityid":
			dst.SecurityID = src.SecurityID
		case "quantity", "amount":
			dst.Quantity = src.Quantity
		case "price":
			dst.Price = src.Price
		case "fees":
			dst.Fees = src.Fees
		case "taxes":
			dst.Taxes = src.Taxes
		default:
			return PortfolioEvent{}, invalid("update_mask", "unknown field %q", path)
		}
	}
	return dst, nil
}
