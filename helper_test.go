package valuation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/etnz/valuation/currency"
)

// EUR is a helper for test to create euro cents.
func EUR(v int64) currency.Currency { return currency.New(v, "EUR") }

// USD is a helper for test to create dollar cents.
func USD(v int64) currency.Currency { return currency.New(v, "USD") }

// day returns midnight UTC of "2006-01-02", plus an optional number of hours.
func day(s string, hours ...int) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	for _, h := range hours {
		t = t.Add(time.Duration(h) * time.Hour)
	}
	return t
}

const testPortfolio = "pf"

func buy(id string, on time.Time, sec string, q float64, price, fees currency.Currency) PortfolioEvent {
	return PortfolioEvent{ID: id, PortfolioID: testPortfolio, Time: on, Type: EventTypeBuy, SecurityID: sec, Quantity: q, Price: price, Fees: fees}
}

func sell(id string, on time.Time, sec string, q float64, price, fees currency.Currency) PortfolioEvent {
	return PortfolioEvent{ID: id, PortfolioID: testPortfolio, Time: on, Type: EventTypeSell, SecurityID: sec, Quantity: q, Price: price, Fees: fees}
}

func deliver(id string, typ EventType, on time.Time, sec string, q float64) PortfolioEvent {
	return PortfolioEvent{ID: id, PortfolioID: testPortfolio, Time: on, Type: typ, SecurityID: sec, Quantity: q}
}

func cash(id string, typ EventType, on time.Time, amount currency.Currency) PortfolioEvent {
	return PortfolioEvent{ID: id, PortfolioID: testPortfolio, Time: on, Type: typ, Price: amount}
}

func mustEvent(r PortfolioEvent) Event {
	e, err := r.Event()
	if err != nil {
		panic(fmt.Sprintf("invalid test event %q: %v", r.ID, err))
	}
	return e
}

// fakeStore is a minimal in-memory Store for the tests of this package.
type fakeStore struct {
	mu         sync.Mutex
	portfolios map[string]Portfolio
	events     []PortfolioEvent
	quotes     map[string][]Quote // ordered by time
	securities map[string]Security
	listErr    error // listErr is returned by ListEvents when set.
}

func newFakeStore(portfolios ...Portfolio) *fakeStore {
	s := &fakeStore{
		portfolios: make(map[string]Portfolio),
		quotes:     make(map[string][]Quote),
		securities: make(map[string]Security),
	}
	for _, p := range portfolios {
		s.portfolios[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetPortfolio(_ context.Context, id string) (Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[id]
	if !ok {
		return Portfolio{}, ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ListPortfolios(context.Context) ([]Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ps []Portfolio
	for _, p := range s.portfolios {
		ps = append(ps, p)
	}
	return ps, nil
}

func (s *fakeStore) CreatePortfolio(_ context.Context, p Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portfolios[p.ID]; ok {
		return ErrAlreadyExists
	}
	s.portfolios[p.ID] = p
	return nil
}

func (s *fakeStore) ListEvents(ctx context.Context, portfolioID string, asOf time.Time) ([]PortfolioEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []PortfolioEvent
	for _, e := range s.events {
		if e.PortfolioID == portfolioID && (asOf.IsZero() || !e.Time.After(asOf)) {
			out = append(out, e)
		}
	}
	SortRecords(out)
	return out, nil
}

func (s *fakeStore) GetEvent(_ context.Context, id string) (PortfolioEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.ID == id {
			return e, nil
		}
	}
	return PortfolioEvent{}, ErrNotFound
}

func (s *fakeStore) AddEvents(_ context.Context, events ...PortfolioEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if slices.ContainsFunc(s.events, func(x PortfolioEvent) bool { return x.ID == e.ID }) {
			return ErrAlreadyExists
		}
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *fakeStore) ReplaceEvent(_ context.Context, e PortfolioEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == e.ID {
			s.events[i] = e
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) GetQuote(_ context.Context, securityID string, asOf time.Time) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := s.quotes[securityID]
	for i := len(qs) - 1; i >= 0; i-- {
		if !qs[i].Time.After(asOf) {
			return qs[i], nil
		}
	}
	return Quote{}, ErrNotFound
}

func (s *fakeStore) LatestQuote(_ context.Context, securityID string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := s.quotes[securityID]
	if len(qs) == 0 {
		return Quote{}, ErrNotFound
	}
	return qs[len(qs)-1], nil
}

func (s *fakeStore) PutQuote(_ context.Context, q Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := append(s.quotes[q.SecurityID], q)
	slices.SortStableFunc(qs, func(a, b Quote) int { return a.Time.Compare(b.Time) })
	s.quotes[q.SecurityID] = qs
	return nil
}

func (s *fakeStore) GetSecurity(_ context.Context, id string) (Security, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.securities[id]
	if !ok {
		return Security{}, ErrNotFound
	}
	return sec, nil
}

func (s *fakeStore) ListSecurities(context.Context) ([]Security, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Security
	for _, sec := range s.securities {
		out = append(out, sec)
	}
	return out, nil
}

func (s *fakeStore) PutSecurity(_ context.Context, sec Security) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.securities[sec.ID] = sec
	return nil
}

func (s *fakeStore) Close() error { return nil }

// add stores records without any check.
func (s *fakeStore) add(records ...PortfolioEvent) *fakeStore {
	s.events = append(s.events, records...)
	return s
}

// quote records a price.
func (s *fakeStore) quote(sec string, on time.Time, price currency.Currency) *fakeStore {
	_ = s.PutQuote(context.Background(), Quote{SecurityID: sec, Time: on, Price: price})
	return s
}

// fixedRates is a RateSource with constant rates keyed "FROMTO".
type fixedRates map[string]float64

func (r fixedRates) Rate(_ context.Context, from, to string, _ time.Time) (float64, error) {
	if rate, ok := r[from+to]; ok {
		return rate, nil
	}
	return 0, ErrNotFound
}

var _ Store = (*fakeStore)(nil)
