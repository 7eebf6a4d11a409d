// Package quote keeps market prices and exchange rates, and refreshes the
// latest quotes of listed securities from quote providers.
package quote

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/currency"
)

// Store is an in-memory quote and rate repository. It is safe for concurrent
// use.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]*History[currency.Currency] // by security id
	rates  map[string]*History[float64]           // by pair, e.g. "EURUSD"
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		quotes: make(map[string]*History[currency.Currency]),
		rates:  make(map[string]*History[float64]),
	}
}

// PutQuote records q, replacing a quote of the same security at the same time.
func (s *Store) PutQuote(_ context.Context, q valuation.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.quotes[q.SecurityID]
	if !ok {
		h = new(History[currency.Currency])
		s.quotes[q.SecurityID] = h
	}
	h.Append(q.Time, q.Price)
	return nil
}

// GetQuote returns the most recent quote of securityID not after asOf.
func (s *Store) GetQuote(_ context.Context, securityID string, asOf time.Time) (valuation.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.quotes[securityID]; ok {
		if t, price, ok := h.ValueAsOf(asOf); ok {
			return valuation.Quote{SecurityID: securityID, Time: t, Price: price}, nil
		}
	}
	return valuation.Quote{}, fmt.Errorf("no quote for %q as of %s: %w", securityID, asOf.Format(time.RFC3339), valuation.ErrNotFound)
}

// LatestQuote returns the most recent quote of securityID.
func (s *Store) LatestQuote(_ context.Context, securityID string) (valuation.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.quotes[securityID]; ok {
		if t, price, ok := h.Latest(); ok {
			return valuation.Quote{SecurityID: securityID, Time: t, Price: price}, nil
		}
	}
	return valuation.Quote{}, fmt.Errorf("no quote for %q: %w", securityID, valuation.ErrNotFound)
}

// Quotes returns every quote, ordered by security then time.
func (s *Store) Quotes() []valuation.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []valuation.Quote
	for _, id := range slices.Sorted(maps.Keys(s.quotes)) {
		for t, price := range s.quotes[id].Values() {
			out = append(out, valuation.Quote{SecurityID: id, Time: t, Price: price})
		}
	}
	return out
}

// Pair returns the key of an exchange rate, e.g. "EURUSD".
func Pair(from, to string) string { return strings.ToUpper(from) + strings.ToUpper(to) }

// CheckRate reports whether rate is a usable exchange rate from from to to:
// both codes have three letters and the rate is finite and positive.
func CheckRate(from, to string, rate float64) error {
	if len(from) != 3 || len(to) != 3 {
		return fmt.Errorf("invalid currency pair %q/%q", from, to)
	}
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return fmt.Errorf("invalid %s rate %v", Pair(from, to), rate)
	}
	return nil
}

// PutRate records that one unit of from is worth rate units of to at t.
func (s *Store) PutRate(_ context.Context, from, to string, t time.Time, rate float64) error {
	if err := CheckRate(from, to, rate); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.rates[Pair(from, to)]
	if !ok {
		h = new(History[float64])
		s.rates[Pair(from, to)] = h
	}
	h.Append(t, rate)
	return nil
}

// Rate returns how many units of to one unit of from is worth at asOf. The
// inverse pair is used when only that one is known.
func (s *Store) Rate(_ context.Context, from, to string, asOf time.Time) (float64, error) {
	if strings.EqualFold(from, to) {
		return 1, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.rates[Pair(from, to)]; ok {
		if _, r, ok := h.ValueAsOf(asOf); ok {
			return r, nil
		}
	}
	if h, ok := s.rates[Pair(to, from)]; ok {
		if _, r, ok := h.ValueAsOf(asOf); ok {
			return 1 / r, nil
		}
	}
	return 0, fmt.Errorf("no %s rate as of %s: %w", Pair(from, to), asOf.Format(time.RFC3339), valuation.ErrNotFound)
}

// Rate is the value of one unit of From in To at Time.
type Rate struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// AllRates returns every recorded rate, ordered by pair then time.
func (s *Store) AllRates() []Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Rate
	for _, pair := range slices.Sorted(maps.Keys(s.rates)) {
		for t, r := range s.rates[pair].Values() {
			out = append(out, Rate{From: pair[:3], To: pair[3:], Time: t, Value: r})
		}
	}
	return out
}
