package quote

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/currency"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// securities is a SecurityRegistry for tests.
type securities struct {
	mu   sync.Mutex
	byID map[string]valuation.Security
}

func newSecurities(secs ...valuation.Security) *securities {
	s := &securities{byID: make(map[string]valuation.Security)}
	for _, sec := range secs {
		s.byID[sec.ID] = sec
	}
	return s
}

func (s *securities) GetSecurity(_ context.Context, id string) (valuation.Security, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.byID[id]
	if !ok {
		return valuation.Security{}, valuation.ErrNotFound
	}
	return sec, nil
}

func (s *securities) ListSecurities(context.Context) ([]valuation.Security, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []valuation.Security
	for _, sec := range s.byID {
		sec.Listings = slices.Clone(sec.Listings)
		out = append(out, sec)
	}
	return out, nil
}

func (s *securities) PutSecurity(_ context.Context, sec valuation.Security) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sec.ID] = sec
	return nil
}

func TestUpdater_Update(t *testing.T) {
	ctx := context.Background()
	secs := newSecurities(
		valuation.Security{ID: "US0378331005", QuoteProvider: "fake", Listings: []valuation.ListedSecurity{
			{Ticker: "AAPL", Currency: "USD"},
			{Ticker: "APC.F", Currency: "EUR"},
		}},
		valuation.Security{ID: "DE000BAY0017", QuoteProvider: "fake", Listings: []valuation.ListedSecurity{{Ticker: "BAYN", Currency: "EUR"}}},
		valuation.Security{ID: "private", Listings: []valuation.ListedSecurity{{Ticker: "PRV", Currency: "EUR"}}},
	)
	quotes := NewStore()
	fake := ProviderFunc(func(_ context.Context, l valuation.ListedSecurity) (valuation.Quote, error) {
		if l.Ticker == "BAYN" {
			return valuation.Quote{}, errors.New("unknown ticker")
		}
		return valuation.Quote{Time: at("2025-01-10"), Price: currency.New(10000, l.Currency)}, nil
	})

	res, err := NewUpdater(secs, quotes, zerolog.Nop()).Register("fake", fake).WithWorkers(2).Update(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAYN")
	assert.Equal(t, UpdateResult{Updated: 2, Skipped: 1}, res)

	q, err := quotes.LatestQuote(ctx, "US0378331005")
	require.NoError(t, err)
	assert.Equal(t, currency.New(10000, "USD"), q.Price, "the first listing is the quote of the security")

	sec, err := secs.GetSecurity(ctx, "US0378331005")
	require.NoError(t, err)
	for _, l := range sec.Listings {
		require.NotNil(t, l.LatestQuote, l.Ticker)
		assert.Equal(t, l.Currency, l.LatestQuote.Symbol)
	}

	_, err = quotes.LatestQuote(ctx, "DE000BAY0017")
	assert.ErrorIs(t, err, valuation.ErrNotFound)
}

func TestUpdater_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	secs := newSecurities(valuation.Security{ID: "X", QuoteProvider: "fake", Listings: []valuation.ListedSecurity{{Ticker: "X", Currency: "EUR"}}})
	fake := ProviderFunc(func(ctx context.Context, _ valuation.ListedSecurity) (valuation.Quote, error) {
		return valuation.Quote{}, ctx.Err()
	})
	_, err := NewUpdater(secs, NewStore(), zerolog.Nop()).Register("fake", fake).Update(ctx)
	assert.ErrorIs(t, err, valuation.ErrCancelled)
}
