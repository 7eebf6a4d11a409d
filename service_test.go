package valuation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, s *fakeStore) *Service {
	t.Helper()
	svc := NewService(StoresOf(s), Options{DefaultCurrency: "EUR"}, zerolog.Nop())
	n := 0
	var mu sync.Mutex
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "id-" + strconv.Itoa(n)
	}
	return svc
}

func TestService_CreatePortfolioTransaction(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore(eurPortfolio)
	svc := newTestService(t, s)

	created, err := svc.CreatePortfolioTransaction(ctx, buy("", day("2025-01-10"), "AAPL", 10, EUR(1000), EUR(100)))
	require.NoError(t, err)
	assert.Equal(t, "id-1", created.ID)

	stored, err := s.GetEvent(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	_, err = svc.CreatePortfolioTransaction(ctx, sell("", day("2025-01-05"), "AAPL", 1, EUR(1000), EUR(0)))
	assert.ErrorIs(t, err, ErrInsufficientHoldings, "selling before buying")

	_, err = svc.CreatePortfolioTransaction(ctx, sell("", day("2025-01-20"), "AAPL", 11, EUR(1000), EUR(0)))
	assert.ErrorIs(t, err, ErrInsufficientHoldings, "selling more than held")

	_, err = svc.CreatePortfolioTransaction(ctx, buy("", day("2025-01-10"), "AAPL", -1, EUR(1000), EUR(0)))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreatePortfolioTransaction(ctx, buy("id-1", day("2025-01-11"), "AAPL", 1, EUR(1000), EUR(0)))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	missing := buy("x", day("2025-01-10"), "AAPL", 1, EUR(1000), EUR(0))
	missing.PortfolioID = "unknown"
	_, err = svc.CreatePortfolioTransaction(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)

	events, err := svc.ListPortfolioTransactions(ctx, testPortfolio)
	require.NoError(t, err)
	assert.Len(t, events, 1, "rejected transactions must not be stored")
}

func TestService_CreateRejectsBreakingLaterSells(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore(eurPortfolio).add(
		buy("1", day("2025-01-10"), "AAPL", 10, EUR(1000), EUR(0)),
		sell("2", day("2025-01-20"), "AAPL", 10, EUR(1000), EUR(0)),
	)
	svc := newTestService(t, s)

	// Fine at its own time, but the later sell would then oversell.
	_, err := svc.CreatePortfolioTransaction(ctx, sell("", day("2025-01-15"), "AAPL", 5, EUR(1000), EUR(0)))
	assert.ErrorIs(t, err, ErrInsufficientHoldings)
}

func TestService_UpdatePortfolioTransaction(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore(eurPortfolio).add(
		buy("1", day("2025-01-10"), "AAPL", 10, EUR(1000), EUR(100)),
		sell("2", day("2025-01-20"), "AAPL", 3, EUR(1200), EUR(50)),
	)
	svc := newTestService(t, s)

	t.Run("masked fields only", func(t *testing.T) {
		patch := PortfolioEvent{Quantity: 4, Price: EUR(1), SecurityID: "GOOG"}
		got, err := svc.UpdatePortfolioTransaction(ctx, "2", patch, []string{"amount"})
		require.NoError(t, err)
		assert.Equal(t, 4.0, got.Quantity)
		assert.Equal(t, EUR(1200), got.Price)
		assert.Equal(t, "AAPL", got.SecurityID)
		assert.Equal(t, testPortfolio, got.PortfolioID)
	})

	t.Run("camel case path", func(t *testing.T) {
		got, err := svc.UpdatePortfolioTransaction(ctx, "2", PortfolioEvent{Fees: EUR(75)}, []string{"fees", "securityId"})
		// Clearing the security is invalid for a sell.
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, PortfolioEvent{}, got)
	})

	t.Run("empty mask replaces all", func(t *testing.T) {
		full := sell("ignored", day("2025-01-21"), "AAPL", 2, EUR(1300), EUR(10))
		full.PortfolioID = "other"
		got, err := svc.UpdatePortfolioTransaction(ctx, "2", full, nil)
		require.NoError(t, err)
		want := sell("2", day("2025-01-21"), "AAPL", 2, EUR(1300), EUR(10))
		assert.Equal(t, want, got)

		stored, err := s.GetEvent(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, want, stored)
	})

	t.Run("insufficient holdings", func(t *testing.T) {
		_, err := svc.UpdatePortfolioTransaction(ctx, "2", PortfolioEvent{Quantity: 11}, []string{"quantity"})
		assert.ErrorIs(t, err, ErrInsufficientHoldings)
		stored, err := s.GetEvent(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, 2.0, stored.Quantity, "failed updates must not be stored")
	})

	t.Run("moving the buy after the sell", func(t *testing.T) {
		_, err := svc.UpdatePortfolioTransaction(ctx, "1", PortfolioEvent{Time: day("2025-02-01")}, []string{"time"})
		assert.ErrorIs(t, err, ErrInsufficientHoldings)
	})

	t.Run("unknown path", func(t *testing.T) {
		_, err := svc.UpdatePortfolioTransaction(ctx, "2", PortfolioEvent{}, []string{"portfolio"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := svc.UpdatePortfolioTransaction(ctx, "42", PortfolioEvent{}, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_ListPortfolioTransactions(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore(eurPortfolio).add(
		cash("b", EventTypeDepositCash, day("2025-01-02"), EUR(100)),
		cash("a", EventTypeDepositCash, day("2025-01-02"), EUR(100)),
		cash("c", EventTypeDepositCash, day("2025-01-01"), EUR(100)),
	)
	svc := newTestService(t, s)

	events, err := svc.ListPortfolioTransactions(ctx, testPortfolio)
	require.NoError(t, err)
	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	_, err = svc.ListPortfolioTransactions(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

const testCSV = `Date;Type;Value;Transaction Currency;Gross Amount;Currency Gross Amount;Exchange Rate;Fees;Taxes;Shares;ISIN;WKN;Ticker Symbol;Security Name;Note
2021-06-01T00:00;Deposit;5.000,00;EUR;;;;0,00;0,00;;;;;;
2021-06-05T00:00;Buy;2.151,85;EUR;;;;10,25;0,00;20;US0378331005;865985;APC.F;Apple Inc.;
2021-06-07T00:00;Sell;-1.066,80;EUR;;;;5,00;0,00;10;US0378331005;865985;APC.F;Apple Inc.;
2021-06-18T00:00;Delivery (Inbound);912,66;EUR;;;;7,16;0,00;5;US09075V1026;A2PSR2;22UA.F;BioNTech SE;`

func TestService_ImportTransactions(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore(eurPortfolio)
	svc := newTestService(t, s)

	res, err := svc.ImportTransactions(ctx, testPortfolio, strings.NewReader(testCSV))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Added: 4, Securities: 2}, res)

	sec, err := s.GetSecurity(ctx, "US0378331005")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", sec.DisplayName)
	require.Len(t, sec.Listings, 1)
	assert.Equal(t, "APC.F", sec.Listings[0].Ticker)

	// A second import of the same file adds nothing.
	res, err = svc.ImportTransactions(ctx, testPortfolio, strings.NewReader(testCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 4, res.Skipped)

	snap, err := svc.GetPortfolioSnapshot(ctx, testPortfolio, day("2021-07-01"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, snap.Positions["US0378331005"].Quantity)
	assert.Equal(t, 5.0, snap.Positions["US09075V1026"].Quantity)
	// 5000,00 - 2151,85 + 1066,80 - 7,16 of delivery fees
	assert.Equal(t, EUR(390779), snap.Cash)
	assert.Equal(t, EUR(716), snap.Positions["US09075V1026"].TotalFees)
}

func TestService_ImportIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore(eurPortfolio)
	svc := newTestService(t, s)

	oversell := testCSV + "\n2021-06-20T00:00;Sell;100,00;EUR;;;;0,00;0,00;50;US09075V1026;A2PSR2;22UA.F;BioNTech SE;"
	_, err := svc.ImportTransactions(ctx, testPortfolio, strings.NewReader(oversell))
	require.ErrorIs(t, err, ErrInsufficientHoldings)
	assert.Empty(t, s.events)

	_, err = svc.ImportTransactions(ctx, testPortfolio, strings.NewReader(testCSV+"\nnot;a;line"))
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, s.events)
}

func TestService_CreatePortfolio(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newFakeStore())

	p, err := svc.CreatePortfolio(ctx, Portfolio{ID: "main", DisplayName: "Main"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)

	_, err = svc.CreatePortfolio(ctx, Portfolio{ID: "main"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = svc.CreatePortfolio(ctx, Portfolio{ID: "bad id"})
	assert.ErrorIs(t, err, ErrValidation)

	got, err := svc.GetPortfolio(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	all, err := svc.ListPortfolios(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := newFakeStore(eurPortfolio).add(buy("seed", day("2025-01-01"), "AAPL", 5, EUR(1000), EUR(0)))
	svc := NewService(StoresOf(s), Options{}, zerolog.Nop())

	// Ten concurrent sells of one share each: only five can succeed.
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreatePortfolioTransaction(ctx, sell("", day("2025-01-02").Add(time.Duration(i)*time.Minute), "AAPL", 1, EUR(1000), EUR(0)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientHoldings):
				fail++
			default:
				t.Errorf("CreatePortfolioTransaction() error = %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, fail)
}
