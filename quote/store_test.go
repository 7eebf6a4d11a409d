package quote

import (
	"context"
	"testing"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/currency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Quotes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.PutQuote(ctx, valuation.Quote{SecurityID: "AAPL", Time: at("2025-01-10"), Price: currency.New(1500, "EUR")}))
	require.NoError(t, s.PutQuote(ctx, valuation.Quote{SecurityID: "AAPL", Time: at("2025-01-20"), Price: currency.New(1600, "EUR")}))

	q, err := s.GetQuote(ctx, "AAPL", at("2025-01-15"))
	require.NoError(t, err)
	assert.Equal(t, currency.New(1500, "EUR"), q.Price)
	assert.Equal(t, at("2025-01-10"), q.Time)

	_, err = s.GetQuote(ctx, "AAPL", at("2025-01-01"))
	assert.ErrorIs(t, err, valuation.ErrNotFound)
	_, err = s.LatestQuote(ctx, "GOOG")
	assert.ErrorIs(t, err, valuation.ErrNotFound)

	q, err = s.LatestQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, currency.New(1600, "EUR"), q.Price)

	err = s.PutQuote(ctx, valuation.Quote{SecurityID: "AAPL", Time: at("2025-01-20"), Price: currency.New(0, "EUR")})
	assert.ErrorIs(t, err, valuation.ErrValidation)

	assert.Len(t, s.Quotes(), 2)
}

func TestStore_Rate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.PutRate(ctx, "EUR", "USD", at("2025-01-01"), 2))
	require.NoError(t, s.PutRate(ctx, "eur", "usd", at("2025-02-01"), 1.25))

	r, err := s.Rate(ctx, "EUR", "USD", at("2025-01-15"))
	require.NoError(t, err)
	assert.Equal(t, 2.0, r)

	r, err = s.Rate(ctx, "USD", "EUR", at("2025-03-01"))
	require.NoError(t, err)
	assert.Equal(t, 0.8, r, "inverse pair")

	r, err = s.Rate(ctx, "GBP", "GBP", at("2025-03-01"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)

	_, err = s.Rate(ctx, "EUR", "USD", at("2024-12-31"))
	assert.ErrorIs(t, err, valuation.ErrNotFound)
	_, err = s.Rate(ctx, "EUR", "CHF", at("2025-03-01"))
	assert.ErrorIs(t, err, valuation.ErrNotFound)

	assert.Error(t, s.PutRate(ctx, "EUR", "USD", at("2025-01-01"), 0))
	assert.Error(t, s.PutRate(ctx, "EURO", "USD", at("2025-01-01"), 1))

	assert.Equal(t, []Rate{
		{From: "EUR", To: "USD", Time: at("2025-01-01"), Value: 2},
		{From: "EUR", To: "USD", Time: at("2025-02-01"), Value: 1.25},
	}, s.AllRates())
}
