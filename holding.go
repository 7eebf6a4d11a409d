package valuation

import (
	"fmt"
	"time"

	"github.com/etnz/valuation/currency"
	"github.com/shopspring/decimal"
)

// Position is the state of one security in a portfolio at a point in time.
type Position struct {
	SecurityID    string            `json:"securityId"`
	DisplayName   string            `json:"displayName,omitempty"`
	Quantity      float64           `json:"quantity"`
	PurchaseValue currency.Currency `json:"purchaseValue"`
	// PurchasePrice is the average cost of one share.
	PurchasePrice currency.Currency `json:"purchasePrice"`
	MarketValue   currency.Currency `json:"marketValue"`
	MarketPrice   currency.Currency `json:"marketPrice"`
	TotalFees     currency.Currency `json:"totalFees"`
	ProfitOrLoss  currency.Currency `json:"profitOrLoss"`
	// Gains is ProfitOrLoss relative to PurchaseValue, 0.25 meaning +25%.
	Gains     float64   `json:"gains"`
	QuoteTime time.Time `json:"quoteTime,omitzero"`
	// Closed is set when the quantity went back to zero.
	Closed bool `json:"closed,omitempty"`
	// QuoteUnavailable is set when no quote was known for the security:
	// market price and market value are then zero.
	QuoteUnavailable bool `json:"quoteUnavailable,omitempty"`
}

// Holding accumulates the position events of one security, in ledger order.
type Holding struct {
	Security  string
	quantity  decimal.Decimal
	costBasis currency.Currency
	totalFees currency.Currency
}

// NewHolding returns an empty holding of security.
func NewHolding(security string) *Holding { return &Holding{Security: security} }

// Quantity returns the number of shares held.
func (h *Holding) Quantity() float64 { return h.quantity.InexactFloat64() }

// Open reports whether some shares are held.
func (h *Holding) Open() bool { return !h.quantity.IsZero() }

// CostBasis returns the purchase value of the shares held.
func (h *Holding) CostBasis() currency.Currency { return h.costBasis }

// Symbol returns the currency the holding was paid in, or "" when only
// deliveries were applied.
func (h *Holding) Symbol() string {
	if h.costBasis.Symbol != "" {
		return h.costBasis.Symbol
	}
	return h.totalFees.Symbol
}

// Apply folds e into h. Events that do not change a position are ignored.
// On error h is left unchanged.
func (h *Holding) Apply(e Event) error {
	switch v := e.(type) {
	case Buy:
		cost, err := v.Gross()
		if err == nil {
			cost, err = currency.Sum(h.costBasis, cost, v.Fees, v.Taxes)
		}
		if err != nil {
			return fmt.Errorf("buy %s of %s: %w", v.EventID, h.Security, err)
		}
		fees, err := currency.Add(h.totalFees, v.Fees)
		if err != nil {
			return fmt.Errorf("buy %s of %s: %w", v.EventID, h.Security, err)
		}
		h.quantity = h.quantity.Add(decimal.NewFromFloat(v.Quantity))
		h.costBasis, h.totalFees = cost, fees
	case Sell:
		return h.reduce(v.EventID, v.Quantity, v.Fees)
	case DeliveryInbound:
		fees, err := currency.Add(h.totalFees, v.Fees)
		if err != nil {
			return fmt.Errorf("delivery %s of %s: %w", v.EventID, h.Security, err)
		}
		h.quantity = h.quantity.Add(decimal.NewFromFloat(v.Quantity))
		h.totalFees = fees
	case DeliveryOutbound:
		return h.reduce(v.EventID, v.Quantity, v.Fees)
	}
	return nil
}

// reduce removes quantity shares keeping the average cost of the remaining ones.
func (h *Holding) reduce(id string, quantity float64, fees currency.Currency) error {
	q := decimal.NewFromFloat(quantity)
	if h.quantity.LessThan(q) {
		return fmt.Errorf("%w: event %s removes %v shares of %s, %v held", ErrInsufficientHoldings, id, quantity, h.Security, h.quantity)
	}
	total, err := currency.Add(h.totalFees, fees)
	if err != nil {
		return fmt.Errorf("event %s on %s: %w", id, h.Security, err)
	}
	before := h.quantity
	after := before.Sub(q)
	cost := currency.Zero(h.costBasis.Symbol)
	if !after.IsZero() {
		if cost, err = currency.Prorate(h.costBasis, after.InexactFloat64(), before.InexactFloat64()); err != nil {
			return fmt.Errorf("event %s on %s: %w", id, h.Security, err)
		}
	}
	h.quantity, h.costBasis, h.totalFees = after, cost, total
	return nil
}

// Position computes the figures of the holding valued at quote.
// A nil quote flags the position as QuoteUnavailable.
// The quote price must be in the holding's currency.
func (h *Holding) Position(quote *Quote) (Position, error) {
	symbol := h.Symbol()
	if symbol == "" && quote != nil {
		symbol = quote.Price.Symbol
	}
	qty := h.quantity.InexactFloat64()
	p := Position{
		SecurityID:    h.Security,
		Quantity:      qty,
		PurchaseValue: withSymbol(h.costBasis, symbol),
		PurchasePrice: currency.Zero(symbol),
		TotalFees:     withSymbol(h.totalFees, symbol),
		MarketPrice:   currency.Zero(symbol),
		MarketValue:   currency.Zero(symbol),
	}
	var err error
	if h.quantity.IsZero() {
		p.Closed = true
	} else if p.PurchasePrice, err = currency.Div(p.PurchaseValue, qty); err != nil {
		return Position{}, fmt.Errorf("position %s: %w", h.Security, err)
	}
	if quote == nil {
		p.QuoteUnavailable = true
	} else {
		p.MarketPrice = quote.Price
		p.QuoteTime = quote.Time
		if p.MarketValue, err = currency.Scale(quote.Price, qty); err != nil {
			return Position{}, fmt.Errorf("position %s: %w", h.Security, err)
		}
	}
	if err := p.settle(); err != nil {
		return Position{}, fmt.Errorf("position %s: %w", h.Security, err)
	}
	return p, nil
}

// settle computes profit or loss and gains from market and purchase values.
func (p *Position) settle() error {
	pl, err := currency.Sub(p.MarketValue, p.PurchaseValue)
	if err != nil {
		return err
	}
	p.ProfitOrLoss = pl
	p.Gains = ratio(pl, p.PurchaseValue)
	return nil
}

// ratio returns num/den, or 0 when den is zero.
func ratio(num, den currency.Currency) float64 {
	if den.Value == 0 {
		return 0
	}
	return float64(num.Value) / float64(den.Value)
}

// withSymbol gives a symbol to the neutral zero.
func withSymbol(c currency.Currency, symbol string) currency.Currency {
	if c.Symbol == "" && c.Value == 0 {
		return currency.Zero(symbol)
	}
	return c
}
