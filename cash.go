package valuation

import (
	"fmt"
	"maps"
	"slices"

	"github.com/etnz/valuation/currency"
)

// CashLedger keeps the balance of the portfolio cash account, one balance per
// currency.
type CashLedger struct {
	balances map[string]currency.Currency
}

// NewCashLedger returns an empty cash ledger.
func NewCashLedger() *CashLedger {
	return &CashLedger{balances: make(map[string]currency.Currency)}
}

// Apply adds the cash flow of e to the balance of its currency.
func (c *CashLedger) Apply(e Event) error {
	flow, err := e.CashFlow()
	if err != nil {
		return err
	}
	if flow.Symbol == "" {
		return nil
	}
	b, err := currency.Add(c.Balance(flow.Symbol), flow)
	if err != nil {
		return fmt.Errorf("cash flow of %s: %w", e.ID(), err)
	}
	c.balances[flow.Symbol] = b
	return nil
}

// Balance returns the balance in symbol.
func (c *CashLedger) Balance(symbol string) currency.Currency {
	if b, ok := c.balances[symbol]; ok {
		return b
	}
	return currency.Zero(symbol)
}

// Symbols returns the currencies with a balance, sorted.
func (c *CashLedger) Symbols() []string {
	return slices.Sorted(maps.Keys(c.balances))
}

// Balances returns a copy of all balances.
func (c *CashLedger) Balances() map[string]currency.Currency {
	return maps.Clone(c.balances)
}
