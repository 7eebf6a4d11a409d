package valuation

import (
	"math"
	"regexp"

	"github.com/etnz/valuation/currency"
)

var symbolPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Validate checks that r is a well formed event of its type.
// It returns a *ValidationError describing the first failure.
func (r PortfolioEvent) Validate() error {
	switch {
	case r.ID == "":
		return invalid("id", "is required")
	case r.PortfolioID == "":
		return invalid("portfolio_id", "is required")
	case r.Time.IsZero():
		return invalid("time", "is required")
	case !r.Type.Valid():
		return invalid("type", "unknown event type %d", int(r.Type))
	case math.IsNaN(r.Quantity) || math.IsInf(r.Quantity, 0):
		return invalid("quantity", "must be a finite number")
	case r.Quantity < 0:
		return invalid("quantity", "must not be negative, got %v", r.Quantity)
	}

	// Security.
	switch r.Type {
	case EventTypeBuy, EventTypeSell, EventTypeDeliveryInbound, EventTypeDeliveryOutbound, EventTypeDividend:
		if r.SecurityID == "" {
			return invalid("security_id", "is required for %s events", r.Type)
		}
	case EventTypeDepositCash, EventTypeWithdrawCash, EventTypeAccountFees:
		if r.SecurityID != "" {
			return invalid("security_id", "must be empty for %s events", r.Type)
		}
	}

	// Quantity and price.
	switch r.Type {
	case EventTypeBuy, EventTypeSell:
		if r.Quantity == 0 {
			return invalid("quantity", "must be positive for %s events", r.Type)
		}
		if r.Price.Symbol == "" {
			return invalid("price", "currency is required")
		}
	case EventTypeDeliveryInbound, EventTypeDeliveryOutbound:
		if r.Quantity == 0 {
			return invalid("quantity", "must be positive for %s events", r.Type)
		}
	default:
		if !r.Price.IsPositive() {
			return invalid("price", "amount must be positive for %s events, got %v", r.Type, r.Price)
		}
	}

	for _, f := range []struct {
		name  string
		value currency.Currency
	}{{"price", r.Price}, {"fees", r.Fees}, {"taxes", r.Taxes}} {
		if err := validateMoney(f.name, f.value); err != nil {
			return err
		}
	}
	if err := r.validateSymbols(); err != nil {
		return err
	}
	return r.validateTotal()
}

// validateTotal checks that price*quantity+fees+taxes fits in a Currency.
func (r PortfolioEvent) validateTotal() error {
	gross, err := r.Gross()
	if err == nil {
		_, err = currency.Sum(gross, r.Fees, r.Taxes)
	}
	if err != nil {
		return &ValidationError{Field: "price", Reason: "price*quantity+fees+taxes is out of range", Err: err}
	}
	return nil
}

// validateMoney checks that c is non negative and carries a proper symbol.
func validateMoney(field string, c currency.Currency) error {
	if c.IsNegative() {
		return invalid(field, "must not be negative, got %v", c)
	}
	if c.Symbol == "" {
		if c.Value != 0 {
			return invalid(field, "currency is required")
		}
		return nil
	}
	if !symbolPattern.MatchString(c.Symbol) {
		return invalid(field, "invalid currency %q: must be 3 uppercase letters", c.Symbol)
	}
	return nil
}

// validateSymbols checks that price, fees and taxes share one currency.
func (r PortfolioEvent) validateSymbols() error {
	symbol := r.Price.Symbol
	for _, f := range []struct {
		name  string
		value currency.Currency
	}{{"fees", r.Fees}, {"taxes", r.Taxes}} {
		switch {
		case f.value.Symbol == "":
		case symbol == "":
			symbol = f.value.Symbol
		case f.value.Symbol != symbol:
			return &ValidationError{
				Field:  f.name,
				Reason: "must be in the currency of the price",
				Err:    currency.ErrCurrencyMismatch,
			}
		}
	}
	return nil
}
