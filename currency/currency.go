// Package currency implements monetary values stored as an integer count of
// the smallest unit of an ISO 4217 currency (cents for EUR).
//
// Addition and subtraction are exact, and fail with ErrOverflow rather than
// wrap around. The only place where rounding happens is
// when a value is multiplied or divided by a float64 (a quantity of shares, a
// ratio, an exchange rate): the exact decimal result is rounded to the nearest
// minor unit, half away from zero. This is the single controlled boundary
// between float quantities and integer money.
package currency

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned when an operation mixes two different symbols.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrOverflow is returned when a result does not fit in int64 minor units.
var ErrOverflow = errors.New("amount overflows int64 minor units")

// Currency is a monetary value in minor units of Symbol.
//
// The zero value (no value, no symbol) is neutral: it can be added to or
// subtracted from any currency.
type Currency struct {
	// Value is the amount in minor units (e.g. cents).
	Value int64 `json:"value"`
	// Symbol is the ISO 4217 code of the currency.
	Symbol string `json:"symbol"`
}

// New returns a value of v minor units of symbol.
func New(v int64, symbol string) Currency {
	return Currency{Value: v, Symbol: strings.ToUpper(symbol)}
}

// Zero returns zero minor units of symbol.
func Zero(symbol string) Currency { return New(0, symbol) }

// Parse parses a decimal amount expressed in major units ("12.34") into
// minor units of symbol. Extra digits are rounded half away from zero.
func Parse(s, symbol string) (Currency, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Currency{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	c := Zero(symbol)
	return c.fromDecimal(d.Shift(c.fraction()))
}

// ParseGrouped is like Parse but accepts digit grouping and a decimal comma:
// "1.234,56", "1,234.56", "1 234,56" and "1234.56" all read 1234.56. The
// rightmost of ',' and '.' is the decimal separator.
func ParseGrouped(s, symbol string) (Currency, error) {
	s = strings.Join(strings.Fields(s), "")
	if i := strings.LastIndexAny(s, ",."); i >= 0 && s[i] == ',' {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	return Parse(s, symbol)
}

// FromMajor converts a float amount in major units into minor units of symbol.
func FromMajor(v float64, symbol string) Currency {
	c := Zero(symbol)
	c, _ = c.fromDecimal(decimal.NewFromFloat(v).Shift(c.fraction()))
	return c
}

// Fraction returns the number of decimal digits of the minor unit, 2 for EUR.
func (c Currency) Fraction() int32 { return c.fraction() }

func (c Currency) fraction() int32 {
	if cur := money.GetCurrency(c.Symbol); cur != nil {
		return int32(cur.Fraction)
	}
	return 2
}

// money returns the go-money representation of c.
func (c Currency) money() *money.Money { return money.New(c.Value, c.Symbol) }

// fromDecimal rounds a minor-unit decimal and stores it with c's symbol.
func (c Currency) fromDecimal(d decimal.Decimal) (Currency, error) {
	r := d.Round(0)
	if !r.BigInt().IsInt64() {
		return Currency{}, fmt.Errorf("%w: %s %s", ErrOverflow, r, c.Symbol)
	}
	return Currency{Value: r.IntPart(), Symbol: c.Symbol}, nil
}

// neutral reports whether c is the symbol-less zero value.
func (c Currency) neutral() bool { return c.Symbol == "" && c.Value == 0 }

// IsZero reports whether c has no value.
func (c Currency) IsZero() bool { return c.Value == 0 }

// IsNegative reports whether c is below zero.
func (c Currency) IsNegative() bool { return c.Value < 0 }

// IsPositive reports whether c is above zero.
func (c Currency) IsPositive() bool { return c.Value > 0 }

// Neg returns -c.
func (c Currency) Neg() Currency { return Currency{Value: -c.Value, Symbol: c.Symbol} }

// Decimal returns the value in major units, e.g. 12.34 for 1234 cents.
func (c Currency) Decimal() decimal.Decimal {
	return decimal.NewFromInt(c.Value).Shift(-c.fraction())
}

// String returns a human readable form of c, e.g. "€12.34".
func (c Currency) String() string {
	if money.GetCurrency(c.Symbol) == nil {
		return strings.TrimSpace(c.Decimal().StringFixed(c.fraction()) + " " + c.Symbol)
	}
	return c.money().Display()
}

// Add returns a+b.
func Add(a, b Currency) (Currency, error) {
	switch {
	case b.neutral():
		return a, nil
	case a.neutral():
		return b, nil
	}
	m, err := a.money().Add(b.money())
	if err != nil {
		return Currency{}, mismatch(a, b, err)
	}
	if (b.Value > 0 && m.Amount() < a.Value) || (b.Value < 0 && m.Amount() > a.Value) {
		return Currency{}, overflow("+", a, b)
	}
	return Currency{Value: m.Amount(), Symbol: a.Symbol}, nil
}

// Sub returns a-b.
func Sub(a, b Currency) (Currency, error) {
	switch {
	case b.neutral():
		return a, nil
	case a.neutral():
		if b.Value == math.MinInt64 {
			return Currency{}, overflow("-", a, b)
		}
		return b.Neg(), nil
	}
	m, err := a.money().Subtract(b.money())
	if err != nil {
		return Currency{}, mismatch(a, b, err)
	}
	if (b.Value > 0 && m.Amount() > a.Value) || (b.Value < 0 && m.Amount() < a.Value) {
		return Currency{}, overflow("-", a, b)
	}
	return Currency{Value: m.Amount(), Symbol: a.Symbol}, nil
}

// Sum adds all values; it fails on the first mismatching symbol.
func Sum(values ...Currency) (Currency, error) {
	var total Currency
	for _, v := range values {
		var err error
		if total, err = Add(total, v); err != nil {
			return Currency{}, err
		}
	}
	return total, nil
}

func overflow(op string, a, b Currency) error {
	return fmt.Errorf("%w: %d %s %d %s", ErrOverflow, a.Value, op, b.Value, a.Symbol)
}

func mismatch(a, b Currency, err error) error {
	if errors.Is(err, money.ErrCurrencyMismatch) {
		return fmt.Errorf("%w: %q and %q", ErrCurrencyMismatch, a.Symbol, b.Symbol)
	}
	return err
}

// Scale returns a*factor rounded half away from zero. The symbol is kept.
func Scale(a Currency, factor float64) (Currency, error) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Currency{}, fmt.Errorf("cannot scale %v by %v", a, factor)
	}
	return a.fromDecimal(decimal.NewFromInt(a.Value).Mul(decimal.NewFromFloat(factor)))
}

// Prorate returns a*part/whole rounded half away from zero. It is used to
// keep the average cost of a position when part of it leaves.
// A zero whole yields zero.
func Prorate(a Currency, part, whole float64) (Currency, error) {
	if whole == 0 {
		return Zero(a.Symbol), nil
	}
	for _, f := range []float64{part, whole} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Currency{}, fmt.Errorf("cannot prorate %v by %v/%v", a, part, whole)
		}
	}
	d := decimal.NewFromInt(a.Value).Mul(decimal.NewFromFloat(part)).Div(decimal.NewFromFloat(whole))
	return a.fromDecimal(d)
}

// Div returns a/divisor rounded half away from zero. A zero divisor yields zero.
func Div(a Currency, divisor float64) (Currency, error) {
	return Prorate(a, 1, divisor)
}

// Convert returns a expressed in symbol, using rate units of symbol per unit
// of a's currency. Fraction digits of both currencies are honored.
func Convert(a Currency, rate float64, symbol string) (Currency, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return Currency{}, fmt.Errorf("cannot convert %v at rate %v", a, rate)
	}
	to := Zero(symbol)
	return to.fromDecimal(a.Decimal().Mul(decimal.NewFromFloat(rate)).Shift(to.fraction()))
}

// Compare orders a and b by value, then by symbol.
func Compare(a, b Currency) int {
	switch {
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	}
	return strings.Compare(a.Symbol, b.Symbol)
}
