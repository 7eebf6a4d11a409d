package valuation

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/etnz/valuation/currency"
)

// Direction is a sort order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection parses "asc" or "desc" (also "ascending", "descending").
// An empty string is Ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown sort direction %q", s)
}

// columnKey folds "purchaseValue", "purchase_value" and "PurchaseValue" together.
func columnKey(column string) string {
	return strings.ToLower(strings.ReplaceAll(column, "_", ""))
}

var positionColumns = map[string]func(a, b Position) int{
	"displayname":   func(a, b Position) int { return strings.Compare(a.DisplayName, b.DisplayName) },
	"securityid":    func(a, b Position) int { return strings.Compare(a.SecurityID, b.SecurityID) },
	"quantity":      func(a, b Position) int { return cmp.Compare(a.Quantity, b.Quantity) },
	"amount":        func(a, b Position) int { return cmp.Compare(a.Quantity, b.Quantity) },
	"purchasevalue": func(a, b Position) int { return currency.Compare(a.PurchaseValue, b.PurchaseValue) },
	"purchaseprice": func(a, b Position) int { return currency.Compare(a.PurchasePrice, b.PurchasePrice) },
	"marketvalue":   func(a, b Position) int { return currency.Compare(a.MarketValue, b.MarketValue) },
	"marketprice":   func(a, b Position) int { return currency.Compare(a.MarketPrice, b.MarketPrice) },
	"totalfees":     func(a, b Position) int { return currency.Compare(a.TotalFees, b.TotalFees) },
	"profitorloss":  func(a, b Position) int { return currency.Compare(a.ProfitOrLoss, b.ProfitOrLoss) },
	"gains":         func(a, b Position) int { return cmp.Compare(a.Gains, b.Gains) },
}

var eventColumns = map[string]func(a, b PortfolioEvent) int{
	"id":         func(a, b PortfolioEvent) int { return strings.Compare(a.ID, b.ID) },
	"time":       func(a, b PortfolioEvent) int { return a.Time.Compare(b.Time) },
	"type":       func(a, b PortfolioEvent) int { return strings.Compare(a.Type.String(), b.Type.String()) },
	"securityid": func(a, b PortfolioEvent) int { return strings.Compare(a.SecurityID, b.SecurityID) },
	"quantity":   func(a, b PortfolioEvent) int { return cmp.Compare(a.Quantity, b.Quantity) },
	"amount":     func(a, b PortfolioEvent) int { return cmp.Compare(a.Quantity, b.Quantity) },
	"price":      func(a, b PortfolioEvent) int { return currency.Compare(a.Price, b.Price) },
	"fees":       func(a, b PortfolioEvent) int { return currency.Compare(a.Fees, b.Fees) },
	"taxes":      func(a, b PortfolioEvent) int { return currency.Compare(a.Taxes, b.Taxes) },
	"total":      func(a, b PortfolioEvent) int { return currency.Compare(a.Total(), b.Total()) },
}

// PositionColumns lists the columns SortPositions knows.
func PositionColumns() []string {
	return []string{"displayName", "securityId", "quantity", "purchaseValue", "purchasePrice",
		"marketValue", "marketPrice", "totalFees", "profitOrLoss", "gains"}
}

// EventColumns lists the columns SortEvents knows.
func EventColumns() []string {
	return []string{"id", "time", "type", "securityId", "quantity", "price", "fees", "taxes", "total"}
}

// SortPositions sorts ps by column. The ascending sort is stable and
// Descending is its exact reverse, ties included. An unknown column leaves
// ps untouched.
func SortPositions(ps []Position, column string, dir Direction) {
	sortBy(ps, positionColumns, column, dir)
}

// SortEvents sorts es by column, like SortPositions.
func SortEvents(es []PortfolioEvent, column string, dir Direction) {
	sortBy(es, eventColumns, column, dir)
}

func sortBy[T any](s []T, columns map[string]func(a, b T) int, column string, dir Direction) {
	compare, ok := columns[columnKey(column)]
	if !ok {
		return
	}
	slices.SortStableFunc(s, compare)
	if dir == Descending {
		slices.Reverse(s)
	}
}
