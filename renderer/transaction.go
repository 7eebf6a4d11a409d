package renderer

import (
	"fmt"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/currency"
)

// Transaction renders a transaction to a string.
func Transaction(r valuation.PortfolioEvent) string {
	e, err := r.Event()
	if err != nil {
		return fmt.Sprintf("Invalid %s: %v", r.Type, err)
	}
	switch v := e.(type) {
	case valuation.Buy:
		return fmt.Sprintf("Bought %s of %s for %s", quantity(v.Quantity), v.Security, gross(v))
	case valuation.Sell:
		return fmt.Sprintf("Sold %s of %s for %s", quantity(v.Quantity), v.Security, gross(v))
	case valuation.DeliveryInbound:
		return fmt.Sprintf("Received %s of %s", quantity(v.Quantity), v.Security)
	case valuation.DeliveryOutbound:
		return fmt.Sprintf("Delivered %s of %s", quantity(v.Quantity), v.Security)
	case valuation.Dividend:
		return fmt.Sprintf("Dividend of %s for %s", gross(v), v.Security)
	case valuation.Interest:
		return fmt.Sprintf("Interest of %s", gross(v))
	case valuation.TaxRefund:
		return fmt.Sprintf("Tax refund of %s", gross(v))
	case valuation.DepositCash:
		return fmt.Sprintf("Deposited %s", gross(v))
	case valuation.WithdrawCash:
		return fmt.Sprintf("Withdrew %s", gross(v))
	case valuation.AccountFees:
		return fmt.Sprintf("Account fees of %s", gross(v))
	default:
		return e.What().String()
	}
}

// gross formats the amount of an event before fees and taxes.
func gross(e interface {
	Gross() (currency.Currency, error)
}) string {
	g, err := e.Gross()
	if err != nil {
		return "n/a"
	}
	return money(g)
}

type transactionRow struct {
	valuation.PortfolioEvent
	Security    string
	Total       currency.Currency
	Description string
}

// RenderTransactions renders events as a markdown table, in the given order.
// Security names are looked up in securities, when given.
func RenderTransactions(events []valuation.PortfolioEvent, securities map[string]valuation.Security) string {
	rows := make([]transactionRow, len(events))
	for i, e := range events {
		rows[i] = transactionRow{PortfolioEvent: e, Security: e.SecurityID, Total: e.Total(), Description: Transaction(e)}
		if sec, ok := securities[e.SecurityID]; ok && sec.DisplayName != "" {
			rows[i].Security = sec.DisplayName
		}
	}
	return renderTemplate("transactions", "transactions.md", nil, rows)
}
