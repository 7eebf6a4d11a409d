package valuation

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/etnz/valuation/currency"
)

// PortfolioEvent is the stored and wire form of a ledger entry.
//
// The meaning of Quantity and Price depends on Type: for trades and
// deliveries Quantity is a number of shares and Price the price of one share;
// for income and cash movements Price is the amount, multiplied by Quantity
// when Quantity is set (e.g. dividend per share times shares).
type PortfolioEvent struct {
	ID          string            `json:"id"`
	PortfolioID string            `json:"portfolioId"`
	Time        time.Time         `json:"time"`
	Type        EventType         `json:"type"`
	SecurityID  string            `json:"securityId,omitempty"`
	Quantity    float64           `json:"quantity"`
	Price       currency.Currency `json:"price"`
	Fees        currency.Currency `json:"fees"`
	Taxes       currency.Currency `json:"taxes"`
}

// Event validates r and returns its typed form.
func (r PortfolioEvent) Event() (Event, error) { return NewEvent(r) }

// Gross returns the amount of the event before fees and taxes.
func (r PortfolioEvent) Gross() (currency.Currency, error) {
	switch r.Type {
	case EventTypeBuy, EventTypeSell, EventTypeDeliveryInbound, EventTypeDeliveryOutbound:
		return currency.Scale(r.Price, r.Quantity)
	}
	return amount(r.Price, r.Quantity)
}

// Total returns price*quantity+fees+taxes, the figure shown in transaction
// lists. Mismatching fee symbols are left out, and an amount that does not
// fit in a Currency reads as zero.
func (r PortfolioEvent) Total() currency.Currency {
	total, err := r.Gross()
	if err != nil {
		return currency.Zero(r.Price.Symbol)
	}
	for _, c := range []currency.Currency{r.Fees, r.Taxes} {
		if t, err := currency.Add(total, c); err == nil {
			total = t
		}
	}
	return total
}

// MakeUniqueID sets a deterministic ID derived from the security, the
// portfolio, the time, the type and the quantity of the event. Importing the
// same line twice therefore yields the same ID.
func (r *PortfolioEvent) MakeUniqueID() {
	h := fnv.New64a()
	h.Write([]byte(r.SecurityID))
	h.Write([]byte(r.PortfolioID))
	h.Write([]byte(r.Time.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(strconv.FormatInt(int64(r.Type), 10)))
	h.Write([]byte(strconv.FormatFloat(r.Quantity, 'g', -1, 64)))
	r.ID = strconv.FormatUint(h.Sum64(), 16)
}

// amount returns price*quantity when a quantity is given, price otherwise.
func amount(price currency.Currency, quantity float64) (currency.Currency, error) {
	if quantity > 0 {
		return currency.Scale(price, quantity)
	}
	return price, nil
}
