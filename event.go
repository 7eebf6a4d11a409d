package valuation

import (
	"fmt"
	"time"

	"github.com/etnz/valuation/currency"
)

// Event is a validated portfolio event. The set of implementations is closed:
// Buy, Sell, DeliveryInbound, DeliveryOutbound, Dividend, Interest,
// DepositCash, WithdrawCash, AccountFees and TaxRefund.
type Event interface {
	ID() string
	When() time.Time
	What() EventType
	// CashFlow is the signed effect of the event on the cash account.
	CashFlow() (currency.Currency, error)
	// Record returns the stored form of the event.
	Record() PortfolioEvent

	sealed()
}

// NewEvent validates r and builds the typed event for its type.
func NewEvent(r PortfolioEvent) (Event, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	base := baseEvent{EventID: r.ID, PortfolioID: r.PortfolioID, Time: r.Time}
	switch r.Type {
	case EventTypeBuy:
		return Buy{newTrade(base, r)}, nil
	case EventTypeSell:
		return Sell{newTrade(base, r)}, nil
	case EventTypeDeliveryInbound:
		return DeliveryInbound{newDelivery(base, r)}, nil
	case EventTypeDeliveryOutbound:
		return DeliveryOutbound{newDelivery(base, r)}, nil
	case EventTypeDividend:
		return Dividend{newIncome(base, r)}, nil
	case EventTypeInterest:
		return Interest{newIncome(base, r)}, nil
	case EventTypeTaxRefund:
		return TaxRefund{newIncome(base, r)}, nil
	case EventTypeDepositCash:
		return DepositCash{newMovement(base, r)}, nil
	case EventTypeWithdrawCash:
		return WithdrawCash{newMovement(base, r)}, nil
	case EventTypeAccountFees:
		return AccountFees{newMovement(base, r)}, nil
	}
	// unreachable: Validate rejects unknown types.
	return nil, invalid("type", "unknown event type %v", r.Type)
}

// baseEvent holds the fields every event has.
type baseEvent struct {
	EventID     string
	PortfolioID string
	Time        time.Time
}

func (e baseEvent) ID() string      { return e.EventID }
func (e baseEvent) When() time.Time { return e.Time }
func (baseEvent) sealed()           {}

func (e baseEvent) record(t EventType) PortfolioEvent {
	return PortfolioEvent{ID: e.EventID, PortfolioID: e.PortfolioID, Time: e.Time, Type: t}
}

// --- trades ---

// trade is the shape shared by Buy and Sell.
type trade struct {
	baseEvent
	Security string
	Quantity float64
	Price    currency.Currency // Price of one share.
	Fees     currency.Currency
	Taxes    currency.Currency
}

func newTrade(base baseEvent, r PortfolioEvent) trade {
	return trade{baseEvent: base, Security: r.SecurityID, Quantity: r.Quantity, Price: r.Price, Fees: r.Fees, Taxes: r.Taxes}
}

// Gross returns price*quantity.
func (t trade) Gross() (currency.Currency, error) { return currency.Scale(t.Price, t.Quantity) }

func (t trade) record(typ EventType) PortfolioEvent {
	r := t.baseEvent.record(typ)
	r.SecurityID, r.Quantity, r.Price, r.Fees, r.Taxes = t.Security, t.Quantity, t.Price, t.Fees, t.Taxes
	return r
}

// Buy acquires Quantity shares of Security at Price each.
type Buy struct{ trade }

func (Buy) What() EventType          { return EventTypeBuy }
func (e Buy) Record() PortfolioEvent { return e.trade.record(EventTypeBuy) }

// CashFlow is -(price*quantity + fees + taxes).
func (e Buy) CashFlow() (currency.Currency, error) {
	gross, err := e.Gross()
	if err != nil {
		return currency.Currency{}, fmt.Errorf("buy %s: %w", e.EventID, err)
	}
	total, err := currency.Sum(gross, e.Fees, e.Taxes)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("buy %s: %w", e.EventID, err)
	}
	return total.Neg(), nil
}

// Sell disposes of Quantity shares of Security at Price each.
type Sell struct{ trade }

func (Sell) What() EventType          { return EventTypeSell }
func (e Sell) Record() PortfolioEvent { return e.trade.record(EventTypeSell) }

// CashFlow is price*quantity - fees - taxes.
func (e Sell) CashFlow() (currency.Currency, error) {
	net, err := netOf(e.Gross, e.Fees, e.Taxes)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("sell %s: %w", e.EventID, err)
	}
	return net, nil
}

// --- deliveries ---

// delivery is the shape of a transfer of shares without payment.
type delivery struct {
	baseEvent
	Security string
	Quantity float64
	Price    currency.Currency // Price is informational, it has no effect on the cost basis.
	Fees     currency.Currency
	Taxes    currency.Currency
}

func newDelivery(base baseEvent, r PortfolioEvent) delivery {
	return delivery{baseEvent: base, Security: r.SecurityID, Quantity: r.Quantity, Price: r.Price, Fees: r.Fees, Taxes: r.Taxes}
}

func (d delivery) record(typ EventType) PortfolioEvent {
	r := d.baseEvent.record(typ)
	r.SecurityID, r.Quantity, r.Price, r.Fees, r.Taxes = d.Security, d.Quantity, d.Price, d.Fees, d.Taxes
	return r
}

// CashFlow is -(fees + taxes). The shares themselves move without payment.
func (d delivery) CashFlow() (currency.Currency, error) {
	charges, err := currency.Add(d.Fees, d.Taxes)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("delivery %s: %w", d.EventID, err)
	}
	return charges.Neg(), nil
}

// DeliveryInbound transfers shares into the portfolio at zero cost.
type DeliveryInbound struct{ delivery }

func (DeliveryInbound) What() EventType          { return EventTypeDeliveryInbound }
func (e DeliveryInbound) Record() PortfolioEvent { return e.delivery.record(EventTypeDeliveryInbound) }

// DeliveryOutbound transfers shares out of the portfolio.
type DeliveryOutbound struct{ delivery }

func (DeliveryOutbound) What() EventType { return EventTypeDeliveryOutbound }
func (e DeliveryOutbound) Record() PortfolioEvent {
	return e.delivery.record(EventTypeDeliveryOutbound)
}

// --- income ---

// income is the shape of dividend, interest and tax refund events.
type income struct {
	baseEvent
	Security string // Security is optional except for dividends.
	Quantity float64
	Price    currency.Currency
	Fees     currency.Currency
	Taxes    currency.Currency
}

func newIncome(base baseEvent, r PortfolioEvent) income {
	return income{baseEvent: base, Security: r.SecurityID, Quantity: r.Quantity, Price: r.Price, Fees: r.Fees, Taxes: r.Taxes}
}

// Gross returns the amount received before fees and taxes.
func (e income) Gross() (currency.Currency, error) { return amount(e.Price, e.Quantity) }

// CashFlow is gross - fees - taxes.
func (e income) CashFlow() (currency.Currency, error) {
	net, err := netOf(e.Gross, e.Fees, e.Taxes)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("income %s: %w", e.EventID, err)
	}
	return net, nil
}

func (e income) record(typ EventType) PortfolioEvent {
	r := e.baseEvent.record(typ)
	r.SecurityID, r.Quantity, r.Price, r.Fees, r.Taxes = e.Security, e.Quantity, e.Price, e.Fees, e.Taxes
	return r
}

// Dividend is a distribution paid by a held security.
type Dividend struct{ income }

func (Dividend) What() EventType          { return EventTypeDividend }
func (e Dividend) Record() PortfolioEvent { return e.income.record(EventTypeDividend) }

// Interest is interest paid on the cash account.
type Interest struct{ income }

func (Interest) What() EventType          { return EventTypeInterest }
func (e Interest) Record() PortfolioEvent { return e.income.record(EventTypeInterest) }

// TaxRefund is tax paid back to the cash account.
type TaxRefund struct{ income }

func (TaxRefund) What() EventType          { return EventTypeTaxRefund }
func (e TaxRefund) Record() PortfolioEvent { return e.income.record(EventTypeTaxRefund) }

// --- cash movements ---

// movement is the shape of deposits, withdrawals and account fees.
type movement struct {
	baseEvent
	Quantity float64
	Amount   currency.Currency
	Fees     currency.Currency
	Taxes    currency.Currency
}

func newMovement(base baseEvent, r PortfolioEvent) movement {
	return movement{baseEvent: base, Quantity: r.Quantity, Amount: r.Price, Fees: r.Fees, Taxes: r.Taxes}
}

// Gross returns the amount moved before fees and taxes.
func (m movement) Gross() (currency.Currency, error) { return amount(m.Amount, m.Quantity) }

// outflow returns gross + fees + taxes as a negative flow.
func (m movement) outflow() (currency.Currency, error) {
	total, err := m.Gross()
	if err == nil {
		total, err = currency.Sum(total, m.Fees, m.Taxes)
	}
	if err != nil {
		return currency.Currency{}, fmt.Errorf("cash movement %s: %w", m.EventID, err)
	}
	return total.Neg(), nil
}

func (m movement) record(typ EventType) PortfolioEvent {
	r := m.baseEvent.record(typ)
	r.Quantity, r.Price, r.Fees, r.Taxes = m.Quantity, m.Amount, m.Fees, m.Taxes
	return r
}

// DepositCash credits the cash account.
type DepositCash struct{ movement }

func (DepositCash) What() EventType          { return EventTypeDepositCash }
func (e DepositCash) Record() PortfolioEvent { return e.movement.record(EventTypeDepositCash) }

// CashFlow is amount - fees - taxes.
func (e DepositCash) CashFlow() (currency.Currency, error) {
	net, err := netOf(e.Gross, e.Fees, e.Taxes)
	if err != nil {
		return currency.Currency{}, fmt.Errorf("deposit %s: %w", e.EventID, err)
	}
	return net, nil
}

// netOf returns gross - fees - taxes.
func netOf(gross func() (currency.Currency, error), fees, taxes currency.Currency) (currency.Currency, error) {
	g, err := gross()
	if err != nil {
		return currency.Currency{}, err
	}
	charges, err := currency.Add(fees, taxes)
	if err != nil {
		return currency.Currency{}, err
	}
	return currency.Sub(g, charges)
}

// WithdrawCash debits the cash account.
type WithdrawCash struct{ movement }

func (WithdrawCash) What() EventType                        { return EventTypeWithdrawCash }
func (e WithdrawCash) Record() PortfolioEvent               { return e.movement.record(EventTypeWithdrawCash) }
func (e WithdrawCash) CashFlow() (currency.Currency, error) { return e.outflow() }

// AccountFees are charges of the bank or broker on the cash account.
type AccountFees struct{ movement }

func (AccountFees) What() EventType                        { return EventTypeAccountFees }
func (e AccountFees) Record() PortfolioEvent               { return e.movement.record(EventTypeAccountFees) }
func (e AccountFees) CashFlow() (currency.Currency, error) { return e.outflow() }

// securityOf returns the security an event refers to, if any.
func securityOf(e Event) string {
	switch v := e.(type) {
	case Buy:
		return v.Security
	case Sell:
		return v.Security
	case DeliveryInbound:
		return v.Security
	case DeliveryOutbound:
		return v.Security
	case Dividend:
		return v.Security
	case Interest:
		return v.Security
	case TaxRefund:
		return v.Security
	}
	return ""
}
