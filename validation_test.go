package valuation

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/etnz/valuation/currency"
)

func TestPortfolioEvent_Validate(t *testing.T) {
	on := day("2025-03-01")
	valid := buy("1", on, "AAPL", 10, EUR(1000), EUR(100))

	tests := []struct {
		name      string
		edit      func(r *PortfolioEvent)
		wantField string // empty when valid
	}{
		{"valid buy", func(r *PortfolioEvent) {}, ""},
		{"missing id", func(r *PortfolioEvent) { r.ID = "" }, "id"},
		{"missing portfolio", func(r *PortfolioEvent) { r.PortfolioID = "" }, "portfolio_id"},
		{"missing time", func(r *PortfolioEvent) { r.Time = time.Time{} }, "time"},
		{"unknown type", func(r *PortfolioEvent) { r.Type = EventType(42) }, "type"},
		{"unspecified type", func(r *PortfolioEvent) { r.Type = EventTypeUnspecified }, "type"},
		{"NaN quantity", func(r *PortfolioEvent) { r.Quantity = math.NaN() }, "quantity"},
		{"infinite quantity", func(r *PortfolioEvent) { r.Quantity = math.Inf(1) }, "quantity"},
		{"negative quantity", func(r *PortfolioEvent) { r.Quantity = -1 }, "quantity"},
		{"zero quantity", func(r *PortfolioEvent) { r.Quantity = 0 }, "quantity"},
		{"missing security", func(r *PortfolioEvent) { r.SecurityID = "" }, "security_id"},
		{"negative price", func(r *PortfolioEvent) { r.Price = EUR(-1) }, "price"},
		{"price without currency", func(r *PortfolioEvent) { r.Price = currency.Currency{} }, "price"},
		{"zero price", func(r *PortfolioEvent) { r.Price = EUR(0) }, ""},
		{"negative fees", func(r *PortfolioEvent) { r.Fees = EUR(-5) }, "fees"},
		{"bad currency", func(r *PortfolioEvent) { r.Fees = currency.Currency{Value: 1, Symbol: "EURO"} }, "fees"},
		{"fees without currency", func(r *PortfolioEvent) { r.Fees = currency.Currency{Value: 1} }, "fees"},
		{"omitted fees", func(r *PortfolioEvent) { r.Fees = currency.Currency{} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.edit(&r)
			err := r.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want a *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Validate() field = %q, want %q (%v)", verr.Field, tt.wantField, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("errors.Is(%v, ErrValidation) = false", err)
			}
		})
	}
}

func TestPortfolioEvent_ValidatePerType(t *testing.T) {
	on := day("2025-03-01")
	tests := []struct {
		name    string
		r       PortfolioEvent
		wantErr bool
	}{
		{"deposit", cash("1", EventTypeDepositCash, on, EUR(100000)), false},
		{"deposit with security", PortfolioEvent{ID: "1", PortfolioID: testPortfolio, Time: on, Type: EventTypeDepositCash, SecurityID: "AAPL", Price: EUR(1)}, true},
		{"zero withdrawal", cash("1", EventTypeWithdrawCash, on, EUR(0)), true},
		{"account fees", cash("1", EventTypeAccountFees, on, EUR(500)), false},
		{"interest without security", cash("1", EventTypeInterest, on, EUR(12)), false},
		{"tax refund", cash("1", EventTypeTaxRefund, on, EUR(12)), false},
		{"dividend without security", cash("1", EventTypeDividend, on, EUR(12)), true},
		{"dividend per share", PortfolioEvent{ID: "1", PortfolioID: testPortfolio, Time: on, Type: EventTypeDividend, SecurityID: "AAPL", Quantity: 10, Price: EUR(24)}, false},
		{"delivery without price", deliver("1", EventTypeDeliveryInbound, on, "AAPL", 3), false},
		{"delivery without quantity", deliver("1", EventTypeDeliveryOutbound, on, "AAPL", 0), true},
		{"sell", sell("1", on, "AAPL", 3, EUR(1200), EUR(50)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPortfolioEvent_ValidateCurrencyMismatch(t *testing.T) {
	r := buy("1", day("2025-03-01"), "AAPL", 10, EUR(1000), USD(100))
	err := r.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Validate() error = %v, want ErrValidation", err)
	}
	if !errors.Is(err, currency.ErrCurrencyMismatch) {
		t.Errorf("Validate() error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestPortfolioEvent_ValidateOutOfRange(t *testing.T) {
	on := day("2025-03-01")
	tests := []struct {
		name string
		r    PortfolioEvent
	}{
		// 1e12 shares at 1,000,000.00 is 1e20 cents.
		{"buy", buy("1", on, "BIG", 1e12, EUR(100000000), EUR(0))},
		{"sell", sell("1", on, "BIG", 1e12, EUR(100000000), EUR(0))},
		{"dividend per share", PortfolioEvent{ID: "1", PortfolioID: testPortfolio, Time: on, Type: EventTypeDividend, SecurityID: "BIG", Quantity: 1e12, Price: EUR(100000000)}},
		{"fees on top", buy("1", on, "BIG", 1, EUR(math.MaxInt64-10), EUR(11))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if !errors.Is(err, ErrValidation) || !errors.Is(err, currency.ErrOverflow) {
				t.Errorf("Validate() error = %v, want ErrValidation and ErrOverflow", err)
			}
		})
	}
	if err := buy("1", on, "BIG", 1, EUR(math.MaxInt64-10), EUR(10)).Validate(); err != nil {
		t.Errorf("Validate() at the limit error = %v", err)
	}
}

func TestNewEvent(t *testing.T) {
	on := day("2025-03-01")
	tests := []struct {
		r        PortfolioEvent
		wantType EventType
		wantFlow currency.Currency
	}{
		{buy("1", on, "AAPL", 10, EUR(1000), EUR(100)), EventTypeBuy, EUR(-10100)},
		{sell("2", on, "AAPL", 3, EUR(1200), EUR(50)), EventTypeSell, EUR(3550)},
		{deliver("3", EventTypeDeliveryInbound, on, "AAPL", 3), EventTypeDeliveryInbound, currency.Currency{}},
		{deliver("4", EventTypeDeliveryOutbound, on, "AAPL", 3), EventTypeDeliveryOutbound, currency.Currency{}},
		{PortfolioEvent{ID: "5", PortfolioID: testPortfolio, Time: on, Type: EventTypeDividend, SecurityID: "AAPL", Quantity: 10, Price: EUR(24), Taxes: EUR(60)}, EventTypeDividend, EUR(180)},
		{cash("6", EventTypeInterest, on, EUR(12)), EventTypeInterest, EUR(12)},
		{PortfolioEvent{ID: "7", PortfolioID: testPortfolio, Time: on, Type: EventTypeDepositCash, Price: EUR(100000), Fees: EUR(100)}, EventTypeDepositCash, EUR(99900)},
		{PortfolioEvent{ID: "8", PortfolioID: testPortfolio, Time: on, Type: EventTypeWithdrawCash, Price: EUR(5000), Fees: EUR(100)}, EventTypeWithdrawCash, EUR(-5100)},
		{cash("9", EventTypeAccountFees, on, EUR(499)), EventTypeAccountFees, EUR(-499)},
		{cash("10", EventTypeTaxRefund, on, EUR(33)), EventTypeTaxRefund, EUR(33)},
		{PortfolioEvent{ID: "11", PortfolioID: testPortfolio, Time: on, Type: EventTypeDeliveryInbound, SecurityID: "AAPL", Quantity: 10, Fees: EUR(500)}, EventTypeDeliveryInbound, EUR(-500)},
		{PortfolioEvent{ID: "12", PortfolioID: testPortfolio, Time: on, Type: EventTypeDeliveryOutbound, SecurityID: "AAPL", Quantity: 4, Price: EUR(1500), Fees: EUR(100), Taxes: EUR(50)}, EventTypeDeliveryOutbound, EUR(-150)},
	}
	for _, tt := range tests {
		t.Run(tt.wantType.String(), func(t *testing.T) {
			e, err := NewEvent(tt.r)
			if err != nil {
				t.Fatalf("NewEvent() error = %v", err)
			}
			if got := e.What(); got != tt.wantType {
				t.Errorf("What() = %v, want %v", got, tt.wantType)
			}
			flow, err := e.CashFlow()
			if err != nil {
				t.Fatalf("CashFlow() error = %v", err)
			}
			if flow != tt.wantFlow {
				t.Errorf("CashFlow() = %v, want %v", flow, tt.wantFlow)
			}
			if got := e.Record(); got != tt.r {
				t.Errorf("Record() = %+v, want %+v", got, tt.r)
			}
		})
	}
}
