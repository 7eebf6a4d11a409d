package valuation

import (
	"errors"
	"strings"
	"testing"
)

func TestImportCSV(t *testing.T) {
	imp, err := ImportCSV(strings.NewReader(testCSV), testPortfolio)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	want := []PortfolioEvent{
		cash("", EventTypeDepositCash, day("2021-06-01"), EUR(500000)),
		buy("", day("2021-06-05"), "US0378331005", 20, EUR(10708), EUR(1025)),
		sell("", day("2021-06-07"), "US0378331005", 10, EUR(10718), EUR(500)),
		{PortfolioID: testPortfolio, Time: day("2021-06-18"), Type: EventTypeDeliveryInbound, SecurityID: "US09075V1026", Quantity: 5, Price: EUR(18110), Fees: EUR(716)},
	}
	if len(imp.Events) != len(want) {
		t.Fatalf("ImportCSV() has %d events, want %d", len(imp.Events), len(want))
	}
	for i, got := range imp.Events {
		if got.ID == "" {
			t.Errorf("event %d has no id", i)
		}
		got.ID = ""
		// Zero amounts are read with the line currency.
		got.Taxes = want[i].Taxes
		if got.Type == EventTypeDepositCash {
			got.Fees = want[i].Fees
		}
		if got != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got, want[i])
		}
	}

	if len(imp.Securities) != 2 {
		t.Fatalf("ImportCSV() has %d securities, want 2", len(imp.Securities))
	}
	if got := imp.Securities[1]; got.ID != "US09075V1026" || got.DisplayName != "BioNTech SE" || got.Listings[0].Ticker != "22UA.F" {
		t.Errorf("second security = %+v", got)
	}
}

func TestImportCSV_StableIDs(t *testing.T) {
	a, err := ImportCSV(strings.NewReader(testCSV), testPortfolio)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	b, err := ImportCSV(strings.NewReader(testCSV), testPortfolio)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	seen := make(map[string]bool)
	for i := range a.Events {
		if a.Events[i].ID != b.Events[i].ID {
			t.Errorf("event %d has id %q then %q", i, a.Events[i].ID, b.Events[i].ID)
		}
		if seen[a.Events[i].ID] {
			t.Errorf("duplicate id %q", a.Events[i].ID)
		}
		seen[a.Events[i].ID] = true
	}
}

func TestImportCSV_Errors(t *testing.T) {
	header := strings.SplitN(testCSV, "\n", 2)[0] + "\n"
	tests := map[string]string{
		"unknown type": "2021-06-01T00:00;Swap;5,00;EUR;;;;0,00;0,00;;;;;;",
		"bad date":     "01.06.2021;Deposit;5,00;EUR;;;;0,00;0,00;;;;;;",
		"bad value":    "2021-06-01T00:00;Deposit;five;EUR;;;;0,00;0,00;;;;;;",
		"no shares":    "2021-06-05T00:00;Buy;2.151,85;EUR;;;;10,25;0,00;;US0378331005;;;;",
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ImportCSV(strings.NewReader(header+line), testPortfolio)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ImportCSV() error = %v, want ErrValidation", err)
			}
			if err != nil && !strings.Contains(err.Error(), "line 2") {
				t.Errorf("ImportCSV() error = %v, want the line number", err)
			}
		})
	}

	imp, err := ImportCSV(strings.NewReader(""), testPortfolio)
	if err != nil || len(imp.Events) != 0 {
		t.Errorf("ImportCSV(empty) = %+v, %v", imp, err)
	}
}

// The unit price is rounded to cents, so the gross read back is price*shares.
func TestImportCSV_RoundedPrice(t *testing.T) {
	header := strings.SplitN(testCSV, "\n", 2)[0] + "\n"
	line := "2025-01-10T00:00;Buy;100,00;EUR;;;;0,00;0,00;3;US0378331005;;;;"
	imp, err := ImportCSV(strings.NewReader(header+line), testPortfolio)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	e := imp.Events[0]
	if e.Price != EUR(3333) {
		t.Errorf("Price = %v, want %v", e.Price, EUR(3333))
	}
	flow, err := mustEvent(e).CashFlow()
	if err != nil || flow != EUR(-9999) {
		t.Errorf("CashFlow() = %v, %v, want %v", flow, err, EUR(-9999))
	}

	var sb strings.Builder
	if err := ExportCSV(&sb, imp.Events, nil); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	if !strings.Contains(sb.String(), ";Buy;99,99;EUR;") {
		t.Errorf("ExportCSV() = %q, want the rounded gross", sb.String())
	}
}

func TestExportCSV(t *testing.T) {
	events := []PortfolioEvent{
		buy("1", day("2025-01-10"), "AAPL", 10, EUR(1000), EUR(100)),
		sell("2", day("2025-01-20", 14), "AAPL", 2.5, EUR(1200), EUR(50)),
		cash("3", EventTypeWithdrawCash, day("2025-01-21"), EUR(123456)),
	}
	securities := map[string]Security{
		"AAPL": {ID: "AAPL", DisplayName: "Apple", Listings: []ListedSecurity{{Ticker: "APC.F", Currency: "EUR"}}},
	}
	var sb strings.Builder
	if err := ExportCSV(&sb, events, securities); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	want := strings.SplitN(testCSV, "\n", 2)[0] + `
2025-01-10T00:00:00;Buy;101,00;EUR;;;;1,00;0,00;10;AAPL;;APC.F;Apple;
2025-01-20T14:00:00;Sell;29,50;EUR;;;;0,50;0,00;2,5;AAPL;;APC.F;Apple;
2025-01-21T00:00:00;Removal;1.234,56;EUR;;;;0,00;0,00;;;;;;
`
	if got := sb.String(); got != want {
		t.Errorf("ExportCSV() =\n%s\nwant\n%s", got, want)
	}

	imp, err := ImportCSV(strings.NewReader(sb.String()), testPortfolio)
	if err != nil {
		t.Fatalf("ImportCSV(exported) error = %v", err)
	}
	for i, got := range imp.Events {
		e := events[i]
		if got.Type != e.Type || !got.Time.Equal(e.Time) || got.Quantity != e.Quantity || got.Price != e.Price || got.Fees.Value != e.Fees.Value {
			t.Errorf("re-imported event %d = %+v, want %+v", i, got, e)
		}
	}
}
