package valuation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/valuation/currency"
	"github.com/shopspring/decimal"
)

// This file handles the CSV transaction format exported by Portfolio
// Performance: semicolon separated, numbers in German locale, one header line:
//
//	Date;Type;Value;Transaction Currency;Gross Amount;Currency Gross Amount;Exchange Rate;Fees;Taxes;Shares;ISIN;WKN;Ticker Symbol;Security Name;Note
//
// Value is the amount that left or reached the cash account, fees and taxes
// included.

var csvHeader = []string{"Date", "Type", "Value", "Transaction Currency", "Gross Amount",
	"Currency Gross Amount", "Exchange Rate", "Fees", "Taxes", "Shares", "ISIN", "WKN",
	"Ticker Symbol", "Security Name", "Note"}

const (
	colDate = iota
	colType
	colValue
	colCurrency
	colGross
	colGrossCurrency
	colRate
	colFees
	colTaxes
	colShares
	colISIN
	colWKN
	colTicker
	colName
	colNote
)

var csvTypes = map[string]EventType{
	"Buy":                 EventTypeBuy,
	"Sell":                EventTypeSell,
	"Delivery (Inbound)":  EventTypeDeliveryInbound,
	"Delivery (Outbound)": EventTypeDeliveryOutbound,
	"Dividend":            EventTypeDividend,
	"Interest":            EventTypeInterest,
	"Deposit":             EventTypeDepositCash,
	"Removal":             EventTypeWithdrawCash,
	"Fees":                EventTypeAccountFees,
	"Tax Refund":          EventTypeTaxRefund,
}

// Import is the content of a CSV transaction file.
type Import struct {
	Events     []PortfolioEvent
	Securities []Security // Securities referenced by the events, with their listings.
}

// ImportCSV reads the CSV transactions of portfolioID from r.
// Event IDs are derived from the event content (see MakeUniqueID) so that
// importing a file twice yields the same events. Any malformed line fails the
// whole import.
func ImportCSV(r io.Reader, portfolioID string) (*Import, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return &Import{}, nil
		}
		return nil, fmt.Errorf("cannot read CSV header: %w", err)
	}

	imp := &Import{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)
		e, sec, err := parseCSVRecord(record, portfolioID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		imp.Events = append(imp.Events, e)
		if sec != nil {
			imp.addSecurity(*sec)
		}
	}
	slices.SortFunc(imp.Securities, func(a, b Security) int { return strings.Compare(a.ID, b.ID) })
	return imp, nil
}

// addSecurity records sec, merging the listings of an already known security.
func (imp *Import) addSecurity(sec Security) {
	i := slices.IndexFunc(imp.Securities, func(s Security) bool { return s.ID == sec.ID })
	if i < 0 {
		imp.Securities = append(imp.Securities, sec)
		return
	}
	known := &imp.Securities[i]
	for _, l := range sec.Listings {
		if _, ok := known.Listing(l.Ticker); !ok {
			known.Listings = append(known.Listings, l)
		}
	}
}

func parseCSVRecord(record []string, portfolioID string) (PortfolioEvent, *Security, error) {
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	e := PortfolioEvent{PortfolioID: portfolioID}

	var err error
	if e.Time, err = parseCSVTime(field(colDate)); err != nil {
		return e, nil, invalidCSV("time", err)
	}
	typ, ok := csvTypes[field(colType)]
	if !ok {
		return e, nil, invalid("type", "unknown transaction type %q", field(colType))
	}
	e.Type = typ

	symbol := field(colCurrency)
	value, err := parseGermanCurrency(field(colValue), symbol)
	if err != nil {
		return e, nil, invalidCSV("value", err)
	}
	value = currency.New(abs(value.Value), symbol)
	if e.Fees, err = parseGermanCurrency(field(colFees), symbol); err != nil {
		return e, nil, invalidCSV("fees", err)
	}
	if e.Taxes, err = parseGermanCurrency(field(colTaxes), symbol); err != nil {
		return e, nil, invalidCSV("taxes", err)
	}
	charges, err := currency.Add(e.Fees, e.Taxes)
	if err != nil {
		return e, nil, invalidCSV("fees", err)
	}

	switch typ {
	case EventTypeBuy, EventTypeSell, EventTypeDeliveryInbound, EventTypeDeliveryOutbound:
		if e.Quantity, err = parseGermanFloat(field(colShares)); err != nil {
			return e, nil, invalidCSV("shares", err)
		}
		if e.Quantity <= 0 {
			return e, nil, invalid("shares", "must be positive, got %v", e.Quantity)
		}
		// Buying pays fees on top of the gross amount, selling pays them out of it.
		var gross currency.Currency
		if typ == EventTypeBuy || typ == EventTypeDeliveryInbound {
			gross, err = currency.Sub(value, charges)
		} else {
			gross, err = currency.Add(value, charges)
		}
		if err != nil {
			return e, nil, invalidCSV("value", err)
		}
		// The price is rounded to the minor unit, so the gross read back is
		// price*shares, which may differ from the CSV gross by half a cent a share.
		if e.Price, err = currency.Div(gross, e.Quantity); err != nil {
			return e, nil, invalidCSV("value", err)
		}
	case EventTypeWithdrawCash, EventTypeAccountFees:
		if e.Price, err = currency.Sub(value, charges); err != nil {
			return e, nil, invalidCSV("value", err)
		}
	default:
		if e.Price, err = currency.Add(value, charges); err != nil {
			return e, nil, invalidCSV("value", err)
		}
	}

	var sec *Security
	if isin := field(colISIN); isin != "" && (typ.Security() || typ == EventTypeInterest || typ == EventTypeTaxRefund) {
		e.SecurityID = isin
		sec = &Security{ID: isin, DisplayName: field(colName)}
		if ticker := field(colTicker); ticker != "" {
			listing := ListedSecurity{SecurityID: isin, Ticker: ticker, Currency: symbol}
			if c := field(colGrossCurrency); c != "" {
				listing.Currency = c
			}
			sec.Listings = append(sec.Listings, listing)
		}
	}
	e.MakeUniqueID()
	return e, sec, nil
}

func invalidCSV(field string, err error) error {
	return &ValidationError{Field: field, Reason: "cannot parse", Err: err}
}

// parseCSVTime accepts minutes, seconds or a bare date. Times are UTC.
func parseCSVTime(s string) (time.Time, error) {
	var err error
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", time.DateOnly} {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// fromGerman turns "2.151,85" into "2151.85".
func fromGerman(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", ".")
}

func parseGermanFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(fromGerman(s), 64)
}

func parseGermanCurrency(s, symbol string) (currency.Currency, error) {
	if s == "" {
		return currency.Currency{}, nil
	}
	return currency.Parse(fromGerman(s), symbol)
}

// formatGerman formats d with 'digits' decimals, a dot every three digits and
// a decimal comma: 2151.85 is "2.151,85".
func formatGerman(d decimal.Decimal, digits int32) string {
	s := d.Abs().StringFixed(digits)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

func formatGermanCurrency(c currency.Currency) string {
	if c.Symbol == "" && c.Value == 0 {
		return "0,00"
	}
	return formatGerman(c.Decimal(), c.Fraction())
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ExportCSV writes events in the format read by ImportCSV. Security names are
// looked up in securities, when given.
func ExportCSV(w io.Writer, events []PortfolioEvent, securities map[string]Security) error {
	names := make(map[EventType]string, len(csvTypes))
	for name, t := range csvTypes {
		names[t] = name
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("cannot write CSV header: %w", err)
	}
	for _, e := range events {
		value, err := csvValue(e)
		if err != nil {
			return fmt.Errorf("event %q: %w", e.ID, err)
		}
		record := make([]string, len(csvHeader))
		record[colDate] = e.Time.UTC().Format("2006-01-02T15:04:05")
		record[colType] = names[e.Type]
		record[colValue] = formatGermanCurrency(value)
		record[colCurrency] = value.Symbol
		record[colFees] = formatGermanCurrency(e.Fees)
		record[colTaxes] = formatGermanCurrency(e.Taxes)
		if e.Quantity > 0 {
			record[colShares] = strings.Replace(strconv.FormatFloat(e.Quantity, 'f', -1, 64), ".", ",", 1)
		}
		record[colISIN] = e.SecurityID
		if sec, ok := securities[e.SecurityID]; ok {
			record[colName] = sec.DisplayName
			if len(sec.Listings) > 0 {
				record[colTicker] = sec.Listings[0].Ticker
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("cannot write event %q: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvValue is the inverse of the price computation of ImportCSV.
func csvValue(e PortfolioEvent) (currency.Currency, error) {
	charges, err := currency.Add(e.Fees, e.Taxes)
	if err != nil {
		return currency.Currency{}, err
	}
	gross, err := e.Gross()
	if err != nil {
		return currency.Currency{}, err
	}
	switch e.Type {
	case EventTypeBuy, EventTypeDeliveryInbound, EventTypeWithdrawCash, EventTypeAccountFees:
		return currency.Add(gross, charges)
	}
	return currency.Sub(gross, charges)
}
