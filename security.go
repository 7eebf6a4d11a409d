package valuation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/etnz/valuation/currency"
)

// isinPattern is the shape of an ISIN: 2 letters, 9 alphanumeric, 1 digit.
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// Security describes a financial instrument.
type Security struct {
	// ID is an ISIN or a private identifier.
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	// QuoteProvider names the provider refreshing the quotes of the listings.
	QuoteProvider string           `json:"quoteProvider,omitempty"`
	Listings      []ListedSecurity `json:"listings,omitempty"`
}

// ListedSecurity is a security traded on a venue in one currency.
type ListedSecurity struct {
	SecurityID      string             `json:"securityId"`
	Ticker          string             `json:"ticker"`
	Currency        string             `json:"currency"`
	LatestQuote     *currency.Currency `json:"latestQuote,omitempty"`
	LatestQuoteTime *time.Time         `json:"latestQuoteTime,omitempty"`
}

// Validate checks the security description. IDs shaped like an ISIN must
// carry a valid check digit.
func (s Security) Validate() error {
	if s.ID == "" {
		return invalid("id", "is required")
	}
	if isinPattern.MatchString(s.ID) {
		if err := ValidateISIN(s.ID); err != nil {
			return &ValidationError{Field: "id", Reason: "invalid ISIN", Err: err}
		}
	}
	for i, l := range s.Listings {
		if l.SecurityID != "" && l.SecurityID != s.ID {
			return invalid(fmt.Sprintf("listings[%d].security_id", i), "must be %q, got %q", s.ID, l.SecurityID)
		}
		if l.Ticker == "" {
			return invalid(fmt.Sprintf("listings[%d].ticker", i), "is required")
		}
		if !symbolPattern.MatchString(l.Currency) {
			return invalid(fmt.Sprintf("listings[%d].currency", i), "must be 3 uppercase letters, got %q", l.Currency)
		}
	}
	return nil
}

// Listing returns the listing with ticker.
func (s Security) Listing(ticker string) (ListedSecurity, bool) {
	for _, l := range s.Listings {
		if l.Ticker == ticker {
			return l, true
		}
	}
	return ListedSecurity{}, false
}

// SetLatestQuote records q as the latest quote of the listing with ticker,
// unless a more recent one is already known. It reports whether the listing
// was updated.
func (s *Security) SetLatestQuote(ticker string, q Quote) bool {
	for i := range s.Listings {
		l := &s.Listings[i]
		if l.Ticker != ticker {
			continue
		}
		if l.LatestQuoteTime != nil && l.LatestQuoteTime.After(q.Time) {
			return false
		}
		price, at := q.Price, q.Time
		l.LatestQuote, l.LatestQuoteTime = &price, &at
		return true
	}
	return false
}

// ValidateISIN checks the format and the check digit of an ISIN (ISO 6166).
func ValidateISIN(isin string) error {
	if len(isin) != 12 {
		return fmt.Errorf("invalid length: must be 12 characters, got %d", len(isin))
	}
	if !isinPattern.MatchString(isin) {
		return fmt.Errorf("invalid format: must be 2 uppercase letters, 9 alphanumeric chars, and 1 digit")
	}

	// Letters count as two digits (A=10 ... Z=35), then the Luhn algorithm
	// runs over the whole string, check digit included.
	var digits strings.Builder
	for _, r := range isin {
		if r >= 'A' && r <= 'Z' {
			fmt.Fprintf(&digits, "%d", r-'A'+10)
		} else {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	sum := 0
	for i := 0; i < len(s); i++ {
		d := int(s[len(s)-1-i] - '0')
		if i%2 == 1 {
			d *= 2
		}
		sum += d/10 + d%10
	}
	if sum%10 != 0 {
		return fmt.Errorf("invalid check digit %c", isin[11])
	}
	return nil
}
