package valuation

import "strings"

// Portfolio is an account of securities and cash.
type Portfolio struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	BankAccountID string `json:"bankAccountId,omitempty"`
	// Currency is the reporting currency of the portfolio.
	Currency string `json:"currency,omitempty"`
}

// Validate checks the portfolio description.
func (p Portfolio) Validate() error {
	switch {
	case p.ID == "":
		return invalid("id", "is required")
	case strings.ContainsAny(p.ID, " \t\n/\\"):
		return invalid("id", "must not contain spaces or slashes, got %q", p.ID)
	case p.Currency != "" && !symbolPattern.MatchString(p.Currency):
		return invalid("currency", "must be 3 uppercase letters, got %q", p.Currency)
	}
	return nil
}
