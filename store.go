package valuation

import (
	"context"
	"time"

	"github.com/etnz/valuation/currency"
)

// Quote is the price of one share of a security at a time.
type Quote struct {
	SecurityID string            `json:"securityId"`
	Time       time.Time         `json:"time"`
	Price      currency.Currency `json:"price"`
}

// Validate checks that q names a security and has a positive price.
func (q Quote) Validate() error {
	if q.SecurityID == "" {
		return invalid("security_id", "is required")
	}
	if q.Time.IsZero() {
		return invalid("time", "is required")
	}
	if !q.Price.IsPositive() {
		return invalid("price", "must be positive, got %v", q.Price)
	}
	return validateMoney("price", q.Price)
}

// PortfolioRegistry stores portfolio descriptions.
type PortfolioRegistry interface {
	// GetPortfolio returns ErrNotFound for an unknown id.
	GetPortfolio(ctx context.Context, id string) (Portfolio, error)
	ListPortfolios(ctx context.Context) ([]Portfolio, error)
	// CreatePortfolio returns ErrAlreadyExists when the id is taken.
	CreatePortfolio(ctx context.Context, p Portfolio) error
}

// EventStore reads the ledger of a portfolio.
type EventStore interface {
	// ListEvents returns the events of portfolioID with a time not after
	// asOf, ordered by (time, id). A zero asOf returns all events.
	ListEvents(ctx context.Context, portfolioID string, asOf time.Time) ([]PortfolioEvent, error)
}

// EventRepository is an EventStore that can also be written to.
type EventRepository interface {
	EventStore
	// GetEvent returns ErrNotFound for an unknown id.
	GetEvent(ctx context.Context, id string) (PortfolioEvent, error)
	// AddEvents stores all events or none. It returns ErrAlreadyExists if
	// one id is taken.
	AddEvents(ctx context.Context, events ...PortfolioEvent) error
	// ReplaceEvent overwrites the event with the same id, or returns ErrNotFound.
	ReplaceEvent(ctx context.Context, e PortfolioEvent) error
}

// QuoteStore provides market prices.
type QuoteStore interface {
	// GetQuote returns the most recent quote not after asOf, or ErrNotFound.
	GetQuote(ctx context.Context, securityID string, asOf time.Time) (Quote, error)
	// LatestQuote returns the most recent quote, or ErrNotFound.
	LatestQuote(ctx context.Context, securityID string) (Quote, error)
}

// QuoteRepository is a QuoteStore that can also record quotes.
type QuoteRepository interface {
	QuoteStore
	// PutQuote records q, replacing a quote of the same security at the same time.
	PutQuote(ctx context.Context, q Quote) error
}

// SecurityRegistry stores security descriptions. They are only used for
// display metadata.
type SecurityRegistry interface {
	// GetSecurity returns ErrNotFound for an unknown id.
	GetSecurity(ctx context.Context, id string) (Security, error)
	ListSecurities(ctx context.Context) ([]Security, error)
	// PutSecurity creates or replaces a security.
	PutSecurity(ctx context.Context, s Security) error
}

// RateSource provides exchange rates.
type RateSource interface {
	// Rate returns how many units of to one unit of from is worth at asOf.
	Rate(ctx context.Context, from, to string, asOf time.Time) (float64, error)
}

// RateRepository is a RateSource that can also record rates.
type RateRepository interface {
	RateSource
	// PutRate records that one unit of from is worth rate units of to at t.
	PutRate(ctx context.Context, from, to string, t time.Time, rate float64) error
}

// Store is a storage backend holding every repository.
type Store interface {
	PortfolioRegistry
	EventRepository
	SecurityRegistry
	QuoteRepository
	Close() error
}
