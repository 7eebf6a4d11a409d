package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/etnz/valuation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Provider fetches the latest quote of a listed security.
type Provider interface {
	LatestQuote(ctx context.Context, l valuation.ListedSecurity) (valuation.Quote, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, l valuation.ListedSecurity) (valuation.Quote, error)

// LatestQuote calls f.
func (f ProviderFunc) LatestQuote(ctx context.Context, l valuation.ListedSecurity) (valuation.Quote, error) {
	return f(ctx, l)
}

// Updater refreshes the latest quotes of every listed security through the
// provider named by the security.
type Updater struct {
	securities valuation.SecurityRegistry
	quotes     valuation.QuoteRepository
	providers  map[string]Provider
	workers    int
	log        zerolog.Logger
}

// UpdateResult counts what an update did.
type UpdateResult struct {
	Updated int // Updated counts refreshed listings.
	Skipped int // Skipped counts listings without a registered provider.
}

// NewUpdater returns an Updater writing to securities and quotes.
func NewUpdater(securities valuation.SecurityRegistry, quotes valuation.QuoteRepository, log zerolog.Logger) *Updater {
	return &Updater{
		securities: securities,
		quotes:     quotes,
		providers:  make(map[string]Provider),
		workers:    4,
		log:        log.With().Str("component", "quote-updater").Logger(),
	}
}

// Register makes p the provider of securities whose QuoteProvider is name.
func (u *Updater) Register(name string, p Provider) *Updater {
	u.providers[name] = p
	return u
}

// WithWorkers bounds the number of concurrent provider calls.
func (u *Updater) WithWorkers(n int) *Updater {
	if n > 0 {
		u.workers = n
	}
	return u
}

// Update fetches the latest quote of every listing. The quote of the first
// listing of a security is recorded in the quote repository; every listing
// keeps its own latest quote. A failing listing does not stop the others:
// all failures are returned joined.
func (u *Updater) Update(ctx context.Context) (UpdateResult, error) {
	securities, err := u.securities.ListSecurities(ctx)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("cannot list securities: %w", err)
	}

	var (
		mu   sync.Mutex
		res  UpdateResult
		errs = make([]error, len(securities))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for i, sec := range securities {
		p, ok := u.providers[sec.QuoteProvider]
		if !ok || len(sec.Listings) == 0 {
			mu.Lock()
			res.Skipped += len(sec.Listings)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			n, err := u.update(gctx, p, sec)
			errs[i] = err
			mu.Lock()
			res.Updated += n
			mu.Unlock()
			// Only a cancelled context stops the other updates.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("%w: %w", valuation.ErrCancelled, err)
	}
	u.log.Info().Int("updated", res.Updated).Int("skipped", res.Skipped).Msg("quotes updated")
	return res, errors.Join(errs...)
}

// update refreshes the listings of one security and returns how many were
// updated.
func (u *Updater) update(ctx context.Context, p Provider, sec valuation.Security) (int, error) {
	var (
		errs    []error
		updated int
	)
	for i, l := range sec.Listings {
		if l.SecurityID == "" {
			l.SecurityID = sec.ID
		}
		q, err := p.LatestQuote(ctx, l)
		if err != nil {
			u.log.Warn().Err(err).Str("security", sec.ID).Str("ticker", l.Ticker).Msg("cannot fetch quote")
			errs = append(errs, fmt.Errorf("%s (%s): %w", sec.ID, l.Ticker, err))
			continue
		}
		q.SecurityID = sec.ID
		if i == 0 {
			if err := u.quotes.PutQuote(ctx, q); err != nil {
				errs = append(errs, fmt.Errorf("%s: cannot store quote: %w", sec.ID, err))
				continue
			}
		}
		if sec.SetLatestQuote(l.Ticker, q) {
			updated++
		}
	}
	if updated > 0 {
		if err := u.securities.PutSecurity(ctx, sec); err != nil {
			errs = append(errs, fmt.Errorf("%s: cannot store security: %w", sec.ID, err))
		}
	}
	return updated, errors.Join(errs...)
}
