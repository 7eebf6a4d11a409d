package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/valuation"
	"github.com/etnz/valuation/currency"
)

// JSONProvider reads the latest price of a listing from an HTTP API
// answering JSON.
//
// URL is a template: "{ticker}", "{isin}" and "{currency}" are replaced by
// the listing's. Path is the JSONPath of the price in the response, like
// "$.last" or "$.series.intraday.data[-1:][1]". Prices may be numbers or
// strings with a decimal comma.
type JSONProvider struct {
	Client *http.Client
	URL    string
	Path   string

	now func() time.Time
}

// NewJSONProvider returns a JSONProvider using the default HTTP client.
func NewJSONProvider(url, path string) *JSONProvider {
	return &JSONProvider{Client: http.DefaultClient, URL: url, Path: path, now: time.Now}
}

// LatestQuote fetches the price of l, timestamped now.
func (p *JSONProvider) LatestQuote(ctx context.Context, l valuation.ListedSecurity) (valuation.Quote, error) {
	addr := strings.NewReplacer(
		"{ticker}", url.PathEscape(l.Ticker),
		"{isin}", url.PathEscape(l.SecurityID),
		"{currency}", url.PathEscape(l.Currency),
	).Replace(p.URL)

	var jobj any
	if err := p.get(ctx, addr, &jobj); err != nil {
		return valuation.Quote{}, err
	}
	jval, err := jsonpath.Get(p.Path, jobj)
	if err != nil {
		return valuation.Quote{}, fmt.Errorf("cannot read %q from %s: %w", p.Path, addr, err)
	}
	// jsonpath returns a list for filters and slices, keep the first match.
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return valuation.Quote{}, fmt.Errorf("no match for %q in %s", p.Path, addr)
		}
		jval = jlist[0]
	}

	var s string
	switch v := jval.(type) {
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		s = v
	default:
		return valuation.Quote{}, fmt.Errorf("%q in %s is not a price: %v", p.Path, addr, jval)
	}
	price, err := currency.ParseGrouped(s, l.Currency)
	if err != nil {
		return valuation.Quote{}, err
	}
	if !price.IsPositive() {
		return valuation.Quote{}, fmt.Errorf("empty price for %s: %v", l.Ticker, jval)
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	return valuation.Quote{SecurityID: l.SecurityID, Time: now().UTC(), Price: price}, nil
}

// get performs an HTTP GET request and unmarshals the JSON response into data.
func (p *JSONProvider) get(ctx context.Context, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(data)
}
