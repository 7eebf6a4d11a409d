package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/currency"
	"github.com/etnz/valuation/quote"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeLayout is fixed width, so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS portfolios (
	id              TEXT PRIMARY KEY,
	display_name    TEXT NOT NULL DEFAULT '',
	bank_account_id TEXT NOT NULL DEFAULT '',
	currency        TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS events (
	id           TEXT PRIMARY KEY,
	portfolio_id TEXT NOT NULL,
	time         TEXT NOT NULL,
	type         TEXT NOT NULL,
	security_id  TEXT NOT NULL DEFAULT '',
	quantity     REAL NOT NULL DEFAULT 0,
	price        TEXT NOT NULL,
	fees         TEXT NOT NULL,
	taxes        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_by_portfolio ON events (portfolio_id, time, id);
CREATE TABLE IF NOT EXISTS securities (
	id             TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL DEFAULT '',
	quote_provider TEXT NOT NULL DEFAULT '',
	listings       TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS quotes (
	security_id TEXT NOT NULL,
	time        TEXT NOT NULL,
	price       TEXT NOT NULL,
	PRIMARY KEY (security_id, time)
);
CREATE TABLE IF NOT EXISTS rates (
	pair TEXT NOT NULL,
	time TEXT NOT NULL,
	rate REAL NOT NULL,
	PRIMARY KEY (pair, time)
);
`

// SQLite stores every repository in a SQLite database.
type SQLite struct {
	conn *sql.DB
	path string
	log  zerolog.Logger
}

var _ Backend = (*SQLite)(nil)

// OpenSQLite opens, and creates if needed, the database at path.
func OpenSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	log.Debug().Str("path", path).Msg("database opened")
	return &SQLite{conn: conn, path: path, log: log}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error { return s.conn.Close() }

// money stores a currency as a JSON text column.
type money struct{ c *currency.Currency }

func (m money) Value() (driver.Value, error) {
	data, err := json.Marshal(m.c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m.c = currency.Currency{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), m.c)
	case []byte:
		return json.Unmarshal(v, m.c)
	}
	return fmt.Errorf("cannot scan %T into a currency", src)
}

// timestamp stores a time as fixed width UTC text.
type timestamp struct{ t *time.Time }

func (ts timestamp) Value() (driver.Value, error) { return formatTime(*ts.t), nil }

func (ts timestamp) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into a time", src)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*ts.t = t
	return nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// exists reports whether query returns a row.
func exists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLite) GetPortfolio(ctx context.Context, id string) (valuation.Portfolio, error) {
	var p valuation.Portfolio
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, display_name, bank_account_id, currency FROM portfolios WHERE id = ?`, id).
		Scan(&p.ID, &p.DisplayName, &p.BankAccountID, &p.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return valuation.Portfolio{}, fmt.Errorf("portfolio %q: %w", id, valuation.ErrNotFound)
	}
	if err != nil {
		return valuation.Portfolio{}, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

func (s *SQLite) ListPortfolios(ctx context.Context) ([]valuation.Portfolio, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, display_name, bank_account_id, currency FROM portfolios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()
	var out []valuation.Portfolio
	for rows.Next() {
		var p valuation.Portfolio
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.BankAccountID, &p.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) CreatePortfolio(ctx context.Context, p valuation.Portfolio) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	taken, err := exists(ctx, tx, `SELECT 1 FROM portfolios WHERE id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to check portfolio: %w", err)
	}
	if taken {
		return fmt.Errorf("portfolio %q: %w", p.ID, valuation.ErrAlreadyExists)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO portfolios (id, display_name, bank_account_id, currency) VALUES (?, ?, ?, ?)`,
		p.ID, p.DisplayName, p.BankAccountID, p.Currency); err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}
	return tx.Commit()
}

const eventColumns = `id, portfolio_id, time, type, security_id, quantity, price, fees, taxes`

func scanEvent(scan func(dest ...any) error) (valuation.PortfolioEvent, error) {
	var (
		e   valuation.PortfolioEvent
		typ string
	)
	err := scan(&e.ID, &e.PortfolioID, timestamp{&e.Time}, &typ, &e.SecurityID, &e.Quantity,
		money{&e.Price}, money{&e.Fees}, money{&e.Taxes})
	if err != nil {
		return e, err
	}
	if e.Type, err = valuation.ParseEventType(typ); err != nil {
		return e, err
	}
	return e, nil
}

func eventArgs(e valuation.PortfolioEvent) []any {
	return []any{e.ID, e.PortfolioID, timestamp{&e.Time}, e.Type.String(), e.SecurityID, e.Quantity,
		money{&e.Price}, money{&e.Fees}, money{&e.Taxes}}
}

func (s *SQLite) ListEvents(ctx context.Context, portfolioID string, asOf time.Time) ([]valuation.PortfolioEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE portfolio_id = ?`
	args := []any{portfolioID}
	if !asOf.IsZero() {
		query += ` AND time <= ?`
		args = append(args, formatTime(asOf))
	}
	rows, err := s.conn.QueryContext(ctx, query+` ORDER BY time, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	var out []valuation.PortfolioEvent
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) GetEvent(ctx context.Context, id string) (valuation.PortfolioEvent, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return valuation.PortfolioEvent{}, fmt.Errorf("transaction %q: %w", id, valuation.ErrNotFound)
	}
	if err != nil {
		return valuation.PortfolioEvent{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	return e, nil
}

func (s *SQLite) AddEvents(ctx context.Context, events ...valuation.PortfolioEvent) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range events {
		taken, err := exists(ctx, tx, `SELECT 1 FROM events WHERE id = ?`, e.ID)
		if err != nil {
			return fmt.Errorf("failed to check transaction: %w", err)
		}
		if taken {
			return fmt.Errorf("transaction %q: %w", e.ID, valuation.ErrAlreadyExists)
		}
		if _, err := stmt.ExecContext(ctx, eventArgs(e)...); err != nil {
			return fmt.Errorf("failed to insert transaction %q: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ReplaceEvent(ctx context.Context, e valuation.PortfolioEvent) error {
	args := eventArgs(e)
	res, err := s.conn.ExecContext(ctx,
		`UPDATE events SET portfolio_id = ?, time = ?, type = ?, security_id = ?, quantity = ?, price = ?, fees = ?, taxes = ? WHERE id = ?`,
		append(args[1:], args[0])...)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %q: %w", e.ID, valuation.ErrNotFound)
	}
	return nil
}

func scanSecurity(scan func(dest ...any) error) (valuation.Security, error) {
	var (
		sec      valuation.Security
		listings string
	)
	if err := scan(&sec.ID, &sec.DisplayName, &sec.QuoteProvider, &listings); err != nil {
		return sec, err
	}
	if err := json.Unmarshal([]byte(listings), &sec.Listings); err != nil {
		return sec, fmt.Errorf("invalid listings of %q: %w", sec.ID, err)
	}
	return sec, nil
}

func (s *SQLite) GetSecurity(ctx context.Context, id string) (valuation.Security, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT id, display_name, quote_provider, listings FROM securities WHERE id = ?`, id)
	sec, err := scanSecurity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return valuation.Security{}, fmt.Errorf("security %q: %w", id, valuation.ErrNotFound)
	}
	if err != nil {
		return valuation.Security{}, fmt.Errorf("failed to get security: %w", err)
	}
	return sec, nil
}

func (s *SQLite) ListSecurities(ctx context.Context) ([]valuation.Security, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, display_name, quote_provider, listings FROM securities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list securities: %w", err)
	}
	defer rows.Close()
	var out []valuation.Security
	for rows.Next() {
		sec, err := scanSecurity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *SQLite) PutSecurity(ctx context.Context, sec valuation.Security) error {
	if err := sec.Validate(); err != nil {
		return err
	}
	listings := sec.Listings
	if listings == nil {
		listings = []valuation.ListedSecurity{}
	}
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("failed to encode listings: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO securities (id, display_name, quote_provider, listings) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name,
			quote_provider = excluded.quote_provider, listings = excluded.listings`,
		sec.ID, sec.DisplayName, sec.QuoteProvider, string(data))
	if err != nil {
		return fmt.Errorf("failed to store security: %w", err)
	}
	return nil
}

func (s *SQLite) PutQuote(ctx context.Context, q valuation.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO quotes (security_id, time, price) VALUES (?, ?, ?)
		ON CONFLICT (security_id, time) DO UPDATE SET price = excluded.price`,
		q.SecurityID, timestamp{&q.Time}, money{&q.Price})
	if err != nil {
		return fmt.Errorf("failed to store quote: %w", err)
	}
	return nil
}

func (s *SQLite) quote(ctx context.Context, securityID, query string, args ...any) (valuation.Quote, error) {
	q := valuation.Quote{SecurityID: securityID}
	err := s.conn.QueryRowContext(ctx, query, args...).Scan(timestamp{&q.Time}, money{&q.Price})
	if errors.Is(err, sql.ErrNoRows) {
		return valuation.Quote{}, fmt.Errorf("no quote for %q: %w", securityID, valuation.ErrNotFound)
	}
	if err != nil {
		return valuation.Quote{}, fmt.Errorf("failed to get quote: %w", err)
	}
	return q, nil
}

func (s *SQLite) GetQuote(ctx context.Context, securityID string, asOf time.Time) (valuation.Quote, error) {
	return s.quote(ctx, securityID,
		`SELECT time, price FROM quotes WHERE security_id = ? AND time <= ? ORDER BY time DESC LIMIT 1`,
		securityID, formatTime(asOf))
}

func (s *SQLite) LatestQuote(ctx context.Context, securityID string) (valuation.Quote, error) {
	return s.quote(ctx, securityID,
		`SELECT time, price FROM quotes WHERE security_id = ? ORDER BY time DESC LIMIT 1`, securityID)
}

func (s *SQLite) PutRate(ctx context.Context, from, to string, t time.Time, rate float64) error {
	if err := quote.CheckRate(from, to, rate); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO rates (pair, time, rate) VALUES (?, ?, ?)
		ON CONFLICT (pair, time) DO UPDATE SET rate = excluded.rate`,
		quote.Pair(from, to), formatTime(t), rate)
	if err != nil {
		return fmt.Errorf("failed to store rate: %w", err)
	}
	return nil
}

// Rate returns the rate of the pair, or the inverse of the reverse pair.
func (s *SQLite) Rate(ctx context.Context, from, to string, asOf time.Time) (float64, error) {
	if strings.EqualFold(from, to) {
		return 1, nil
	}
	const query = `SELECT rate FROM rates WHERE pair = ? AND time <= ? ORDER BY time DESC LIMIT 1`
	var rate float64
	err := s.conn.QueryRowContext(ctx, query, quote.Pair(from, to), formatTime(asOf)).Scan(&rate)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get rate: %w", err)
	}
	err = s.conn.QueryRowContext(ctx, query, quote.Pair(to, from), formatTime(asOf)).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no %s rate: %w", quote.Pair(from, to), valuation.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rate: %w", err)
	}
	return 1 / rate, nil
}
