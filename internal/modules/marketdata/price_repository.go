// Package marketdata provides repository implementations for the price
// history, dividend history, and live quote tables in portfolio.db.
// These series are populated by external provider adapters; the engine only
// reads them.
package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/database"
	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// PriceRepository handles closing price persistence in portfolio.db.
// Prices are keyed by (ticker, date) with dates stored as YYYY-MM-DD text.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "price_history").Logger(),
	}
}

// Upsert inserts or replaces one closing price.
func (r *PriceRepository) Upsert(ticker, date string, close float64) error {
	query := `
		INSERT INTO price_history (ticker, date, close_price)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close_price = excluded.close_price
	`
	if _, err := r.db.Exec(query, ticker, date, close); err != nil {
		return fmt.Errorf("failed to upsert price for %s on %s: %w", ticker, date, err)
	}
	return nil
}

// BulkUpsert inserts or replaces a batch of price points in one transaction.
// Returns the number of rows written.
func (r *PriceRepository) BulkUpsert(points []domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO price_history (ticker, date, close_price)
			VALUES (?, ?, ?)
			ON CONFLICT(ticker, date) DO UPDATE SET close_price = excluded.close_price
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare price upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.Exec(p.Ticker, p.Date, p.Close); err != nil {
				return fmt.Errorf("failed to upsert price %s/%s: %w", p.Ticker, p.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(points), nil
}

// ExactDate returns the closing price for the exact (ticker, date) pair.
// The second return value reports whether a price exists.
func (r *PriceRepository) ExactDate(ticker, date string) (float64, bool, error) {
	var price float64
	err := r.db.QueryRow(
		"SELECT close_price FROM price_history WHERE ticker = ? AND date = ?",
		ticker, date,
	).Scan(&price)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get price for %s on %s: %w", ticker, date, err)
	}
	return price, true, nil
}

// LatestOnOrBefore returns the most recent closing price dated on or before
// the given date (stale-price carry-forward).
func (r *PriceRepository) LatestOnOrBefore(ticker, date string) (float64, bool, error) {
	var price float64
	err := r.db.QueryRow(
		"SELECT close_price FROM price_history WHERE ticker = ? AND date <= ? ORDER BY date DESC LIMIT 1",
		ticker, date,
	).Scan(&price)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get latest price for %s <= %s: %w", ticker, date, err)
	}
	return price, true, nil
}

// Latest returns the most recent closing price for a ticker regardless of date.
func (r *PriceRepository) Latest(ticker string) (float64, bool, error) {
	var price float64
	err := r.db.QueryRow(
		"SELECT close_price FROM price_history WHERE ticker = ? ORDER BY date DESC LIMIT 1",
		ticker,
	).Scan(&price)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get latest price for %s: %w", ticker, err)
	}
	return price, true, nil
}

// LatestDate returns the most recent date with a price for a ticker, or ""
// if no prices exist.
func (r *PriceRepository) LatestDate(ticker string) (string, error) {
	var date string
	err := r.db.QueryRow(
		"SELECT date FROM price_history WHERE ticker = ? ORDER BY date DESC LIMIT 1",
		ticker,
	).Scan(&date)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest price date for %s: %w", ticker, err)
	}
	return date, nil
}

// Series returns all price points for a set of tickers within [from, to]
// inclusive, as a ticker -> date -> close lookup. The NAV engine loads its
// whole valuation window through this to avoid per-day queries.
func (r *PriceRepository) Series(tickers []string, from, to string) (map[string]map[string]float64, error) {
	lookup := make(map[string]map[string]float64, len(tickers))
	if len(tickers) == 0 {
		return lookup, nil
	}

	query := "SELECT ticker, date, close_price FROM price_history WHERE date >= ? AND date <= ? AND ticker IN (?" +
		repeatPlaceholder(len(tickers)-1) + ")"

	args := make([]interface{}, 0, len(tickers)+2)
	args = append(args, from, to)
	for _, t := range tickers {
		args = append(args, t)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ticker, date string
		var close float64
		if err := rows.Scan(&ticker, &date, &close); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		if lookup[ticker] == nil {
			lookup[ticker] = make(map[string]float64)
		}
		lookup[ticker][date] = close
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price series: %w", err)
	}

	return lookup, nil
}

// BackfillCash writes CASH = 1.0 for every date in [from, to] inclusive.
// A gap in the CASH series silently zero-values cash during mark-to-market,
// so the backfill must cover the full transaction date range.
func (r *PriceRepository) BackfillCash(from, to string) (int, error) {
	start, err := time.Parse(domain.DayFormat, from)
	if err != nil {
		return 0, fmt.Errorf("invalid backfill start date %q: %w", from, err)
	}
	end, err := time.Parse(domain.DayFormat, to)
	if err != nil {
		return 0, fmt.Errorf("invalid backfill end date %q: %w", to, err)
	}

	var points []domain.PricePoint
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		points = append(points, domain.PricePoint{
			Ticker: domain.CashTicker,
			Date:   domain.DayKey(d),
			Close:  1.0,
		})
	}

	written, err := r.BulkUpsert(points)
	if err != nil {
		return 0, err
	}

	r.log.Debug().Str("from", from).Str("to", to).Int("days", written).Msg("Backfilled CASH prices")
	return written, nil
}

// repeatPlaceholder returns n copies of ", ?" for IN clauses.
func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}
