package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// QuoteRepository handles the live_quotes table: one latest intraday price
// per ticker, refreshed during market hours. Display-only data; daily
// snapshots never read it.
type QuoteRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewQuoteRepository creates a new live quote repository
func NewQuoteRepository(db *sql.DB, log zerolog.Logger) *QuoteRepository {
	return &QuoteRepository{
		db:  db,
		log: log.With().Str("repo", "live_quotes").Logger(),
	}
}

// Upsert inserts or replaces the live quote for a ticker.
func (r *QuoteRepository) Upsert(ticker string, price float64) error {
	now := time.Now().Unix()
	query := `
		INSERT INTO live_quotes (ticker, price, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			price = excluded.price,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, ticker, price, now); err != nil {
		return fmt.Errorf("failed to upsert live quote for %s: %w", ticker, err)
	}
	return nil
}

// Get returns the live quote for a ticker. The second return value reports
// whether a quote exists.
func (r *QuoteRepository) Get(ticker string) (float64, bool, error) {
	var price float64
	err := r.db.QueryRow("SELECT price FROM live_quotes WHERE ticker = ?", ticker).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get live quote for %s: %w", ticker, err)
	}
	return price, true, nil
}

// GetAll returns all live quotes as a ticker -> price map.
func (r *QuoteRepository) GetAll() (map[string]float64, error) {
	rows, err := r.db.Query("SELECT ticker, price FROM live_quotes")
	if err != nil {
		return nil, fmt.Errorf("failed to query live quotes: %w", err)
	}
	defer rows.Close()

	quotes := make(map[string]float64)
	for rows.Next() {
		var ticker string
		var price float64
		if err := rows.Scan(&ticker, &price); err != nil {
			return nil, fmt.Errorf("failed to scan live quote: %w", err)
		}
		quotes[ticker] = price
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating live quotes: %w", err)
	}

	return quotes, nil
}

// LastUpdate returns the most recent quote refresh time, or the zero time if
// no quotes exist.
func (r *QuoteRepository) LastUpdate() (time.Time, error) {
	var unix sql.NullInt64
	err := r.db.QueryRow("SELECT MAX(updated_at) FROM live_quotes").Scan(&unix)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get last quote update: %w", err)
	}
	if !unix.Valid || unix.Int64 == 0 {
		return time.Time{}, nil
	}
	return time.Unix(unix.Int64, 0), nil
}
