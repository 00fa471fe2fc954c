package marketdata

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/database"
	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// DividendRepository handles the per-ticker dividend series in portfolio.db.
// Each row is one per-share dividend on its ex-dividend date.
type DividendRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDividendRepository creates a new dividend repository
func NewDividendRepository(db *sql.DB, log zerolog.Logger) *DividendRepository {
	return &DividendRepository{
		db:  db,
		log: log.With().Str("repo", "dividend_history").Logger(),
	}
}

// Upsert inserts or replaces one dividend event.
func (r *DividendRepository) Upsert(ev domain.DividendEvent) error {
	query := `
		INSERT INTO dividend_history (ticker, ex_date, amount)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker, ex_date) DO UPDATE SET amount = excluded.amount
	`
	if _, err := r.db.Exec(query, ev.Ticker, ev.ExDate, ev.Amount); err != nil {
		return fmt.Errorf("failed to upsert dividend for %s on %s: %w", ev.Ticker, ev.ExDate, err)
	}
	return nil
}

// BulkUpsert inserts or replaces a batch of dividend events in one transaction.
func (r *DividendRepository) BulkUpsert(events []domain.DividendEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO dividend_history (ticker, ex_date, amount)
			VALUES (?, ?, ?)
			ON CONFLICT(ticker, ex_date) DO UPDATE SET amount = excluded.amount
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare dividend upsert: %w", err)
		}
		defer stmt.Close()

		for _, ev := range events {
			if _, err := stmt.Exec(ev.Ticker, ev.ExDate, ev.Amount); err != nil {
				return fmt.Errorf("failed to upsert dividend %s/%s: %w", ev.Ticker, ev.ExDate, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(events), nil
}

// ListForTickers returns all dividend events for the given tickers, ordered
// by ex-date ascending. Used by the transaction log builder.
func (r *DividendRepository) ListForTickers(tickers []string) ([]domain.DividendEvent, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	query := "SELECT id, ticker, ex_date, amount FROM dividend_history WHERE ticker IN (?" +
		repeatPlaceholder(len(tickers)-1) + ") ORDER BY ex_date ASC"

	args := make([]interface{}, 0, len(tickers))
	for _, t := range tickers {
		args = append(args, t)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends: %w", err)
	}
	defer rows.Close()

	var events []domain.DividendEvent
	for rows.Next() {
		var ev domain.DividendEvent
		if err := rows.Scan(&ev.ID, &ev.Ticker, &ev.ExDate, &ev.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan dividend event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividends: %w", err)
	}

	return events, nil
}
