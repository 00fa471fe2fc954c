package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/database"
	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// TransactionRepository handles the unified transaction log in portfolio.db.
// Entries are immutable; the whole set for a portfolio is replaced on rebuild.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction log repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transaction_log").Logger(),
	}
}

// ReplaceForPortfolio deletes the portfolio's existing log and inserts the
// given transactions, all in one database transaction. Re-running with the
// same inputs is idempotent.
func (r *TransactionRepository) ReplaceForPortfolio(portfolioID string, txns []domain.Transaction) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM transaction_log WHERE portfolio_id = ?", portfolioID); err != nil {
			return fmt.Errorf("failed to clear transaction log: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO transaction_log
			(portfolio_id, date, type, ticker, shares, price, amount, commission, source_type, source_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare transaction insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range txns {
			var ticker interface{}
			var shares, price interface{}
			if t.Ticker != "" {
				ticker = t.Ticker
				shares = t.Shares
				price = t.Price
			}
			if _, err := stmt.Exec(
				t.PortfolioID,
				t.Date.UTC().Format(time.RFC3339),
				t.Type,
				ticker,
				shares,
				price,
				t.Amount,
				t.Commission,
				t.SourceType,
				t.SourceID,
			); err != nil {
				return fmt.Errorf("failed to insert transaction: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("portfolio", portfolioID).Int("count", len(txns)).Msg("Replaced transaction log")
	return nil
}

// ListByPortfolio returns the full transaction log for a portfolio ordered by
// date ascending. RFC3339 UTC dates sort lexicographically, so ordering is
// done in SQL.
func (r *TransactionRepository) ListByPortfolio(portfolioID string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, date, type, ticker, shares, price, amount, commission, source_type, source_id
		FROM transaction_log WHERE portfolio_id = ? ORDER BY date ASC, id ASC
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction log: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var dateStr string
		var ticker sql.NullString
		var shares, price sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.PortfolioID, &dateStr, &t.Type, &ticker, &shares, &price,
			&t.Amount, &t.Commission, &t.SourceType, &t.SourceID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Date, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction date %q: %w", dateStr, err)
		}
		t.Ticker = ticker.String
		t.Shares = shares.Float64
		t.Price = price.Float64
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction log: %w", err)
	}

	return txns, nil
}

// Count returns the number of log entries for a portfolio.
func (r *TransactionRepository) Count(portfolioID string) (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM transaction_log WHERE portfolio_id = ?", portfolioID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}
