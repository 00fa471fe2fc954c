// Package ledger provides the raw trade and cash movement repositories, the
// unified transaction log, and the builder that derives the log from them.
// The transaction log is the single input replayed by the NAV engine and the
// FIFO cost-basis ledger.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// TradeRepository handles raw buy/sell trades in portfolio.db.
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trades").Logger(),
	}
}

// Create inserts a trade and populates its ID.
func (r *TradeRepository) Create(trade *domain.Trade) error {
	result, err := r.db.Exec(`
		INSERT INTO trades (portfolio_id, ticker, date, side, quantity, price, fees, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.PortfolioID, trade.Ticker, trade.Date.UTC().Format(time.RFC3339), trade.Side,
		trade.Quantity, trade.Price, trade.Fees, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get trade id: %w", err)
	}
	trade.ID = id
	return nil
}

// ListByPortfolio returns all trades for a portfolio ordered by date ascending.
func (r *TradeRepository) ListByPortfolio(portfolioID string) ([]domain.Trade, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, ticker, date, side, quantity, price, fees
		FROM trades WHERE portfolio_id = ? ORDER BY date ASC
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var tr domain.Trade
		var dateStr string
		if err := rows.Scan(&tr.ID, &tr.PortfolioID, &tr.Ticker, &dateStr, &tr.Side,
			&tr.Quantity, &tr.Price, &tr.Fees); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		tr.Date, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse trade date %q: %w", dateStr, err)
		}
		trades = append(trades, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// Tickers returns the distinct tickers ever traded in a portfolio.
func (r *TradeRepository) Tickers(portfolioID string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT DISTINCT ticker FROM trades WHERE portfolio_id = ? ORDER BY ticker",
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}

	return tickers, nil
}
