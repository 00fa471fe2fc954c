package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// CashRepository handles external deposits and withdrawals in portfolio.db.
// Amounts are stored positive; the sign convention is applied when the
// transaction log is built.
type CashRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCashRepository creates a new cash movement repository
func NewCashRepository(db *sql.DB, log zerolog.Logger) *CashRepository {
	return &CashRepository{
		db:  db,
		log: log.With().Str("repo", "cash_transactions").Logger(),
	}
}

// Create inserts a cash movement and populates its ID.
func (r *CashRepository) Create(m *domain.CashMovement) error {
	if m.Type != domain.TxnDeposit && m.Type != domain.TxnWithdrawal {
		return fmt.Errorf("invalid cash movement type %q", m.Type)
	}

	result, err := r.db.Exec(`
		INSERT INTO cash_transactions (portfolio_id, date, type, amount, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.PortfolioID, m.Date.UTC().Format(time.RFC3339), m.Type, m.Amount, m.Note, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert cash movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get cash movement id: %w", err)
	}
	m.ID = id
	return nil
}

// ListByPortfolio returns all cash movements for a portfolio ordered by date
// ascending.
func (r *CashRepository) ListByPortfolio(portfolioID string) ([]domain.CashMovement, error) {
	rows, err := r.db.Query(`
		SELECT id, portfolio_id, date, type, amount, note
		FROM cash_transactions WHERE portfolio_id = ? ORDER BY date ASC
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash movements: %w", err)
	}
	defer rows.Close()

	var movements []domain.CashMovement
	for rows.Next() {
		var m domain.CashMovement
		var dateStr string
		if err := rows.Scan(&m.ID, &m.PortfolioID, &dateStr, &m.Type, &m.Amount, &m.Note); err != nil {
			return nil, fmt.Errorf("failed to scan cash movement: %w", err)
		}
		m.Date, err = time.Parse(time.RFC3339, dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cash movement date %q: %w", dateStr, err)
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash movements: %w", err)
	}

	return movements, nil
}
