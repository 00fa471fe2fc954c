// Package nav implements the unitized NAV engine: full history recompute,
// incremental end-of-day updates, and the daily snapshot store they share.
package nav

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/database"
	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// SnapshotRepository handles daily NAV snapshot persistence in portfolio.db.
// Snapshots are keyed by (portfolio_id, date) with dates as YYYY-MM-DD text,
// so lexicographic ordering is chronological.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "daily_snapshots").Logger(),
	}
}

// ReplaceForPortfolio deletes all snapshots for a portfolio and writes the
// given set in a single transaction. A full recompute persists its history
// through this so readers never observe a partially rebuilt series.
func (r *SnapshotRepository) ReplaceForPortfolio(portfolioID string, snapshots []domain.Snapshot) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM daily_snapshots WHERE portfolio_id = ?", portfolioID); err != nil {
			return fmt.Errorf("failed to clear snapshots: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO daily_snapshots (portfolio_id, date, total_value, total_units, nav, cash_balance)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range snapshots {
			if _, err := stmt.Exec(portfolioID, s.Date, s.TotalValue, s.TotalUnits, s.NAV, s.CashBalance); err != nil {
				return fmt.Errorf("failed to insert snapshot for %s: %w", s.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("portfolio", portfolioID).Int("snapshots", len(snapshots)).Msg("Replaced snapshot history")
	return nil
}

// Upsert inserts or replaces a single day's snapshot.
func (r *SnapshotRepository) Upsert(s *domain.Snapshot) error {
	query := `
		INSERT INTO daily_snapshots (portfolio_id, date, total_value, total_units, nav, cash_balance)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, date) DO UPDATE SET
			total_value = excluded.total_value,
			total_units = excluded.total_units,
			nav = excluded.nav,
			cash_balance = excluded.cash_balance
	`
	if _, err := r.db.Exec(query, s.PortfolioID, s.Date, s.TotalValue, s.TotalUnits, s.NAV, s.CashBalance); err != nil {
		return fmt.Errorf("failed to upsert snapshot for %s on %s: %w", s.PortfolioID, s.Date, err)
	}
	return nil
}

// ListByPortfolio returns all snapshots for a portfolio ordered by date.
func (r *SnapshotRepository) ListByPortfolio(portfolioID string) ([]domain.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT portfolio_id, date, total_value, total_units, nav, cash_balance
		FROM daily_snapshots
		WHERE portfolio_id = ?
		ORDER BY date ASC
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// ListRange returns snapshots within [from, to] inclusive, ordered by date.
func (r *SnapshotRepository) ListRange(portfolioID, from, to string) ([]domain.Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT portfolio_id, date, total_value, total_units, nav, cash_balance
		FROM daily_snapshots
		WHERE portfolio_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, portfolioID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// LastBefore returns the most recent snapshot dated strictly before the given
// date, or nil if none exists.
func (r *SnapshotRepository) LastBefore(portfolioID, date string) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := r.db.QueryRow(`
		SELECT portfolio_id, date, total_value, total_units, nav, cash_balance
		FROM daily_snapshots
		WHERE portfolio_id = ? AND date < ?
		ORDER BY date DESC
		LIMIT 1
	`, portfolioID, date).Scan(&s.PortfolioID, &s.Date, &s.TotalValue, &s.TotalUnits, &s.NAV, &s.CashBalance)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot before %s: %w", date, err)
	}
	return &s, nil
}

// Latest returns the most recent snapshot for a portfolio, or nil if none
// exists.
func (r *SnapshotRepository) Latest(portfolioID string) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := r.db.QueryRow(`
		SELECT portfolio_id, date, total_value, total_units, nav, cash_balance
		FROM daily_snapshots
		WHERE portfolio_id = ?
		ORDER BY date DESC
		LIMIT 1
	`, portfolioID).Scan(&s.PortfolioID, &s.Date, &s.TotalValue, &s.TotalUnits, &s.NAV, &s.CashBalance)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &s, nil
}

// LastOfYear returns the last snapshot dated within the given year, or nil.
func (r *SnapshotRepository) LastOfYear(portfolioID string, year int) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := r.db.QueryRow(`
		SELECT portfolio_id, date, total_value, total_units, nav, cash_balance
		FROM daily_snapshots
		WHERE portfolio_id = ? AND date >= ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1
	`, portfolioID, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year)).
		Scan(&s.PortfolioID, &s.Date, &s.TotalValue, &s.TotalUnits, &s.NAV, &s.CashBalance)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last snapshot of %d: %w", year, err)
	}
	return &s, nil
}

// Count returns the number of snapshots for a portfolio.
func (r *SnapshotRepository) Count(portfolioID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM daily_snapshots WHERE portfolio_id = ?", portfolioID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

func scanSnapshots(rows *sql.Rows) ([]domain.Snapshot, error) {
	var snapshots []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.PortfolioID, &s.Date, &s.TotalValue, &s.TotalUnits, &s.NAV, &s.CashBalance); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}
