// Package portfolio owns the portfolio registry and the orchestration
// service that drives rebuilds, EOD updates, and quote refreshes across
// portfolios.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// Repository handles portfolio persistence in portfolio.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolios").Logger(),
	}
}

// Create inserts a new portfolio, assigning an ID when none is set.
func (r *Repository) Create(p *domain.Portfolio) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		"INSERT INTO portfolios (id, name, currency, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.Name, p.Currency, p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create portfolio %s: %w", p.Name, err)
	}

	r.log.Info().Str("id", p.ID).Str("name", p.Name).Msg("Portfolio created")
	return nil
}

// Get returns one portfolio by ID, or nil if it does not exist.
func (r *Repository) Get(id string) (*domain.Portfolio, error) {
	var p domain.Portfolio
	var createdAt int64
	err := r.db.QueryRow(
		"SELECT id, name, currency, created_at FROM portfolios WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Currency, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio %s: %w", id, err)
	}

	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &p, nil
}

// List returns all portfolios ordered by creation time.
func (r *Repository) List() ([]domain.Portfolio, error) {
	rows, err := r.db.Query("SELECT id, name, currency, created_at FROM portfolios ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}
