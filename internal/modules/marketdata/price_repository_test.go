package marketdata

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inikiforov/dpk-portfolio/internal/domain"

	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory SQLite database with the market data tables
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE price_history (
			ticker TEXT NOT NULL,
			date TEXT NOT NULL,
			close_price REAL NOT NULL,
			PRIMARY KEY (ticker, date)
		);
		CREATE TABLE dividend_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL,
			ex_date TEXT NOT NULL,
			amount REAL NOT NULL,
			UNIQUE (ticker, ex_date)
		);
		CREATE TABLE live_quotes (
			ticker TEXT PRIMARY KEY,
			price REAL NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestPriceRepository_ExactAndCarryForward(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPriceRepository(db, testLogger())

	require.NoError(t, repo.Upsert("AAPL", "2025-01-02", 150.0))
	require.NoError(t, repo.Upsert("AAPL", "2025-01-06", 155.0))

	// Exact match
	price, ok, err := repo.ExactDate("AAPL", "2025-01-02")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 150.0, price)

	// No exact match on a weekend date
	_, ok, err = repo.ExactDate("AAPL", "2025-01-04")
	require.NoError(t, err)
	assert.False(t, ok)

	// Carry-forward picks the most recent prior price
	price, ok, err = repo.LatestOnOrBefore("AAPL", "2025-01-04")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 150.0, price, "Stale price should carry forward")

	// Nothing before the first price
	_, ok, err = repo.LatestOnOrBefore("AAPL", "2024-12-31")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPriceRepository_UpsertReplaces(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPriceRepository(db, testLogger())

	require.NoError(t, repo.Upsert("MSFT", "2025-01-02", 300.0))
	require.NoError(t, repo.Upsert("MSFT", "2025-01-02", 301.5))

	price, ok, err := repo.ExactDate("MSFT", "2025-01-02")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 301.5, price, "Second upsert should replace the first")
}

func TestPriceRepository_BackfillCash(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPriceRepository(db, testLogger())

	written, err := repo.BackfillCash("2025-01-01", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, 10, written, "Backfill should cover every date inclusive")

	// CASH must be priced at face on every covered date, weekends included
	for _, date := range []string{"2025-01-01", "2025-01-04", "2025-01-05", "2025-01-10"} {
		price, ok, err := repo.ExactDate(domain.CashTicker, date)
		require.NoError(t, err)
		assert.True(t, ok, "CASH price missing for %s", date)
		assert.Equal(t, 1.0, price)
	}
}

func TestPriceRepository_Series(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPriceRepository(db, testLogger())

	_, err := repo.BulkUpsert([]domain.PricePoint{
		{Ticker: "AAPL", Date: "2025-01-02", Close: 150.0},
		{Ticker: "AAPL", Date: "2025-01-03", Close: 151.0},
		{Ticker: "MSFT", Date: "2025-01-02", Close: 300.0},
		{Ticker: "MSFT", Date: "2025-02-01", Close: 310.0}, // outside range
	})
	require.NoError(t, err)

	lookup, err := repo.Series([]string{"AAPL", "MSFT"}, "2025-01-01", "2025-01-31")
	require.NoError(t, err)

	assert.Len(t, lookup["AAPL"], 2)
	assert.Len(t, lookup["MSFT"], 1)
	assert.Equal(t, 151.0, lookup["AAPL"]["2025-01-03"])
	_, present := lookup["MSFT"]["2025-02-01"]
	assert.False(t, present, "Dates outside the range should be excluded")
}

func TestDividendRepository_ListForTickers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDividendRepository(db, testLogger())

	_, err := repo.BulkUpsert([]domain.DividendEvent{
		{Ticker: "KO", ExDate: "2025-03-14", Amount: 0.485},
		{Ticker: "KO", ExDate: "2024-12-01", Amount: 0.485},
		{Ticker: "JNJ", ExDate: "2025-02-18", Amount: 1.24},
		{Ticker: "XOM", ExDate: "2025-02-12", Amount: 0.95},
	})
	require.NoError(t, err)

	events, err := repo.ListForTickers([]string{"KO", "JNJ"})
	require.NoError(t, err)
	require.Len(t, events, 3, "XOM should be excluded")

	// Ordered by ex-date ascending
	assert.Equal(t, "2024-12-01", events[0].ExDate)
	assert.Equal(t, "2025-02-18", events[1].ExDate)
	assert.Equal(t, "2025-03-14", events[2].ExDate)
	for _, ev := range events {
		assert.NotZero(t, ev.ID, "Each event carries its row id")
	}
}

func TestQuoteRepository_UpsertAndGetAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuoteRepository(db, testLogger())

	require.NoError(t, repo.Upsert("AAPL", 151.25))
	require.NoError(t, repo.Upsert("AAPL", 152.00)) // replaces
	require.NoError(t, repo.Upsert("MSFT", 305.10))

	quotes, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
	assert.Equal(t, 152.00, quotes["AAPL"])

	price, ok, err := repo.Get("MSFT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 305.10, price)

	_, ok, err = repo.Get("TSLA")
	require.NoError(t, err)
	assert.False(t, ok, "Missing ticker should not be an error")

	last, err := repo.LastUpdate()
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}
