package reports

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
	"github.com/inikiforov/dpk-portfolio/internal/modules/nav"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE transaction_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			portfolio_id TEXT NOT NULL,
			date TEXT NOT NULL,
			type TEXT NOT NULL,
			ticker TEXT,
			shares REAL,
			price REAL,
			amount REAL NOT NULL,
			commission REAL NOT NULL DEFAULT 0,
			source_type TEXT NOT NULL,
			source_id INTEGER NOT NULL
		);
		CREATE TABLE price_history (
			ticker TEXT NOT NULL,
			date TEXT NOT NULL,
			close_price REAL NOT NULL,
			PRIMARY KEY (ticker, date)
		);
		CREATE TABLE live_quotes (
			ticker TEXT PRIMARY KEY,
			price REAL NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE daily_snapshots (
			portfolio_id TEXT NOT NULL,
			date TEXT NOT NULL,
			total_value REAL NOT NULL,
			total_units REAL NOT NULL,
			nav REAL NOT NULL,
			cash_balance REAL NOT NULL,
			PRIMARY KEY (portfolio_id, date)
		);
	`)
	require.NoError(t, err)

	return db
}

type testEnv struct {
	txns      *ledger.TransactionRepository
	prices    *marketdata.PriceRepository
	quotes    *marketdata.QuoteRepository
	snapshots *nav.SnapshotRepository
	service   *Service
}

func newTestEnv(t *testing.T, today string) *testEnv {
	db := setupTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)

	env := &testEnv{
		txns:      ledger.NewTransactionRepository(db, log),
		prices:    marketdata.NewPriceRepository(db, log),
		quotes:    marketdata.NewQuoteRepository(db, log),
		snapshots: nav.NewSnapshotRepository(db, log),
	}
	env.service = NewService(env.txns, env.prices, env.quotes, env.snapshots, log)

	parsed, err := time.Parse(domain.DayFormat, today)
	require.NoError(t, err)
	env.service.now = func() time.Time { return parsed.Add(12 * time.Hour) }
	return env
}

func snap(date string, value, units, navValue, cash float64) domain.Snapshot {
	return domain.Snapshot{
		PortfolioID: "p1", Date: date,
		TotalValue: value, TotalUnits: units, NAV: navValue, CashBalance: cash,
	}
}

func TestYearlyPerformance_ChainsPriorYearEnd(t *testing.T) {
	env := newTestEnv(t, "2026-06-15")

	require.NoError(t, env.snapshots.ReplaceForPortfolio("p1", []domain.Snapshot{
		snap("2023-06-01", 10000, 100, 100, 10000),
		snap("2023-12-29", 11000, 100, 110, 1000),
		snap("2024-12-31", 12650, 100, 126.5, 1200),
		snap("2025-12-30", 12650, 100, 126.5, 1200),
	}))

	rows, err := env.service.YearlyPerformance("p1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 2023, rows[0].Year)
	assert.InDelta(t, 100.0, rows[0].StartNav, 1e-9, "First year opens at the seed NAV")
	assert.InDelta(t, 110.0, rows[0].EndNav, 1e-9)
	assert.InDelta(t, 10.0, rows[0].ReturnPct, 1e-9)

	assert.Equal(t, 2024, rows[1].Year)
	assert.InDelta(t, 110.0, rows[1].StartNav, 1e-9, "Each year opens at the prior year's close")
	assert.InDelta(t, 15.0, rows[1].ReturnPct, 1e-9)

	assert.Equal(t, 2025, rows[2].Year)
	assert.InDelta(t, 0.0, rows[2].ReturnPct, 1e-9)
	assert.False(t, rows[2].IsLive)
}

func TestYearlyPerformance_CurrentYearIsLive(t *testing.T) {
	env := newTestEnv(t, "2025-06-16")

	require.NoError(t, env.snapshots.ReplaceForPortfolio("p1", []domain.Snapshot{
		snap("2024-12-31", 11000, 100, 110, 500),
		snap("2025-06-13", 11000, 100, 110, 500),
	}))
	require.NoError(t, env.txns.ReplaceForPortfolio("p1", []domain.Transaction{
		{
			PortfolioID: "p1", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Type: domain.TxnDeposit, Amount: 10000, SourceType: domain.SourceCash,
		},
		{
			PortfolioID: "p1", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Type: domain.TxnBuy, Ticker: "AAPL", Shares: 100, Price: 95,
			Amount: -9500, SourceType: domain.SourceTrade,
		},
	}))
	// A fresh quote above the last close moves the live estimate.
	require.NoError(t, env.quotes.Upsert("AAPL", 120))

	rows, err := env.service.YearlyPerformance("p1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	current := rows[1]
	assert.True(t, current.IsLive)
	// 500 cash + 100 shares at the 120 quote over the persisted 100 units.
	assert.InDelta(t, 12500.0, current.EndValue, 1e-9)
	assert.InDelta(t, 125.0, current.EndNav, 1e-9)
	assert.InDelta(t, (125.0/110.0-1)*100, current.ReturnPct, 1e-9)
}

func TestWeeklyChartSeries_SamplingAndTail(t *testing.T) {
	env := newTestEnv(t, "2025-02-01")

	// Daily snapshots over 17 days: sampling keeps day 1, 8, 15, then the
	// final day 17 must be force-included despite the short gap.
	var snapshots []domain.Snapshot
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 17; i++ {
		d := start.AddDate(0, 0, i)
		snapshots = append(snapshots, snap(domain.DayKey(d), 10000+float64(i), 100, 100+float64(i)/100, 0))
	}
	require.NoError(t, env.snapshots.ReplaceForPortfolio("p1", snapshots))

	series, err := env.service.WeeklyChartSeries("p1")
	require.NoError(t, err)
	require.Len(t, series.NavPct, 4)
	require.Len(t, series.Value, 4)

	lastTs := float64(time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC).UnixMilli())
	assert.Equal(t, lastTs, series.NavPct[3][0], "Final snapshot always included")
	assert.InDelta(t, 0.16, series.NavPct[3][1], 1e-9, "Chart carries NAV distance from seed, not raw NAV")
	assert.InDelta(t, 10016.0, series.Value[3][1], 1e-9)
}

func TestWeeklyChartSeries_Empty(t *testing.T) {
	env := newTestEnv(t, "2025-02-01")

	series, err := env.service.WeeklyChartSeries("p1")
	require.NoError(t, err)
	assert.Empty(t, series.NavPct)
	assert.Empty(t, series.Value)
}

func TestLiveSummary_DayChange(t *testing.T) {
	env := newTestEnv(t, "2025-06-16")

	require.NoError(t, env.snapshots.ReplaceForPortfolio("p1", []domain.Snapshot{
		snap("2025-06-13", 10000, 100, 100, 10000),
	}))
	require.NoError(t, env.txns.ReplaceForPortfolio("p1", []domain.Transaction{
		{
			PortfolioID: "p1", Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			Type: domain.TxnDeposit, Amount: 10000, SourceType: domain.SourceCash,
		},
		{
			PortfolioID: "p1", Date: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			Type: domain.TxnBuy, Ticker: "AAPL", Shares: 100, Price: 100,
			Amount: -10000, SourceType: domain.SourceTrade,
		},
	}))
	require.NoError(t, env.quotes.Upsert("AAPL", 102))

	summary, err := env.service.LiveSummary("p1")
	require.NoError(t, err)

	assert.Equal(t, "success", summary.Status)
	assert.InDelta(t, 10200.0, summary.TotalValue, 1e-9)
	assert.InDelta(t, 102.0, summary.NAV, 1e-9)
	assert.InDelta(t, 2.0, summary.TotalReturnPct, 1e-9)
	assert.InDelta(t, 2.0, summary.DayChangePct, 1e-9)
}

func TestLiveSummary_OversoldPositionExcluded(t *testing.T) {
	env := newTestEnv(t, "2025-06-16")

	require.NoError(t, env.snapshots.ReplaceForPortfolio("p1", []domain.Snapshot{
		snap("2025-06-13", 10000, 100, 100, 10000),
	}))
	// Selling more than was bought leaves -100 shares of AAPL; the live
	// valuation must not price the negative position.
	require.NoError(t, env.txns.ReplaceForPortfolio("p1", []domain.Transaction{
		{
			PortfolioID: "p1", Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			Type: domain.TxnDeposit, Amount: 10000, SourceType: domain.SourceCash,
		},
		{
			PortfolioID: "p1", Date: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			Type: domain.TxnBuy, Ticker: "AAPL", Shares: 100, Price: 50,
			Amount: -5000, SourceType: domain.SourceTrade,
		},
		{
			PortfolioID: "p1", Date: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			Type: domain.TxnSell, Ticker: "AAPL", Shares: 200, Price: 50,
			Amount: 10000, SourceType: domain.SourceTrade,
		},
	}))
	require.NoError(t, env.quotes.Upsert("AAPL", 60))

	summary, err := env.service.LiveSummary("p1")
	require.NoError(t, err)

	assert.Equal(t, "success", summary.Status)
	assert.InDelta(t, 15000.0, summary.TotalValue, 1e-9, "cash only; -100 shares contribute nothing")
	assert.InDelta(t, 150.0, summary.NAV, 1e-9)
}

func TestLiveSummary_NoData(t *testing.T) {
	env := newTestEnv(t, "2025-06-16")

	summary, err := env.service.LiveSummary("p1")
	require.NoError(t, err)
	assert.Equal(t, "no_data", summary.Status)
}

func TestPortfolioSummary_Statistics(t *testing.T) {
	env := newTestEnv(t, "2025-06-16")

	require.NoError(t, env.snapshots.ReplaceForPortfolio("p1", []domain.Snapshot{
		snap("2025-01-01", 10000, 100, 100, 0),
		snap("2025-01-02", 11000, 100, 110, 0),
		snap("2025-01-03", 9900, 100, 99, 0),
		snap("2025-01-04", 10450, 100, 104.5, 0),
	}))

	summary, err := env.service.PortfolioSummary("p1")
	require.NoError(t, err)

	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, "2025-01-01", summary.InceptionDate)
	assert.Equal(t, 4, summary.DaysTracked)
	assert.InDelta(t, 4.5, summary.TotalReturnPct, 1e-9)
	assert.Greater(t, summary.VolatilityPct, 0.0)
	// Worst decline is the 110 -> 99 drop.
	assert.InDelta(t, -10.0, summary.MaxDrawdownPct, 1e-9)
}

func TestPortfolioSummary_NoData(t *testing.T) {
	env := newTestEnv(t, "2025-06-16")

	summary, err := env.service.PortfolioSummary("p1")
	require.NoError(t, err)
	assert.Equal(t, "no_data", summary.Status)
}
