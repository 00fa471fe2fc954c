package portfolio

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
	"github.com/inikiforov/dpk-portfolio/internal/modules/market_hours"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
	"github.com/inikiforov/dpk-portfolio/internal/modules/nav"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE portfolios (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			currency TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			portfolio_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			date TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			fees REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE cash_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			portfolio_id TEXT NOT NULL,
			date TEXT NOT NULL,
			type TEXT NOT NULL,
			amount REAL NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE TABLE dividend_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL,
			ex_date TEXT NOT NULL,
			amount REAL NOT NULL,
			UNIQUE (ticker, ex_date)
		);
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

// stubQuotes records which tickers were requested
type stubQuotes struct {
	requested []string
	prices    map[string]float64
}

func (s *stubQuotes) Quotes(ctx context.Context, tickers []string) (map[string]float64, error) {
	s.requested = tickers
	return s.prices, nil
}

type testEnv struct {
	repo      *Repository
	trades    *ledger.TradeRepository
	cash      *ledger.CashRepository
	txns      *ledger.TransactionRepository
	prices    *marketdata.PriceRepository
	quotes    *marketdata.QuoteRepository
	snapshots *nav.SnapshotRepository
	feed      *stubQuotes
	service   *Service
}

func newTestEnv(t *testing.T, today string) *testEnv {
	db := setupTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)

	calendar, err := market_hours.NewCalendar("UTC")
	require.NoError(t, err)

	env := &testEnv{
		repo:      NewRepository(db, log),
		trades:    ledger.NewTradeRepository(db, log),
		cash:      ledger.NewCashRepository(db, log),
		txns:      ledger.NewTransactionRepository(db, log),
		prices:    marketdata.NewPriceRepository(db, log),
		quotes:    marketdata.NewQuoteRepository(db, log),
		snapshots: nav.NewSnapshotRepository(db, log),
		feed:      &stubQuotes{prices: map[string]float64{}},
	}

	dividends := marketdata.NewDividendRepository(db, log)
	builder := ledger.NewBuilder(env.trades, env.cash, dividends, env.txns, log)
	engine := nav.NewEngine(env.txns, env.prices, env.snapshots, log)
	updater := nav.NewIncrementalUpdater(env.txns, env.prices, env.snapshots, nil, calendar, log)

	env.service = NewService(
		env.repo, builder, env.txns, env.prices, env.quotes, engine, updater, env.feed, log,
	)

	parsed, err := time.Parse(domain.DayFormat, today)
	require.NoError(t, err)
	clock := func() time.Time { return parsed.Add(12 * time.Hour) }
	env.service.now = clock
	engine.SetClock(clock)
	updater.SetClock(clock)
	return env
}

func txnDate(t *testing.T, day string) time.Time {
	parsed, err := time.Parse(domain.DayFormat, day)
	require.NoError(t, err)
	return parsed
}

func TestRepository_CreateGetList(t *testing.T) {
	env := newTestEnv(t, "2025-01-30")

	p := &domain.Portfolio{Name: "Main"}
	require.NoError(t, env.repo.Create(p))
	assert.NotEmpty(t, p.ID, "Create assigns an ID")
	assert.Equal(t, "USD", p.Currency)

	got, err := env.repo.Get(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Main", got.Name)

	missing, err := env.repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := env.repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFullRebuild_EndToEnd(t *testing.T) {
	env := newTestEnv(t, "2025-01-15")

	p := &domain.Portfolio{Name: "Main"}
	require.NoError(t, env.repo.Create(p))

	require.NoError(t, env.cash.Create(&domain.CashMovement{
		PortfolioID: p.ID, Date: txnDate(t, "2025-01-01"),
		Type: domain.TxnDeposit, Amount: 10000,
	}))
	require.NoError(t, env.trades.Create(&domain.Trade{
		PortfolioID: p.ID, Ticker: "AAPL", Date: txnDate(t, "2025-01-02"),
		Side: domain.SideBuy, Quantity: 100, Price: 50,
	}))
	require.NoError(t, env.prices.Upsert("AAPL", "2025-01-02", 50))

	result, err := env.service.FullRebuild(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 2, result.TransactionsCreated)
	require.NotNil(t, result.Nav)
	assert.Equal(t, 15, result.Nav.DaysCalculated)
	assert.InDelta(t, 100.0, result.Nav.FinalNav, 1e-9)

	// CASH backfill covered the whole range, so cash never zero-valued.
	cashPrice, ok, err := env.prices.ExactDate(domain.CashTicker, "2025-01-15")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, cashPrice)

	count, err := env.snapshots.Count(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, count)
}

func TestFullRebuild_NoSourceRecords(t *testing.T) {
	env := newTestEnv(t, "2025-01-15")

	p := &domain.Portfolio{Name: "Empty"}
	require.NoError(t, env.repo.Create(p))

	result, err := env.service.FullRebuild(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "no_transactions", result.Status)
	assert.Equal(t, 0, result.TransactionsCreated)
}

func TestEODUpdateAll_CoversEveryPortfolio(t *testing.T) {
	// 2025-01-16 is a Thursday.
	env := newTestEnv(t, "2025-01-16")

	p1 := &domain.Portfolio{Name: "One"}
	p2 := &domain.Portfolio{Name: "Two"}
	require.NoError(t, env.repo.Create(p1))
	require.NoError(t, env.repo.Create(p2))

	for _, p := range []*domain.Portfolio{p1, p2} {
		require.NoError(t, env.cash.Create(&domain.CashMovement{
			PortfolioID: p.ID, Date: txnDate(t, "2025-01-01"),
			Type: domain.TxnDeposit, Amount: 10000,
		}))
		_, err := env.service.FullRebuild(context.Background(), p.ID)
		require.NoError(t, err)
	}

	env.service.EODUpdateAll(context.Background())

	for _, p := range []*domain.Portfolio{p1, p2} {
		latest, err := env.snapshots.Latest(p.ID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "2025-01-16", latest.Date)
	}
}

func TestRefreshQuotes_HeldTickersOnly(t *testing.T) {
	env := newTestEnv(t, "2025-01-15")

	p := &domain.Portfolio{Name: "Main"}
	require.NoError(t, env.repo.Create(p))

	require.NoError(t, env.txns.ReplaceForPortfolio(p.ID, []domain.Transaction{
		{
			PortfolioID: p.ID, Date: txnDate(t, "2025-01-01"),
			Type: domain.TxnDeposit, Amount: 10000, SourceType: domain.SourceCash,
		},
		{
			PortfolioID: p.ID, Date: txnDate(t, "2025-01-02"), Type: domain.TxnBuy,
			Ticker: "AAPL", Shares: 100, Price: 50, Amount: -5000, SourceType: domain.SourceTrade,
		},
		{
			PortfolioID: p.ID, Date: txnDate(t, "2025-01-03"), Type: domain.TxnBuy,
			Ticker: "MSFT", Shares: 10, Price: 300, Amount: -3000, SourceType: domain.SourceTrade,
		},
		{
			PortfolioID: p.ID, Date: txnDate(t, "2025-01-04"), Type: domain.TxnSell,
			Ticker: "MSFT", Shares: 10, Price: 310, Amount: 3100, SourceType: domain.SourceTrade,
		},
	}))

	env.feed.prices = map[string]float64{"AAPL": 52.5}
	require.NoError(t, env.service.RefreshQuotes(context.Background()))

	assert.Equal(t, []string{"AAPL"}, env.feed.requested, "Fully sold tickers are not refreshed")

	price, ok, err := env.quotes.Get("AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 52.5, price)
}
