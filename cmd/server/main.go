// Command server runs the portfolio NAV engine: HTTP API, background quote
// refresh, and the end-of-day snapshot job.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/inikiforov/dpk-portfolio/internal/config"
	"github.com/inikiforov/dpk-portfolio/internal/database"
	"github.com/inikiforov/dpk-portfolio/internal/modules/costbasis"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
	ledgerhandlers "github.com/inikiforov/dpk-portfolio/internal/modules/ledger/handlers"
	"github.com/inikiforov/dpk-portfolio/internal/modules/market_hours"
	markethandlers "github.com/inikiforov/dpk-portfolio/internal/modules/market_hours/handlers"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
	marketdatahandlers "github.com/inikiforov/dpk-portfolio/internal/modules/marketdata/handlers"
	"github.com/inikiforov/dpk-portfolio/internal/modules/nav"
	"github.com/inikiforov/dpk-portfolio/internal/modules/portfolio"
	portfoliohandlers "github.com/inikiforov/dpk-portfolio/internal/modules/portfolio/handlers"
	"github.com/inikiforov/dpk-portfolio/internal/modules/reports"
	reporthandlers "github.com/inikiforov/dpk-portfolio/internal/modules/reports/handlers"
	"github.com/inikiforov/dpk-portfolio/internal/scheduler"
	"github.com/inikiforov/dpk-portfolio/internal/server"
	"github.com/inikiforov/dpk-portfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	calendar, err := market_hours.NewCalendar(cfg.MarketTimezone)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load market timezone")
	}

	conn := db.Conn()

	// Repositories
	portfolioRepo := portfolio.NewRepository(conn, log)
	tradeRepo := ledger.NewTradeRepository(conn, log)
	cashRepo := ledger.NewCashRepository(conn, log)
	txnRepo := ledger.NewTransactionRepository(conn, log)
	priceRepo := marketdata.NewPriceRepository(conn, log)
	dividendRepo := marketdata.NewDividendRepository(conn, log)
	quoteRepo := marketdata.NewQuoteRepository(conn, log)
	snapshotRepo := nav.NewSnapshotRepository(conn, log)

	// Engine and services. Prices, dividends, and quotes arrive through the
	// /market ingestion endpoints; no pull adapters are wired here, so the
	// engine serves whatever series have been pushed.
	builder := ledger.NewBuilder(tradeRepo, cashRepo, dividendRepo, txnRepo, log)
	engine := nav.NewEngine(txnRepo, priceRepo, snapshotRepo, log)
	updater := nav.NewIncrementalUpdater(txnRepo, priceRepo, snapshotRepo, nil, calendar, log)
	lots := costbasis.NewLedger(txnRepo, priceRepo, quoteRepo, calendar, log)
	reportSvc := reports.NewService(txnRepo, priceRepo, quoteRepo, snapshotRepo, log)
	portfolioSvc := portfolio.NewService(
		portfolioRepo, builder, txnRepo, priceRepo, quoteRepo, engine, updater, nil, log,
	)

	// Background jobs
	sched := scheduler.New(calendar.Location(), log)
	if err := sched.AddJob(scheduler.QuoteSchedule(cfg), scheduler.NewQuoteRefreshJob(portfolioSvc, calendar)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register quote refresh job")
	}
	if err := sched.AddJob(scheduler.EODSchedule(cfg), scheduler.NewEODJob(portfolioSvc)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register EOD job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Config:             cfg,
		Log:                log,
		PortfolioDB:        db,
		PortfolioHandlers:  portfoliohandlers.NewHandler(portfolioRepo, portfolioSvc, log),
		LedgerHandlers:     ledgerhandlers.NewHandler(tradeRepo, cashRepo, txnRepo, log),
		ReportHandlers:     reporthandlers.NewHandler(reportSvc, lots, log),
		MarketHandlers:     markethandlers.NewHandler(calendar, log),
		MarketDataHandlers: marketdatahandlers.NewHandler(priceRepo, dividendRepo, quoteRepo, log),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
