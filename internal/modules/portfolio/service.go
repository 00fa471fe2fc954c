package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
	"github.com/inikiforov/dpk-portfolio/internal/modules/nav"
)

// RebuildResult combines the transaction log rebuild with the NAV recompute
// that follows it.
type RebuildResult struct {
	Status              string               `json:"status"`
	TransactionsCreated int                  `json:"transactions_created"`
	Nav                 *nav.RecomputeResult `json:"nav,omitempty"`
}

// Service orchestrates the write paths for each portfolio. All writers for a
// given portfolio (full rebuild, NAV recompute, incremental EOD) run under a
// per-portfolio lock; a full rebuild deletes and recreates the snapshot
// history and must never interleave with another writer.
type Service struct {
	portfolios *Repository
	builder    *ledger.Builder
	txns       *ledger.TransactionRepository
	prices     *marketdata.PriceRepository
	quotes     *marketdata.QuoteRepository
	engine     *nav.Engine
	updater    *nav.IncrementalUpdater
	quoteFeed  domain.QuoteProvider // optional, may be nil
	log        zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// NewService creates a new portfolio orchestration service
func NewService(
	portfolios *Repository,
	builder *ledger.Builder,
	txns *ledger.TransactionRepository,
	prices *marketdata.PriceRepository,
	quotes *marketdata.QuoteRepository,
	engine *nav.Engine,
	updater *nav.IncrementalUpdater,
	quoteFeed domain.QuoteProvider,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios: portfolios,
		builder:    builder,
		txns:       txns,
		prices:     prices,
		quotes:     quotes,
		engine:     engine,
		updater:    updater,
		quoteFeed:  quoteFeed,
		log:        log.With().Str("service", "portfolio").Logger(),
		locks:      make(map[string]*sync.Mutex),
		now:        time.Now,
	}
}

// lockFor returns the mutex serializing writes to one portfolio.
func (s *Service) lockFor(portfolioID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[portfolioID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[portfolioID] = lock
	}
	return lock
}

// FullRebuild rebuilds the transaction log from source records, backfills the
// CASH price series over the log's date range, and recomputes the whole NAV
// history. Runs as one serialized operation per portfolio.
func (s *Service) FullRebuild(ctx context.Context, portfolioID string) (*RebuildResult, error) {
	lock := s.lockFor(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	buildResult, err := s.builder.Build(portfolioID)
	if err != nil {
		return nil, err
	}
	if buildResult.Status != "success" {
		return &RebuildResult{Status: buildResult.Status}, nil
	}

	txns, err := s.txns.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	if len(txns) > 0 {
		from := domain.DayKey(txns[0].Date.UTC())
		to := domain.DayKey(s.now().UTC())
		if _, err := s.prices.BackfillCash(from, to); err != nil {
			return nil, err
		}
	}

	navResult, err := s.engine.Recompute(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("portfolio", portfolioID).
		Int("transactions", buildResult.TransactionsCreated).
		Str("nav_status", navResult.Status).
		Msg("Full rebuild complete")

	return &RebuildResult{
		Status:              navResult.Status,
		TransactionsCreated: buildResult.TransactionsCreated,
		Nav:                 navResult,
	}, nil
}

// RecomputeNAV reruns the NAV replay over the existing transaction log.
func (s *Service) RecomputeNAV(ctx context.Context, portfolioID string) (*nav.RecomputeResult, error) {
	lock := s.lockFor(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	return s.engine.Recompute(ctx, portfolioID)
}

// EODUpdate appends today's snapshot for one portfolio.
func (s *Service) EODUpdate(ctx context.Context, portfolioID string) (*nav.EODResult, error) {
	lock := s.lockFor(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	return s.updater.Update(ctx, portfolioID)
}

// EODUpdateAll runs the incremental update across every portfolio. One
// portfolio failing does not stop the rest.
func (s *Service) EODUpdateAll(ctx context.Context) {
	portfolios, err := s.portfolios.List()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list portfolios for EOD update")
		return
	}

	for _, p := range portfolios {
		result, err := s.EODUpdate(ctx, p.ID)
		if err != nil {
			s.log.Error().Err(err).Str("portfolio", p.ID).Msg("EOD update failed")
			continue
		}
		s.log.Info().Str("portfolio", p.ID).Str("status", result.Status).Msg("EOD update finished")
	}
}

// RefreshQuotes pulls live quotes for every ticker currently held (net
// shares above zero) across all portfolios. A no-op without a quote feed.
func (s *Service) RefreshQuotes(ctx context.Context) error {
	if s.quoteFeed == nil {
		return nil
	}

	portfolios, err := s.portfolios.List()
	if err != nil {
		return err
	}

	held := make(map[string]bool)
	for _, p := range portfolios {
		txns, err := s.txns.ListByPortfolio(p.ID)
		if err != nil {
			return err
		}
		for _, ticker := range ledger.HeldTickers(ledger.ReplayHoldings(txns)) {
			held[ticker] = true
		}
	}
	if len(held) == 0 {
		return nil
	}

	tickers := make([]string, 0, len(held))
	for t := range held {
		tickers = append(tickers, t)
	}

	prices, err := s.quoteFeed.Quotes(ctx, tickers)
	if err != nil {
		return err
	}

	for ticker, price := range prices {
		if err := s.quotes.Upsert(ticker, price); err != nil {
			return err
		}
	}

	s.log.Debug().Int("requested", len(tickers)).Int("updated", len(prices)).Msg("Live quotes refreshed")
	return nil
}
