package nav

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
)

// EODResult reports the outcome of an incremental end-of-day update.
type EODResult struct {
	Status         string           `json:"status"`
	Date           string           `json:"date,omitempty"`
	NAV            float64          `json:"nav,omitempty"`
	TotalValue     float64          `json:"total_value,omitempty"`
	TotalUnits     float64          `json:"total_units,omitempty"`
	TotalReturnPct float64          `json:"total_return_pct,omitempty"`
	Anomalies      []domain.Anomaly `json:"anomalies,omitempty"`
}

// IncrementalUpdater appends a single day's snapshot without rebuilding the
// whole history. It replays the transaction log to reconstruct holdings and
// units, but prices each external flow at the NAV of the nearest snapshot
// strictly before the flow's date rather than that day's post-trade NAV.
// When trades moved the NAV intraday on a flow date the unit count can differ
// slightly from a full recompute; the full rebuild remains authoritative.
type IncrementalUpdater struct {
	txns      *ledger.TransactionRepository
	prices    *marketdata.PriceRepository
	snapshots *SnapshotRepository
	provider  domain.PriceProvider // optional, may be nil
	calendar  domain.MarketCalendar
	log       zerolog.Logger

	now func() time.Time
}

// NewIncrementalUpdater creates a new end-of-day updater
func NewIncrementalUpdater(
	txns *ledger.TransactionRepository,
	prices *marketdata.PriceRepository,
	snapshots *SnapshotRepository,
	provider domain.PriceProvider,
	calendar domain.MarketCalendar,
	log zerolog.Logger,
) *IncrementalUpdater {
	return &IncrementalUpdater{
		txns:      txns,
		prices:    prices,
		snapshots: snapshots,
		provider:  provider,
		calendar:  calendar,
		log:       log.With().Str("component", "eod_updater").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the updater's time source. Tests pin it to fixed days.
func (u *IncrementalUpdater) SetClock(now func() time.Time) {
	u.now = now
}

// Update computes and upserts today's snapshot for one portfolio.
func (u *IncrementalUpdater) Update(ctx context.Context, portfolioID string) (*EODResult, error) {
	today := u.now()
	todayKey := domain.DayKey(today.UTC())

	if !u.calendar.IsTradingDay(today) {
		return &EODResult{Status: "not_trading_day", Date: todayKey}, nil
	}

	txns, err := u.txns.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return &EODResult{Status: "no_transactions", Date: todayKey}, nil
	}

	prior, err := u.snapshots.LastBefore(portfolioID, todayKey)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return &EODResult{Status: "no_previous_snapshot", Date: todayKey}, nil
	}

	holdings := ledger.ReplayHoldings(txns)

	if err := u.refreshCloses(ctx, holdings, today, todayKey); err != nil {
		return nil, err
	}

	history, err := u.snapshots.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}

	totalUnits := replayUnits(txns, history)

	var totalValue float64
	var anomalies []domain.Anomaly
	for ticker, shares := range holdings {
		if shares <= 0 {
			continue
		}
		price, ok, err := u.prices.LatestOnOrBefore(ticker, todayKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			anomalies = append(anomalies, domain.Anomaly{
				Kind:   domain.AnomalyMissingPrice,
				Ticker: ticker,
				Date:   todayKey,
				Detail: "no price on or before this date; position valued at zero",
			})
			continue
		}
		totalValue += shares * price
	}

	nav := domain.SeedNAV
	if totalUnits > 0 {
		nav = totalValue / totalUnits
	}

	snapshot := &domain.Snapshot{
		PortfolioID: portfolioID,
		Date:        todayKey,
		TotalValue:  totalValue,
		TotalUnits:  totalUnits,
		NAV:         nav,
		CashBalance: holdings[domain.CashTicker],
	}
	if err := u.snapshots.Upsert(snapshot); err != nil {
		return nil, err
	}

	u.log.Info().
		Str("portfolio", portfolioID).
		Str("date", todayKey).
		Float64("nav", nav).
		Float64("total_value", totalValue).
		Msg("EOD snapshot written")

	return &EODResult{
		Status:         "success",
		Date:           todayKey,
		NAV:            nav,
		TotalValue:     totalValue,
		TotalUnits:     totalUnits,
		TotalReturnPct: (nav - domain.SeedNAV) / domain.SeedNAV * 100,
		Anomalies:      anomalies,
	}, nil
}

// refreshCloses pulls today's closing prices for held tickers when a provider
// is configured, and keeps the CASH series current either way.
func (u *IncrementalUpdater) refreshCloses(ctx context.Context, holdings map[string]float64, today time.Time, todayKey string) error {
	if err := u.prices.Upsert(domain.CashTicker, todayKey, 1.0); err != nil {
		return err
	}
	if u.provider == nil {
		return nil
	}

	for _, ticker := range ledger.HeldTickers(holdings) {
		points, err := u.provider.DailyCloses(ctx, ticker, today, today)
		if err != nil {
			u.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to fetch closing price")
			continue
		}
		if _, err := u.prices.BulkUpsert(points); err != nil {
			return err
		}
	}
	return nil
}

// replayUnits reconstructs the outstanding unit count by walking every
// external flow in the log. Each flow is priced at the NAV of the nearest
// snapshot strictly before its date; with no such snapshot, or one with zero
// units or a zero NAV, the seed NAV applies.
func replayUnits(txns []domain.Transaction, history []domain.Snapshot) float64 {
	var totalUnits float64
	for _, t := range txns {
		if t.Type != domain.TxnDeposit && t.Type != domain.TxnWithdrawal {
			continue
		}
		key := domain.DayKey(t.Date)

		nav := domain.SeedNAV
		idx := sort.Search(len(history), func(i int) bool { return history[i].Date >= key })
		if idx > 0 && history[idx-1].TotalUnits > 0 && history[idx-1].NAV > 0 {
			nav = history[idx-1].NAV
		}

		switch t.Type {
		case domain.TxnDeposit:
			totalUnits += t.Amount / nav
		case domain.TxnWithdrawal:
			totalUnits -= -t.Amount / nav
		}
	}
	return totalUnits
}
