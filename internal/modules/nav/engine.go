package nav

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
)

// seriesFloor is the lower bound used when loading the full price series for
// a recompute. Prices dated before the first transaction still participate in
// stale-price carry-forward.
const seriesFloor = "0001-01-01"

// RecomputeResult reports the outcome of a full NAV history rebuild.
type RecomputeResult struct {
	Status         string           `json:"status"`
	DaysCalculated int              `json:"days_calculated"`
	FirstDate      string           `json:"first_date,omitempty"`
	LastDate       string           `json:"last_date,omitempty"`
	FinalNav       float64          `json:"final_nav,omitempty"`
	TotalReturnPct float64          `json:"total_return_pct,omitempty"`
	Anomalies      []domain.Anomaly `json:"anomalies,omitempty"`
}

// Engine rebuilds a portfolio's full daily NAV history from its transaction
// log. The rebuild is destructive: the snapshot series is replaced wholesale,
// and only after the entire replay has finished.
type Engine struct {
	txns      *ledger.TransactionRepository
	prices    *marketdata.PriceRepository
	snapshots *SnapshotRepository
	log       zerolog.Logger

	now func() time.Time
}

// NewEngine creates a new NAV engine
func NewEngine(
	txns *ledger.TransactionRepository,
	prices *marketdata.PriceRepository,
	snapshots *SnapshotRepository,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		txns:      txns,
		prices:    prices,
		snapshots: snapshots,
		log:       log.With().Str("component", "nav_engine").Logger(),
		now:       time.Now,
	}
}

// SetClock overrides the engine's time source. Tests pin it to fixed days.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Recompute replays the whole transaction log day by day from the first
// transaction through today and replaces the portfolio's snapshot history.
//
// Each day runs the same sequence: credit dividends, settle trades, mark the
// portfolio to market, update the NAV, then process external flows at that
// post-trade NAV. Deposits mint units and withdrawals redeem them, so the NAV
// series measures performance independent of flow timing. Days with zero
// units outstanding produce no snapshot.
func (e *Engine) Recompute(ctx context.Context, portfolioID string) (*RecomputeResult, error) {
	txns, err := e.txns.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return &RecomputeResult{Status: "no_transactions"}, nil
	}

	byDay := make(map[string][]domain.Transaction)
	tickerSet := map[string]bool{domain.CashTicker: true}
	for _, t := range txns {
		key := domain.DayKey(t.Date)
		byDay[key] = append(byDay[key], t)
		if t.Ticker != "" {
			tickerSet[t.Ticker] = true
		}
	}

	tickers := make([]string, 0, len(tickerSet))
	for t := range tickerSet {
		tickers = append(tickers, t)
	}

	firstDay := txns[0].Date.UTC().Truncate(24 * time.Hour)
	lastDay := e.now().UTC().Truncate(24 * time.Hour)
	startKey := domain.DayKey(firstDay)

	series, err := e.prices.Series(tickers, seriesFloor, domain.DayKey(lastDay))
	if err != nil {
		return nil, err
	}

	// Prime carry-forward with the last price known before the window opens.
	lastPrice := make(map[string]float64, len(tickers))
	havePrice := make(map[string]bool, len(tickers))
	for ticker, byDate := range series {
		best := ""
		for date := range byDate {
			if date < startKey && date > best {
				best = date
			}
		}
		if best != "" {
			lastPrice[ticker] = byDate[best]
			havePrice[ticker] = true
		}
	}

	holdings := map[string]float64{domain.CashTicker: 0}
	var totalUnits float64
	nav := domain.SeedNAV
	var anomalies []domain.Anomaly
	var snapshots []domain.Snapshot
	days := 0

	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := domain.DayKey(day)
		days++

		for ticker := range tickerSet {
			if price, ok := series[ticker][key]; ok {
				lastPrice[ticker] = price
				havePrice[ticker] = true
			}
		}

		dayTxns := byDay[key]

		// Step 1: dividends credit cash before anything else trades.
		for _, t := range dayTxns {
			if t.Type == domain.TxnDividend {
				holdings[domain.CashTicker] += t.Amount
			}
		}

		// Step 2: trades settle. Amounts are already signed, so cash moves
		// by the amount directly and shares by the trade side.
		for _, t := range dayTxns {
			switch t.Type {
			case domain.TxnBuy:
				holdings[domain.CashTicker] += t.Amount
				holdings[t.Ticker] += t.Shares
			case domain.TxnSell:
				holdings[domain.CashTicker] += t.Amount
				holdings[t.Ticker] -= t.Shares
			}
		}

		// Step 3: mark to market. A missing price zero-values the position
		// for the day and is recorded as a data gap.
		var totalValue float64
		for ticker, shares := range holdings {
			if shares == 0 {
				continue
			}
			if !havePrice[ticker] {
				anomalies = append(anomalies, domain.Anomaly{
					Kind:   domain.AnomalyMissingPrice,
					Ticker: ticker,
					Date:   key,
					Detail: "no price on or before this date; position valued at zero",
				})
				continue
			}
			totalValue += shares * lastPrice[ticker]
		}

		// Step 4: NAV reflects the day's performance before external flows.
		// With no units outstanding there is no unit value to measure; the
		// NAV carries over (seed 100.0 until the first deposit).
		if totalUnits > 0 {
			nav = totalValue / totalUnits
		}

		// Step 5: external flows mint or redeem units at the post-trade NAV.
		for _, t := range dayTxns {
			switch t.Type {
			case domain.TxnDeposit:
				if nav <= 0 {
					nav = domain.SeedNAV
				}
				totalUnits += t.Amount / nav
				holdings[domain.CashTicker] += t.Amount
				totalValue += t.Amount
			case domain.TxnWithdrawal:
				// Cash always leaves; units are redeemed only at a
				// positive NAV.
				if nav > 0 {
					totalUnits -= -t.Amount / nav
				}
				holdings[domain.CashTicker] += t.Amount
				totalValue += t.Amount
				if totalUnits < 0 {
					anomalies = append(anomalies, domain.Anomaly{
						Kind:   domain.AnomalyNegativeUnits,
						Date:   key,
						Detail: fmt.Sprintf("units went negative (%.6f) after withdrawal", totalUnits),
					})
				}
			}
		}

		// Step 6: persist only when units are outstanding.
		if totalUnits > 0 {
			snapshots = append(snapshots, domain.Snapshot{
				PortfolioID: portfolioID,
				Date:        key,
				TotalValue:  totalValue,
				TotalUnits:  totalUnits,
				NAV:         nav,
				CashBalance: holdings[domain.CashTicker],
			})
		}
	}

	if err := e.snapshots.ReplaceForPortfolio(portfolioID, snapshots); err != nil {
		return nil, err
	}

	result := &RecomputeResult{
		Status:         "success",
		DaysCalculated: days,
		FirstDate:      startKey,
		LastDate:       domain.DayKey(lastDay),
		FinalNav:       nav,
		TotalReturnPct: (nav - domain.SeedNAV) / domain.SeedNAV * 100,
		Anomalies:      anomalies,
	}

	e.log.Info().
		Str("portfolio", portfolioID).
		Int("days", days).
		Int("snapshots", len(snapshots)).
		Int("anomalies", len(anomalies)).
		Float64("final_nav", nav).
		Msg("NAV history recomputed")

	return result, nil
}
