// Package costbasis implements the FIFO cost-basis ledger: per-ticker lot
// queues replayed from the transaction log, feeding the current-holdings and
// closed-positions reports. The replay is independent of the NAV engine and
// runs fresh on every query.
package costbasis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
)

// lot is one acquisition in a ticker's FIFO queue. Cost per share includes
// the buy's commission.
type lot struct {
	shares       float64
	costPerShare float64
	date         string
}

// closedAccum aggregates FIFO consumption per ticker across all sells.
type closedAccum struct {
	sharesSold float64
	proceeds   float64
	cost       float64
	firstBuy   string
	lastSell   string
}

// Ledger replays the transaction log through per-ticker FIFO lot queues.
type Ledger struct {
	txns     *ledger.TransactionRepository
	prices   *marketdata.PriceRepository
	quotes   *marketdata.QuoteRepository
	calendar domain.MarketCalendar
	log      zerolog.Logger

	now func() time.Time
}

// NewLedger creates a new FIFO cost-basis ledger
func NewLedger(
	txns *ledger.TransactionRepository,
	prices *marketdata.PriceRepository,
	quotes *marketdata.QuoteRepository,
	calendar domain.MarketCalendar,
	log zerolog.Logger,
) *Ledger {
	return &Ledger{
		txns:     txns,
		prices:   prices,
		quotes:   quotes,
		calendar: calendar,
		log:      log.With().Str("component", "costbasis").Logger(),
		now:      time.Now,
	}
}

// replay walks the transaction log once, consuming sells from the front of
// each ticker's lot queue. A sell exceeding the tracked lots is truncated
// rather than going short, and recorded as an anomaly.
func (l *Ledger) replay(txns []domain.Transaction) (map[string][]lot, map[string]*closedAccum, []domain.Anomaly) {
	lots := make(map[string][]lot)
	closed := make(map[string]*closedAccum)
	var anomalies []domain.Anomaly

	for _, t := range txns {
		switch t.Type {
		case domain.TxnBuy:
			if t.Shares <= 0 {
				continue
			}
			lots[t.Ticker] = append(lots[t.Ticker], lot{
				shares:       t.Shares,
				costPerShare: math.Abs(t.Amount) / t.Shares,
				date:         domain.DayKey(t.Date),
			})

		case domain.TxnSell:
			if t.Shares <= 0 {
				continue
			}
			perShareProceeds := t.Amount / t.Shares

			acc := closed[t.Ticker]
			if acc == nil {
				acc = &closedAccum{}
				closed[t.Ticker] = acc
			}
			acc.lastSell = domain.DayKey(t.Date)

			remaining := t.Shares
			queue := lots[t.Ticker]
			for remaining > 0 && len(queue) > 0 {
				front := &queue[0]
				matched := front.shares
				if matched > remaining {
					matched = remaining
				}

				if acc.firstBuy == "" {
					acc.firstBuy = front.date
				}
				acc.sharesSold += matched
				acc.cost += matched * front.costPerShare
				acc.proceeds += matched * perShareProceeds

				front.shares -= matched
				remaining -= matched
				if front.shares <= 0 {
					queue = queue[1:]
				}
			}
			lots[t.Ticker] = queue

			if remaining > 0 {
				anomalies = append(anomalies, domain.Anomaly{
					Kind:   domain.AnomalyOversell,
					Ticker: t.Ticker,
					Date:   domain.DayKey(t.Date),
					Detail: fmt.Sprintf("sell of %.4f exceeded tracked lots by %.4f; excess dropped", t.Shares, remaining),
				})
			}
		}
	}

	return lots, closed, anomalies
}

// CurrentHoldings reports every ticker with at least one remaining lot,
// valued at the current price and sorted by value descending. Cash is not a
// holding here; it is tracked by the NAV snapshots.
func (l *Ledger) CurrentHoldings(portfolioID string) ([]domain.Holding, []domain.Anomaly, error) {
	txns, err := l.txns.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, nil, err
	}

	lots, _, anomalies := l.replay(txns)
	todayKey := domain.DayKey(l.now().UTC())

	var holdings []domain.Holding
	var totalValue float64
	for ticker, queue := range lots {
		var shares, cost float64
		for _, lt := range queue {
			shares += lt.shares
			cost += lt.shares * lt.costPerShare
		}
		if shares <= 0 {
			continue
		}

		price, ok, err := l.currentPrice(ticker, todayKey)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			anomalies = append(anomalies, domain.Anomaly{
				Kind:   domain.AnomalyMissingPrice,
				Ticker: ticker,
				Date:   todayKey,
				Detail: "no price or quote available; position valued at zero",
			})
		}

		value := shares * price
		h := domain.Holding{
			Ticker:        ticker,
			Shares:        shares,
			AvgCost:       cost / shares,
			CurrentPrice:  price,
			CurrentValue:  value,
			TotalCost:     cost,
			UnrealizedPnl: value - cost,
		}
		if cost > 0 {
			h.UnrealizedPnlPct = (value - cost) / cost * 100
		}
		holdings = append(holdings, h)
		totalValue += value
	}

	if totalValue > 0 {
		for i := range holdings {
			holdings[i].WeightPct = holdings[i].CurrentValue / totalValue * 100
		}
	}

	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].CurrentValue != holdings[j].CurrentValue {
			return holdings[i].CurrentValue > holdings[j].CurrentValue
		}
		return holdings[i].Ticker < holdings[j].Ticker
	})

	return holdings, anomalies, nil
}

// ClosedPositions reports realized P&L aggregated per ticker from FIFO lot
// consumption, sorted by last sell date descending.
func (l *Ledger) ClosedPositions(portfolioID string) ([]domain.ClosedPosition, error) {
	txns, err := l.txns.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}

	lots, closed, _ := l.replay(txns)

	var positions []domain.ClosedPosition
	for ticker, acc := range closed {
		if acc.sharesSold <= 0 {
			continue
		}

		var remaining float64
		for _, lt := range lots[ticker] {
			remaining += lt.shares
		}

		p := domain.ClosedPosition{
			Ticker:        ticker,
			SharesSold:    acc.sharesSold,
			TotalProceeds: acc.proceeds,
			TotalCost:     acc.cost,
			RealizedPnl:   acc.proceeds - acc.cost,
			FirstBuy:      acc.firstBuy,
			LastSell:      acc.lastSell,
			HoldingDays:   daysBetween(acc.firstBuy, acc.lastSell),
			FullyClosed:   remaining <= domain.ClosedPositionEpsilon,
		}
		if acc.cost > 0 {
			p.RealizedPnlPct = (acc.proceeds - acc.cost) / acc.cost * 100
		}
		positions = append(positions, p)
	}

	sort.Slice(positions, func(i, j int) bool {
		if positions[i].LastSell != positions[j].LastSell {
			return positions[i].LastSell > positions[j].LastSell
		}
		return positions[i].Ticker < positions[j].Ticker
	})

	return positions, nil
}

// currentPrice picks the valuation price for a holding. While the market is
// open a live quote beats the latest close; while closed the latest close
// beats a possibly stale quote.
func (l *Ledger) currentPrice(ticker, todayKey string) (float64, bool, error) {
	quote, haveQuote, err := l.quotes.Get(ticker)
	if err != nil {
		return 0, false, err
	}
	close, haveClose, err := l.prices.LatestOnOrBefore(ticker, todayKey)
	if err != nil {
		return 0, false, err
	}

	if l.calendar.IsMarketOpen(l.now()) {
		if haveQuote {
			return quote, true, nil
		}
		return close, haveClose, nil
	}
	if haveClose {
		return close, true, nil
	}
	return quote, haveQuote, nil
}

func daysBetween(from, to string) int {
	start, err := time.Parse(domain.DayFormat, from)
	if err != nil {
		return 0
	}
	end, err := time.Parse(domain.DayFormat, to)
	if err != nil {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}
