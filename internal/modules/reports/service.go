// Package reports builds the read-only views over persisted NAV snapshots:
// yearly performance, chart sampling, live summaries, and NAV-series
// statistics. Everything here is derived state; the snapshot history written
// by the NAV engine stays authoritative.
package reports

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
	"github.com/inikiforov/dpk-portfolio/internal/modules/nav"
)

// tradingDaysPerYear annualizes daily NAV return volatility.
const tradingDaysPerYear = 252

// YearRow is one calendar year of unitized performance. The current year is
// marked live: its end values come from a mark-to-market estimate, not a
// persisted snapshot.
type YearRow struct {
	Year      int     `json:"year"`
	StartNav  float64 `json:"start_nav"`
	EndNav    float64 `json:"end_nav"`
	ReturnPct float64 `json:"return_pct"`
	EndValue  float64 `json:"end_value"`
	EndCash   float64 `json:"end_cash"`
	IsLive    bool    `json:"is_live"`
}

// ChartSeries carries sampled (millisecond timestamp, value) pairs for the
// performance chart. NavPct is the NAV's percentage distance from the seed.
type ChartSeries struct {
	NavPct [][2]float64 `json:"nav_pct"`
	Value  [][2]float64 `json:"value"`
}

// LiveSummary is the intraday estimate of where the portfolio stands.
type LiveSummary struct {
	Status         string  `json:"status"`
	AsOf           string  `json:"as_of,omitempty"`
	TotalValue     float64 `json:"total_value,omitempty"`
	NAV            float64 `json:"nav,omitempty"`
	TotalReturnPct float64 `json:"total_return_pct,omitempty"`
	DayChangePct   float64 `json:"day_change_pct,omitempty"`
	CashBalance    float64 `json:"cash_balance,omitempty"`
}

// Summary aggregates the snapshot history with NAV-series statistics.
type Summary struct {
	Status         string  `json:"status"`
	InceptionDate  string  `json:"inception_date,omitempty"`
	DaysTracked    int     `json:"days_tracked,omitempty"`
	TotalValue     float64 `json:"total_value,omitempty"`
	TotalUnits     float64 `json:"total_units,omitempty"`
	NAV            float64 `json:"nav,omitempty"`
	CashBalance    float64 `json:"cash_balance,omitempty"`
	TotalReturnPct float64 `json:"total_return_pct,omitempty"`
	VolatilityPct  float64 `json:"volatility_pct,omitempty"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct,omitempty"`
}

// Service builds reports for one portfolio at a time.
type Service struct {
	txns      *ledger.TransactionRepository
	prices    *marketdata.PriceRepository
	quotes    *marketdata.QuoteRepository
	snapshots *nav.SnapshotRepository
	log       zerolog.Logger

	now func() time.Time
}

// NewService creates a new reports service
func NewService(
	txns *ledger.TransactionRepository,
	prices *marketdata.PriceRepository,
	quotes *marketdata.QuoteRepository,
	snapshots *nav.SnapshotRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		txns:      txns,
		prices:    prices,
		quotes:    quotes,
		snapshots: snapshots,
		log:       log.With().Str("service", "reports").Logger(),
		now:       time.Now,
	}
}

// liveValuation marks the replayed holdings to the most recent price per
// ticker, preferring a live quote over the latest close. Units are reused
// from the last persisted snapshot instead of being recomputed, so the
// result is an estimate until the next EOD snapshot lands.
func (s *Service) liveValuation(portfolioID string) (value, cash, units float64, ok bool, err error) {
	last, err := s.snapshots.Latest(portfolioID)
	if err != nil {
		return 0, 0, 0, false, err
	}
	if last == nil || last.TotalUnits <= 0 {
		return 0, 0, 0, false, nil
	}

	txns, err := s.txns.ListByPortfolio(portfolioID)
	if err != nil {
		return 0, 0, 0, false, err
	}

	holdings := ledger.ReplayHoldings(txns)
	cash = holdings[domain.CashTicker]
	value = cash
	for ticker, shares := range holdings {
		if ticker == domain.CashTicker || shares <= 0 {
			continue
		}
		price, havePrice, err := s.quotes.Get(ticker)
		if err != nil {
			return 0, 0, 0, false, err
		}
		if !havePrice {
			price, havePrice, err = s.prices.Latest(ticker)
			if err != nil {
				return 0, 0, 0, false, err
			}
		}
		if !havePrice {
			continue
		}
		value += shares * price
	}

	return value, cash, last.TotalUnits, true, nil
}

// YearlyPerformance groups the snapshot history by calendar year. Each year's
// return chains off the prior year's closing NAV, with the seed NAV opening
// the first year. The current year is reported live.
func (s *Service) YearlyPerformance(portfolioID string) ([]YearRow, error) {
	snapshots, err := s.snapshots.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return []YearRow{}, nil
	}

	// Ascending by date, so the last seen snapshot per year is its close.
	lastOfYear := make(map[int]domain.Snapshot)
	var years []int
	for _, snap := range snapshots {
		year, err := time.Parse(domain.DayFormat, snap.Date)
		if err != nil {
			continue
		}
		y := year.Year()
		if _, seen := lastOfYear[y]; !seen {
			years = append(years, y)
		}
		lastOfYear[y] = snap
	}

	currentYear := s.now().UTC().Year()
	prevEnd := domain.SeedNAV

	rows := make([]YearRow, 0, len(years))
	for _, y := range years {
		snap := lastOfYear[y]
		row := YearRow{
			Year:     y,
			StartNav: prevEnd,
			EndNav:   snap.NAV,
			EndValue: snap.TotalValue,
			EndCash:  snap.CashBalance,
		}

		if y == currentYear {
			value, cash, units, ok, err := s.liveValuation(portfolioID)
			if err != nil {
				return nil, err
			}
			if ok {
				row.EndNav = value / units
				row.EndValue = value
				row.EndCash = cash
				row.IsLive = true
			}
		}

		if prevEnd > 0 {
			row.ReturnPct = (row.EndNav/prevEnd - 1) * 100
		}
		prevEnd = row.EndNav
		rows = append(rows, row)
	}

	return rows, nil
}

// WeeklyChartSeries samples the snapshot history at roughly weekly spacing:
// a snapshot is kept once at least seven days have passed since the previous
// kept one. The final snapshot is always included so the chart ends on the
// latest known state.
func (s *Service) WeeklyChartSeries(portfolioID string) (*ChartSeries, error) {
	snapshots, err := s.snapshots.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}

	series := &ChartSeries{NavPct: [][2]float64{}, Value: [][2]float64{}}
	if len(snapshots) == 0 {
		return series, nil
	}

	var lastKept time.Time
	sampled := make([]domain.Snapshot, 0, len(snapshots)/7+2)
	for i, snap := range snapshots {
		date, err := time.Parse(domain.DayFormat, snap.Date)
		if err != nil {
			continue
		}
		if len(sampled) == 0 || date.Sub(lastKept) >= 7*24*time.Hour || i == len(snapshots)-1 {
			sampled = append(sampled, snap)
			lastKept = date
		}
	}

	for _, snap := range sampled {
		date, _ := time.Parse(domain.DayFormat, snap.Date)
		ts := float64(date.UnixMilli())
		series.NavPct = append(series.NavPct, [2]float64{ts, snap.NAV - domain.SeedNAV})
		series.Value = append(series.Value, [2]float64{ts, snap.TotalValue})
	}

	return series, nil
}

// LiveSummary reports the live NAV estimate plus the day-over-day change
// against the last snapshot persisted before today.
func (s *Service) LiveSummary(portfolioID string) (*LiveSummary, error) {
	value, cash, units, ok, err := s.liveValuation(portfolioID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &LiveSummary{Status: "no_data"}, nil
	}

	liveNav := value / units
	summary := &LiveSummary{
		Status:         "success",
		AsOf:           domain.DayKey(s.now().UTC()),
		TotalValue:     value,
		NAV:            liveNav,
		TotalReturnPct: (liveNav - domain.SeedNAV) / domain.SeedNAV * 100,
		CashBalance:    cash,
	}

	prior, err := s.snapshots.LastBefore(portfolioID, summary.AsOf)
	if err != nil {
		return nil, err
	}
	if prior != nil && prior.NAV > 0 {
		summary.DayChangePct = (liveNav/prior.NAV - 1) * 100
	}

	return summary, nil
}

// PortfolioSummary aggregates the persisted history: where the portfolio
// stands, how long it has been tracked, and how rough the ride was.
// Volatility is the annualized standard deviation of daily NAV returns;
// max drawdown is the worst peak-to-trough NAV decline.
func (s *Service) PortfolioSummary(portfolioID string) (*Summary, error) {
	snapshots, err := s.snapshots.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return &Summary{Status: "no_data"}, nil
	}

	last := snapshots[len(snapshots)-1]
	summary := &Summary{
		Status:         "success",
		InceptionDate:  snapshots[0].Date,
		DaysTracked:    len(snapshots),
		TotalValue:     last.TotalValue,
		TotalUnits:     last.TotalUnits,
		NAV:            last.NAV,
		CashBalance:    last.CashBalance,
		TotalReturnPct: (last.NAV - domain.SeedNAV) / domain.SeedNAV * 100,
	}

	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		if snapshots[i-1].NAV > 0 {
			returns = append(returns, snapshots[i].NAV/snapshots[i-1].NAV-1)
		}
	}
	if len(returns) > 1 {
		summary.VolatilityPct = stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear) * 100
	}

	peak := snapshots[0].NAV
	var maxDrawdown float64
	for _, snap := range snapshots {
		if snap.NAV > peak {
			peak = snap.NAV
		}
		if peak > 0 {
			if dd := snap.NAV/peak - 1; dd < maxDrawdown {
				maxDrawdown = dd
			}
		}
	}
	summary.MaxDrawdownPct = maxDrawdown * 100

	return summary, nil
}
