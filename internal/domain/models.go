// Package domain contains the core data structures for portfolio performance
// tracking. The domain layer is pure: no database, HTTP, or provider
// dependencies.
package domain

import "time"

// CashTicker is the synthetic ticker used for cash holdings. Its price is
// defined as 1.0 for every date covered by transactions.
const CashTicker = "CASH"

// SeedNAV is the unit value before the first deposit. A deposit into an empty
// portfolio mints units at this price.
const SeedNAV = 100.0

// ClosedPositionEpsilon is the residual share count below which a position
// counts as fully closed.
const ClosedPositionEpsilon = 0.01

// DayFormat is the canonical YYYY-MM-DD layout for date-indexed series.
const DayFormat = "2006-01-02"

// DayKey normalizes a timestamp to its YYYY-MM-DD date key.
func DayKey(t time.Time) string {
	return t.Format(DayFormat)
}

// Transaction types in the unified transaction log.
const (
	TxnDeposit    = "DEPOSIT"
	TxnWithdrawal = "WITHDRAWAL"
	TxnBuy        = "BUY"
	TxnSell       = "SELL"
	TxnDividend   = "DIVIDEND"
)

// Trade sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Provenance of transaction log entries.
const (
	SourceTrade    = "trade"
	SourceCash     = "cash_transaction"
	SourceDividend = "dividend"
)

// Portfolio is an independent unit of tracked state.
type Portfolio struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// Trade is a raw buy or sell of a security.
type Trade struct {
	ID          int64     `json:"id"`
	PortfolioID string    `json:"portfolio_id"`
	Ticker      string    `json:"ticker"`
	Date        time.Time `json:"date"`
	Side        string    `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Fees        float64   `json:"fees"`
}

// CashMovement is an external deposit or withdrawal.
type CashMovement struct {
	ID          int64     `json:"id"`
	PortfolioID string    `json:"portfolio_id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"` // DEPOSIT or WITHDRAWAL
	Amount      float64   `json:"amount"`
	Note        string    `json:"note"`
}

// DividendEvent is one per-share dividend payment on its ex-dividend date.
type DividendEvent struct {
	ID     int64   `json:"id"`
	Ticker string  `json:"ticker"`
	ExDate string  `json:"ex_date"` // YYYY-MM-DD
	Amount float64 `json:"amount"`  // per share
}

// PricePoint is one closing price for a ticker on a date.
type PricePoint struct {
	Ticker string  `json:"ticker"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Close  float64 `json:"close"`
}

// LiveQuote is the latest intraday price for a ticker. Display-only; never
// written into daily snapshots until the EOD update runs.
type LiveQuote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is one entry in the unified, signed-cash transaction log.
// Immutable once created; the full set for a portfolio is replaced wholesale
// on rebuild.
type Transaction struct {
	ID          int64     `json:"id"`
	PortfolioID string    `json:"portfolio_id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Ticker      string    `json:"ticker,omitempty"` // empty for cash-only types
	Shares      float64   `json:"shares,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Amount      float64   `json:"amount"` // signed cash effect
	Commission  float64   `json:"commission"`
	SourceType  string    `json:"source_type"`
	SourceID    int64     `json:"source_id"`
}

// Snapshot is one day's persisted NAV record, the authoritative performance
// history used by all reporting.
type Snapshot struct {
	PortfolioID string  `json:"portfolio_id"`
	Date        string  `json:"date"` // YYYY-MM-DD
	TotalValue  float64 `json:"total_value"`
	TotalUnits  float64 `json:"total_units"`
	NAV         float64 `json:"nav"`
	CashBalance float64 `json:"cash_balance"`
}

// Holding is one row of the current-holdings report.
type Holding struct {
	Ticker           string  `json:"ticker"`
	Shares           float64 `json:"shares"`
	AvgCost          float64 `json:"avg_cost"`
	CurrentPrice     float64 `json:"current_price"`
	CurrentValue     float64 `json:"current_value"`
	TotalCost        float64 `json:"total_cost"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	UnrealizedPnlPct float64 `json:"unrealized_pnl_pct"`
	WeightPct        float64 `json:"weight_pct"`
}

// ClosedPosition is one row of the realized P&L report, aggregated per ticker
// from FIFO lot consumption.
type ClosedPosition struct {
	Ticker         string  `json:"ticker"`
	SharesSold     float64 `json:"shares_sold"`
	TotalProceeds  float64 `json:"total_proceeds"`
	TotalCost      float64 `json:"total_cost"`
	RealizedPnl    float64 `json:"realized_pnl"`
	RealizedPnlPct float64 `json:"realized_pnl_pct"`
	FirstBuy       string  `json:"first_buy"` // YYYY-MM-DD
	LastSell       string  `json:"last_sell"` // YYYY-MM-DD
	HoldingDays    int     `json:"holding_days"`
	FullyClosed    bool    `json:"fully_closed"`
}
