package ledger

import (
	"math"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// ReplayHoldings replays a transaction log into a ticker -> shares map with a
// CASH entry holding the running cash balance. Category ordering within a day
// does not matter here because every effect is additive.
func ReplayHoldings(txns []domain.Transaction) map[string]float64 {
	holdings := map[string]float64{domain.CashTicker: 0}

	for _, t := range txns {
		switch t.Type {
		case domain.TxnDeposit:
			holdings[domain.CashTicker] += t.Amount
		case domain.TxnWithdrawal:
			holdings[domain.CashTicker] -= math.Abs(t.Amount)
		case domain.TxnDividend:
			holdings[domain.CashTicker] += t.Amount
		case domain.TxnBuy:
			if t.Ticker != "" {
				holdings[domain.CashTicker] -= math.Abs(t.Amount)
				holdings[t.Ticker] += t.Shares
			}
		case domain.TxnSell:
			if t.Ticker != "" {
				holdings[domain.CashTicker] += t.Amount
				holdings[t.Ticker] -= t.Shares
			}
		}
	}

	return holdings
}

// HeldTickers returns the tickers with a positive share count, CASH excluded.
func HeldTickers(holdings map[string]float64) []string {
	var tickers []string
	for ticker, shares := range holdings {
		if ticker == domain.CashTicker || shares <= 0 {
			continue
		}
		tickers = append(tickers, ticker)
	}
	return tickers
}
