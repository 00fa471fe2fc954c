package ledger

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
)

// BuildResult reports the outcome of a transaction log rebuild.
type BuildResult struct {
	Status              string `json:"status"`
	TransactionsCreated int    `json:"transactions_created"`
}

// Builder derives the unified transaction log from raw trades, cash
// movements, and the dividend series of every ticker ever traded.
// Rebuilding replaces the portfolio's existing log wholesale, so re-running
// on unchanged inputs is idempotent.
type Builder struct {
	trades    *TradeRepository
	cash      *CashRepository
	dividends DividendSource
	txnRepo   *TransactionRepository
	log       zerolog.Logger
}

// DividendSource is the slice of the market data layer the builder needs.
type DividendSource interface {
	ListForTickers(tickers []string) ([]domain.DividendEvent, error)
}

// NewBuilder creates a new transaction log builder
func NewBuilder(
	trades *TradeRepository,
	cash *CashRepository,
	dividends DividendSource,
	txnRepo *TransactionRepository,
	log zerolog.Logger,
) *Builder {
	return &Builder{
		trades:    trades,
		cash:      cash,
		dividends: dividends,
		txnRepo:   txnRepo,
		log:       log.With().Str("service", "log_builder").Logger(),
	}
}

// Build assembles and persists the transaction log for a portfolio.
//
// Signed-amount rules (cash effect, rounded to cents):
//   - BUY:        -(quantity x price) - fees
//   - SELL:       +(quantity x price) - fees
//   - DEPOSIT:    +value
//   - WITHDRAWAL: -value
//   - DIVIDEND:   shares held on ex-date x per-share amount; dropped when the
//     replayed share count on the ex-date is zero or negative.
func (b *Builder) Build(portfolioID string) (*BuildResult, error) {
	trades, err := b.trades.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}
	movements, err := b.cash.ListByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}

	var txns []domain.Transaction

	for _, tr := range trades {
		value := decimal.NewFromFloat(tr.Quantity).Mul(decimal.NewFromFloat(tr.Price))
		fees := decimal.NewFromFloat(tr.Fees)

		var amount decimal.Decimal
		if tr.Side == domain.SideBuy {
			amount = value.Neg().Sub(fees)
		} else {
			amount = value.Sub(fees)
		}

		txns = append(txns, domain.Transaction{
			PortfolioID: portfolioID,
			Date:        tr.Date,
			Type:        tr.Side,
			Ticker:      tr.Ticker,
			Shares:      tr.Quantity,
			Price:       tr.Price,
			Amount:      amount.Round(2).InexactFloat64(),
			Commission:  tr.Fees,
			SourceType:  domain.SourceTrade,
			SourceID:    tr.ID,
		})
	}

	for _, m := range movements {
		amount := m.Amount
		if m.Type == domain.TxnWithdrawal {
			amount = -m.Amount
		}

		txns = append(txns, domain.Transaction{
			PortfolioID: portfolioID,
			Date:        m.Date,
			Type:        m.Type,
			Amount:      amount,
			SourceType:  domain.SourceCash,
			SourceID:    m.ID,
		})
	}

	dividendTxns, err := b.buildDividends(portfolioID, trades)
	if err != nil {
		return nil, err
	}
	txns = append(txns, dividendTxns...)

	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})

	if err := b.txnRepo.ReplaceForPortfolio(portfolioID, txns); err != nil {
		return nil, err
	}

	b.log.Info().
		Str("portfolio", portfolioID).
		Int("trades", len(trades)).
		Int("cash", len(movements)).
		Int("dividends", len(dividendTxns)).
		Msg("Rebuilt transaction log")

	return &BuildResult{Status: "success", TransactionsCreated: len(txns)}, nil
}

// buildDividends converts per-share dividend events into cash transactions.
// The share count on each ex-date comes from replaying all trades for that
// ticker dated on or before the ex-date.
func (b *Builder) buildDividends(portfolioID string, trades []domain.Trade) ([]domain.Transaction, error) {
	tickerSet := make(map[string]bool)
	for _, tr := range trades {
		tickerSet[tr.Ticker] = true
	}
	tickers := make([]string, 0, len(tickerSet))
	for t := range tickerSet {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	events, err := b.dividends.ListForTickers(tickers)
	if err != nil {
		return nil, err
	}

	var txns []domain.Transaction
	for _, ev := range events {
		sharesHeld := sharesOnDate(trades, ev.Ticker, ev.ExDate)
		if sharesHeld <= 0 {
			// Not a holder on the ex-date: no transaction emitted
			continue
		}

		amount := decimal.NewFromFloat(sharesHeld).Mul(decimal.NewFromFloat(ev.Amount))
		exDate, err := time.Parse(domain.DayFormat, ev.ExDate)
		if err != nil {
			return nil, err
		}

		txns = append(txns, domain.Transaction{
			PortfolioID: portfolioID,
			Date:        exDate.UTC(),
			Type:        domain.TxnDividend,
			Ticker:      ev.Ticker,
			Shares:      sharesHeld,
			Price:       ev.Amount, // per-share dividend
			Amount:      amount.Round(2).InexactFloat64(),
			SourceType:  domain.SourceDividend,
			SourceID:    ev.ID,
		})
	}

	return txns, nil
}

// sharesOnDate replays all trades for a ticker dated on or before the given
// day key and returns the net share count.
func sharesOnDate(trades []domain.Trade, ticker, dayKey string) float64 {
	var shares float64
	for _, tr := range trades {
		if tr.Ticker != ticker || domain.DayKey(tr.Date) > dayKey {
			continue
		}
		if tr.Side == domain.SideBuy {
			shares += tr.Quantity
		} else {
			shares -= tr.Quantity
		}
	}
	return shares
}
