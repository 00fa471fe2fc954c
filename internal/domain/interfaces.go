package domain

import (
	"context"
	"time"
)

// PriceProvider supplies daily closing prices for a ticker. Implementations
// live outside the core (market-data adapters); the engine only consumes the
// resulting series.
type PriceProvider interface {
	// DailyCloses returns closing prices for [from, to] inclusive, ascending.
	DailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]PricePoint, error)
}

// QuoteProvider supplies current intraday prices for a batch of tickers.
// Tickers the provider cannot quote are simply absent from the result.
type QuoteProvider interface {
	Quotes(ctx context.Context, tickers []string) (map[string]float64, error)
}

// MarketCalendar answers trading-day and market-open questions. The core
// depends on nothing about exchange microstructure beyond these booleans.
type MarketCalendar interface {
	IsTradingDay(t time.Time) bool
	IsMarketOpen(now time.Time) bool
}
