package scheduler

import (
	"context"
	"time"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/portfolio"
)

// QuoteRefreshJob pulls live quotes for held tickers while the market is
// open. Outside the session it is a cheap no-op.
type QuoteRefreshJob struct {
	service  *portfolio.Service
	calendar domain.MarketCalendar
	timeout  time.Duration
}

// NewQuoteRefreshJob creates a new quote refresh job
func NewQuoteRefreshJob(service *portfolio.Service, calendar domain.MarketCalendar) *QuoteRefreshJob {
	return &QuoteRefreshJob{
		service:  service,
		calendar: calendar,
		timeout:  time.Minute,
	}
}

func (j *QuoteRefreshJob) Name() string { return "quote_refresh" }

func (j *QuoteRefreshJob) Run() error {
	if !j.calendar.IsMarketOpen(time.Now()) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	return j.service.RefreshQuotes(ctx)
}

// EODJob appends the day's snapshot for every portfolio after the close.
type EODJob struct {
	service *portfolio.Service
	timeout time.Duration
}

// NewEODJob creates a new end-of-day update job
func NewEODJob(service *portfolio.Service) *EODJob {
	return &EODJob{
		service: service,
		timeout: 10 * time.Minute,
	}
}

func (j *EODJob) Name() string { return "eod_update" }

func (j *EODJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.service.EODUpdateAll(ctx)
	return nil
}
