// Package market_hours provides the trading calendar used by the NAV engine,
// the holdings pricing policy, and the scheduler.
package market_hours

import "time"

// Regular session bounds, minutes from midnight in the calendar's timezone
// (9:30 - 16:00).
const (
	sessionOpenMinutes  = 9*60 + 30
	sessionCloseMinutes = 16 * 60
)

// Calendar answers trading-day and market-open questions for a single
// exchange timezone. Weekends are non-trading days; exchange holidays are
// not modeled.
type Calendar struct {
	loc *time.Location
}

// NewCalendar creates a calendar for the given IANA timezone name.
func NewCalendar(timezone string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Calendar{loc: loc}, nil
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether the given date is a weekday in the exchange
// timezone.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	wd := t.In(c.loc).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsMarketOpen reports whether the regular session is in progress at the
// given instant.
func (c *Calendar) IsMarketOpen(now time.Time) bool {
	local := now.In(c.loc)
	if !c.IsTradingDay(local) {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= sessionOpenMinutes && minutes <= sessionCloseMinutes
}
