package domain

import "fmt"

// AnomalyKind classifies non-fatal data problems absorbed during a replay.
type AnomalyKind string

const (
	// AnomalyMissingPrice - a ticker had no price on or before a valuation
	// date; its contribution defaulted to 0.
	AnomalyMissingPrice AnomalyKind = "missing_price"
	// AnomalyOversell - a SELL exceeded tracked FIFO lots and the excess was
	// dropped instead of going short.
	AnomalyOversell AnomalyKind = "oversell_truncated"
	// AnomalyNegativeUnits - a withdrawal drove total units below zero.
	AnomalyNegativeUnits AnomalyKind = "negative_units"
)

// Anomaly records one absorbed data problem. Replays never abort on these;
// they are collected so callers can surface them.
type Anomaly struct {
	Kind   AnomalyKind `json:"kind"`
	Ticker string      `json:"ticker,omitempty"`
	Date   string      `json:"date,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s ticker=%s date=%s %s", a.Kind, a.Ticker, a.Date, a.Detail)
}
