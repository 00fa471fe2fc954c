// Package handlers provides HTTP handlers for market calendar status.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/modules/market_hours"
)

// Handler handles market hours HTTP requests
type Handler struct {
	calendar *market_hours.Calendar
	log      zerolog.Logger
}

// NewHandler creates a new market hours handler
func NewHandler(calendar *market_hours.Calendar, log zerolog.Logger) *Handler {
	return &Handler{
		calendar: calendar,
		log:      log.With().Str("handler", "market_hours").Logger(),
	}
}

// HandleGetStatus reports whether today is a trading day and whether the
// market is currently open
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	local := now.In(h.calendar.Location())

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_trading_day": h.calendar.IsTradingDay(now),
		"is_market_open": h.calendar.IsMarketOpen(now),
		"market_time":    local.Format(time.RFC3339),
		"timezone":       h.calendar.Location().String(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
