// Package handlers provides HTTP handlers for market data ingestion: daily
// closes, dividend events, and live quotes pushed by an external feed.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/marketdata"
)

// Handler handles market data HTTP requests
type Handler struct {
	prices    *marketdata.PriceRepository
	dividends *marketdata.DividendRepository
	quotes    *marketdata.QuoteRepository
	log       zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(
	prices *marketdata.PriceRepository,
	dividends *marketdata.DividendRepository,
	quotes *marketdata.QuoteRepository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		prices:    prices,
		dividends: dividends,
		quotes:    quotes,
		log:       log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleUpsertPrices ingests a batch of daily closes. Existing rows for the
// same ticker and date are replaced, so re-sending a feed is safe.
func (h *Handler) HandleUpsertPrices(w http.ResponseWriter, r *http.Request) {
	var points []domain.PricePoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(points) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one price point is required")
		return
	}
	for _, p := range points {
		if p.Ticker == "" || p.Close <= 0 {
			h.writeError(w, http.StatusBadRequest, "ticker and positive close are required")
			return
		}
		if _, err := time.Parse(domain.DayFormat, p.Date); err != nil {
			h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	written, err := h.prices.BulkUpsert(points)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int{"written": written})
}

// HandleLatestPrice returns the most recent stored close for a ticker
func (h *Handler) HandleLatestPrice(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	date, err := h.prices.LatestDate(ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if date == "" {
		h.writeError(w, http.StatusNotFound, "no prices for ticker")
		return
	}
	price, _, err := h.prices.Latest(ticker)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, domain.PricePoint{Ticker: ticker, Date: date, Close: price})
}

// HandleUpsertDividends ingests a batch of per-share dividend events keyed by
// ticker and ex-date.
func (h *Handler) HandleUpsertDividends(w http.ResponseWriter, r *http.Request) {
	var events []domain.DividendEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(events) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one dividend event is required")
		return
	}
	for _, ev := range events {
		if ev.Ticker == "" || ev.Amount <= 0 {
			h.writeError(w, http.StatusBadRequest, "ticker and positive amount are required")
			return
		}
		if _, err := time.Parse(domain.DayFormat, ev.ExDate); err != nil {
			h.writeError(w, http.StatusBadRequest, "ex_date must be YYYY-MM-DD")
			return
		}
	}

	written, err := h.dividends.BulkUpsert(events)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int{"written": written})
}

// HandleUpsertQuotes ingests a batch of live quotes. Quotes only feed the
// live report views; NAV history always prices off daily closes.
func (h *Handler) HandleUpsertQuotes(w http.ResponseWriter, r *http.Request) {
	var quotes []struct {
		Ticker string  `json:"ticker"`
		Price  float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&quotes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(quotes) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one quote is required")
		return
	}
	for _, q := range quotes {
		if q.Ticker == "" || q.Price <= 0 {
			h.writeError(w, http.StatusBadRequest, "ticker and positive price are required")
			return
		}
	}

	for _, q := range quotes {
		if err := h.quotes.Upsert(q.Ticker, q.Price); err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusCreated, map[string]int{"written": len(quotes)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
