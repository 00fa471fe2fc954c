// Package handlers provides HTTP handlers for the read-only reporting views.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/costbasis"
	"github.com/inikiforov/dpk-portfolio/internal/modules/reports"
)

// Handler handles reporting HTTP requests
type Handler struct {
	service *reports.Service
	lots    *costbasis.Ledger
	log     zerolog.Logger
}

// NewHandler creates a new reports handler
func NewHandler(
	service *reports.Service,
	lots *costbasis.Ledger,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service: service,
		lots:    lots,
		log:     log.With().Str("handler", "reports").Logger(),
	}
}

// HandleGetHoldings returns current holdings with FIFO cost basis, sorted by
// value descending. Data anomalies (missing prices, oversells) ride along.
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, anomalies, err := h.lots.CurrentHoldings(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if holdings == nil {
		holdings = []domain.Holding{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holdings":  holdings,
		"anomalies": anomalies,
	})
}

// HandleGetClosedPositions returns realized P&L aggregates per ticker
func (h *Handler) HandleGetClosedPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.lots.ClosedPositions(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if positions == nil {
		positions = []domain.ClosedPosition{}
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// HandleGetYearlyPerformance returns per-year unitized returns
func (h *Handler) HandleGetYearlyPerformance(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.YearlyPerformance(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// HandleGetChart returns the weekly-sampled NAV and value series
func (h *Handler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	series, err := h.service.WeeklyChartSeries(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, series)
}

// HandleGetLiveSummary returns the intraday NAV estimate with day change
func (h *Handler) HandleGetLiveSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LiveSummary(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetSummary returns the snapshot-history aggregate with NAV statistics
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.PortfolioSummary(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
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
