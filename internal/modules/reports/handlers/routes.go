package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all reporting routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios/{id}", func(r chi.Router) {
		r.Get("/holdings", h.HandleGetHoldings)
		r.Get("/closed-positions", h.HandleGetClosedPositions)
		r.Get("/performance/yearly", h.HandleGetYearlyPerformance)
		r.Get("/performance/chart", h.HandleGetChart)
		r.Get("/performance/live", h.HandleGetLiveSummary)
		r.Get("/summary", h.HandleGetSummary)
	})
}
