package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleListPortfolios)
		r.Post("/", h.HandleCreatePortfolio)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetPortfolio)
			r.Post("/rebuild", h.HandleFullRebuild)    // Rebuild log + recompute NAV history
			r.Post("/recompute", h.HandleRecomputeNAV) // Recompute NAV over existing log
			r.Post("/eod", h.HandleEODUpdate)          // Append today's snapshot
		})
	})
}
