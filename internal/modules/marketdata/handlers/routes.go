package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data ingestion routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/market/prices", h.HandleUpsertPrices)
	r.Get("/market/prices/{ticker}/latest", h.HandleLatestPrice)
	r.Post("/market/dividends", h.HandleUpsertDividends)
	r.Post("/market/quotes", h.HandleUpsertQuotes)
}
