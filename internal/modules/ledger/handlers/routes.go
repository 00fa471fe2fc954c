package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios/{id}", func(r chi.Router) {
		r.Get("/trades", h.HandleListTrades)
		r.Post("/trades", h.HandleCreateTrade)
		r.Get("/cash", h.HandleListCashMovements)
		r.Post("/cash", h.HandleCreateCashMovement)
		r.Get("/transactions", h.HandleListTransactions)
	})
}
