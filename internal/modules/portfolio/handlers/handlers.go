// Package handlers provides HTTP handlers for portfolio management and the
// engine's write operations.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	repo    *portfolio.Repository
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(
	repo *portfolio.Repository,
	service *portfolio.Service,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleListPortfolios returns all portfolios
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.repo.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if portfolios == nil {
		portfolios = []domain.Portfolio{}
	}
	h.writeJSON(w, http.StatusOK, portfolios)
}

// HandleCreatePortfolio creates a new portfolio
func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &domain.Portfolio{Name: req.Name, Currency: req.Currency}
	if err := h.repo.Create(p); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// HandleGetPortfolio returns one portfolio by ID
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleFullRebuild rebuilds the transaction log and recomputes the whole
// NAV history for one portfolio
func (h *Handler) HandleFullRebuild(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.FullRebuild(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleRecomputeNAV reruns the NAV replay over the existing log
func (h *Handler) HandleRecomputeNAV(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RecomputeNAV(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleEODUpdate appends today's snapshot for one portfolio
func (h *Handler) HandleEODUpdate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.EODUpdate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
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
