// Package handlers provides HTTP handlers for the source-of-truth records:
// trades, cash movements, and the derived transaction log.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/inikiforov/dpk-portfolio/internal/domain"
	"github.com/inikiforov/dpk-portfolio/internal/modules/ledger"
)

// Handler handles ledger HTTP requests
type Handler struct {
	trades *ledger.TradeRepository
	cash   *ledger.CashRepository
	txns   *ledger.TransactionRepository
	log    zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(
	trades *ledger.TradeRepository,
	cash *ledger.CashRepository,
	txns *ledger.TransactionRepository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		trades: trades,
		cash:   cash,
		txns:   txns,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleListTrades returns all trades for a portfolio in date order
func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.ListByPortfolio(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	h.writeJSON(w, http.StatusOK, trades)
}

// HandleCreateTrade records a new trade. The transaction log and NAV history
// are not touched until the next rebuild.
func (h *Handler) HandleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ticker   string  `json:"ticker"`
		Date     string  `json:"date"` // YYYY-MM-DD
		Side     string  `json:"side"`
		Quantity float64 `json:"quantity"`
		Price    float64 `json:"price"`
		Fees     float64 `json:"fees"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse(domain.DayFormat, req.Date)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		h.writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}
	if req.Ticker == "" || req.Quantity <= 0 || req.Price <= 0 {
		h.writeError(w, http.StatusBadRequest, "ticker, positive quantity, and positive price are required")
		return
	}

	trade := &domain.Trade{
		PortfolioID: chi.URLParam(r, "id"),
		Ticker:      req.Ticker,
		Date:        date,
		Side:        req.Side,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Fees:        req.Fees,
	}
	if err := h.trades.Create(trade); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, trade)
}

// HandleListCashMovements returns all deposits and withdrawals for a portfolio
func (h *Handler) HandleListCashMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.cash.ListByPortfolio(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if movements == nil {
		movements = []domain.CashMovement{}
	}
	h.writeJSON(w, http.StatusOK, movements)
}

// HandleCreateCashMovement records a deposit or withdrawal
func (h *Handler) HandleCreateCashMovement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date   string  `json:"date"` // YYYY-MM-DD
		Type   string  `json:"type"`
		Amount float64 `json:"amount"`
		Note   string  `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse(domain.DayFormat, req.Date)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	movement := &domain.CashMovement{
		PortfolioID: chi.URLParam(r, "id"),
		Date:        date,
		Type:        req.Type,
		Amount:      req.Amount,
		Note:        req.Note,
	}
	if err := h.cash.Create(movement); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, movement)
}

// HandleListTransactions returns the derived transaction log for a portfolio
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.txns.ListByPortfolio(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, txns)
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
