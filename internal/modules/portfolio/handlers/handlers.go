// Package handlers provides HTTP handlers for the portfolio ledger and its
// reports.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stockfolio/internal/domain"
	"stockfolio/internal/modules/auth"
	"stockfolio/internal/modules/ledger"
	"stockfolio/internal/modules/portfolio"
	"stockfolio/internal/modules/reporting"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	ledger    *portfolio.LedgerService
	reporting *reporting.Service
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(ledger *portfolio.LedgerService, reportingSvc *reporting.Service, log zerolog.Logger) *Handler {
	return &Handler{
		ledger:    ledger,
		reporting: reportingSvc,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleListHoldings returns the user's holdings enriched with quotes.
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	views, err := h.reporting.HoldingViews(r.Context(), userID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if views == nil {
		views = []reporting.HoldingView{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"portfolio": views})
}

// HandleAddStock adds a holding.
func (h *Handler) HandleAddStock(w http.ResponseWriter, r *http.Request) {
	var input portfolio.AddStockInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	holding, err := h.ledger.AddStock(r.Context(), userID, input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"holding": holding})
}

// HandleDeleteHolding closes one holding and returns the realized transaction.
func (h *Handler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	holdingID := chi.URLParam(r, "holdingID")

	rt, err := h.ledger.DeleteHolding(r.Context(), userID, holdingID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transaction": rt})
}

// HandleDeletePortfolio closes every holding sharing a portfolio name.
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	name := chi.URLParam(r, "portfolioName")

	transactions, err := h.ledger.DeletePortfolio(r.Context(), userID, name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// HandleListRealized returns the user's realized transactions.
func (h *Handler) HandleListRealized(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	transactions, err := h.ledger.ListRealized(userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if transactions == nil {
		transactions = []ledger.RealizedTransaction{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// HandleSummary returns the aggregate metrics for a portfolio name, or for
// the whole user when no name is given.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	metrics, err := h.reporting.PortfolioMetrics(r.Context(), userID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"summary": metrics})
}

// HandleDayChanges returns the intraday movement report.
func (h *Handler) HandleDayChanges(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	report, err := h.reporting.DayChanges(r.Context(), userID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"dayChanges": report})
}

// HandleChartsData returns unique stock counts and current values per
// portfolio name in one payload.
func (h *Handler) HandleChartsData(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	data, err := h.reporting.ChartsData(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, data)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("Request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
