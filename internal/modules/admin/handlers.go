package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stockfolio/internal/domain"
	"stockfolio/internal/modules/activity"
	"stockfolio/internal/modules/auth"
)

// Handler handles admin dashboard HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new admin handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "admin").Logger(),
	}
}

// RegisterRoutes registers all admin routes. The caller mounts these behind
// the admin role middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/dashboard-stats", h.HandleDashboardStats)
		r.Get("/recent-activities", h.HandleRecentActivities)
		r.Get("/user-growth", h.HandleUserGrowth)
		r.Get("/users", h.HandleListUsers)
		r.Delete("/delete-user/{userID}", h.HandleDeleteUser)
		r.Get("/demanding-stocks", h.HandleDemandingStocks)
		r.Get("/total-portfolio-values", h.HandleTotalPortfolioValues)
		r.Get("/invested-values", h.HandleTotalInvestedValues)
		r.Get("/total-returns", h.HandleTotalReturns)
		r.Get("/stock-performance", h.HandleStockPerformance)
	})
}

// HandleDashboardStats returns the dashboard header counts and host stats.
func (h *Handler) HandleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// HandleRecentActivities returns the newest activity log entries.
func (h *Handler) HandleRecentActivities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.service.RecentActivities(limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []activity.Event{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"activities": events})
}

// HandleUserGrowth returns signups bucketed by month.
func (h *Handler) HandleUserGrowth(w http.ResponseWriter, r *http.Request) {
	growth, err := h.service.UserGrowth()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if growth == nil {
		growth = []MonthlySignups{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"growth": growth})
}

// HandleListUsers returns every registered account.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Users()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if users == nil {
		users = []auth.User{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// HandleDeleteUser removes an account and all of its data.
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Subject == userID {
		h.writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := h.service.DeleteUser(userID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleDemandingStocks returns symbols ranked by demand.
func (h *Handler) HandleDemandingStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.DemandingStocks()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"stocks": stocks})
}

// HandleTotalPortfolioValues returns every user's total current value.
func (h *Handler) HandleTotalPortfolioValues(w http.ResponseWriter, r *http.Request) {
	values, err := h.service.TotalPortfolioValues(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"values": values})
}

// HandleTotalInvestedValues returns every user's total purchase cost.
func (h *Handler) HandleTotalInvestedValues(w http.ResponseWriter, r *http.Request) {
	invested, err := h.service.TotalInvestedValues()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"invested": invested})
}

// HandleTotalReturns returns every user's realized gain/loss.
func (h *Handler) HandleTotalReturns(w http.ResponseWriter, r *http.Request) {
	returns, err := h.service.TotalReturns()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"returns": returns})
}

// HandleStockPerformance returns per-symbol realized return statistics.
func (h *Handler) HandleStockPerformance(w http.ResponseWriter, r *http.Request) {
	performance, err := h.service.StockPerformance()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"performance": performance})
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
