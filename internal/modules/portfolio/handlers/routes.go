package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleListHoldings)
		r.Post("/", h.HandleAddStock)
		r.Delete("/{holdingID}", h.HandleDeleteHolding)
		r.Delete("/by-name/{portfolioName}", h.HandleDeletePortfolio)

		r.Get("/transactions", h.HandleListRealized)
		r.Get("/summary", h.HandleSummary)
		r.Get("/day-changes", h.HandleDayChanges)
	})

	r.Get("/api/portfolio-charts-data", h.HandleChartsData)
}
