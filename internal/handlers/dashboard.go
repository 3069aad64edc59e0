package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agribusiness-pro/apiserver/internal/services"
)

// DashboardHandler serves the dashboard widgets.
type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// DashboardRouter registers dashboard routes behind authMiddleware.
func DashboardRouter(r chi.Router, handler *DashboardHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/stats", handler.Stats)
	r.Get("/market-prices", handler.MarketPrices)
	r.Get("/weather", handler.Weather)
	r.Get("/activities", handler.Activities)
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Stats())
}

func (h *DashboardHandler) MarketPrices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.MarketPrices())
}

func (h *DashboardHandler) Weather(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Weather())
}

func (h *DashboardHandler) Activities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.Activities())
}
