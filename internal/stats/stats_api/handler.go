package stats_api

import (
	"net/http"
	"strconv"

	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/stats"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

const maxChartDays = 90

type Handler struct {
	Service *stats.Service
	Logger  *logger.Logger
}

func NewHandler(svc *stats.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/stats", func(r chi.Router) {
		r.Use(authMW, auth.RequireAdmin)
		r.Get("/summary", h.Summary)
		r.Get("/revenue-chart", h.RevenueChart)
		r.Get("/top-routes", h.TopRoutes)
		r.Get("/brands", h.BrandRevenue)
		r.Get("/status", h.StatusStats)
		r.Get("/trend", h.TicketTrend)
		r.Get("/treemap", h.RouteTreemap)
		r.Get("/occupancy", h.Occupancy)
		r.Get("/payment-methods", h.PaymentMethods)
		r.Get("/hourly", h.HourlyBookings)
	})
}

func days(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || n <= 0 {
		return 7
	}
	if n > maxChartDays {
		return maxChartDays
	}
	return n
}

func respond[T any](w http.ResponseWriter, v T, err error) {
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", v))
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.Summary(r.Context())
	respond(w, v, err)
}

func (h *Handler) RevenueChart(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.RevenueChart(r.Context(), days(r))
	respond(w, v, err)
}

func (h *Handler) TopRoutes(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.TopRoutes(r.Context())
	respond(w, v, err)
}

func (h *Handler) BrandRevenue(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.BrandRevenue(r.Context())
	respond(w, v, err)
}

func (h *Handler) StatusStats(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.StatusStats(r.Context())
	respond(w, v, err)
}

func (h *Handler) TicketTrend(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.TicketTrend(r.Context(), days(r))
	respond(w, v, err)
}

func (h *Handler) RouteTreemap(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.RouteTreemap(r.Context())
	respond(w, v, err)
}

func (h *Handler) Occupancy(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.Occupancy(r.Context())
	respond(w, v, err)
}

func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.PaymentMethods(r.Context())
	respond(w, v, err)
}

func (h *Handler) HourlyBookings(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.HourlyBookings(r.Context())
	respond(w, v, err)
}
