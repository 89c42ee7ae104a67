package fleet_api

import (
	"net/http"
	"strconv"

	"busticket/internal/auth"
	"busticket/internal/fleet"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *fleet.Service
	Logger  *logger.Logger
}

func NewHandler(svc *fleet.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

// RegisterRoutes mounts brands, buses and routes. Reads are public.
func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	admin := func(r chi.Router) chi.Router { return r.With(authMW, auth.RequireAdmin) }

	r.Route("/api/brands", func(r chi.Router) {
		r.Get("/", h.ListBrands)
		r.Get("/{id}", h.GetBrand)
		admin(r).Post("/", h.CreateBrand)
		admin(r).Put("/{id}", h.UpdateBrand)
		admin(r).Delete("/{id}", h.DeleteBrand)
	})
	r.Route("/api/buses", func(r chi.Router) {
		r.Get("/", h.ListBuses)
		r.Get("/{id}", h.GetBus)
		r.Get("/{id}/seats", h.BusSeats)
		admin(r).Post("/", h.CreateBus)
		admin(r).Put("/{id}", h.UpdateBus)
		admin(r).Delete("/{id}", h.DeleteBus)
	})
	r.Route("/api/routes", func(r chi.Router) {
		r.Get("/", h.ListRoutes)
		r.Get("/{id}", h.GetRoute)
		admin(r).Post("/", h.CreateRoute)
		admin(r).Put("/{id}", h.UpdateRoute)
		admin(r).Delete("/{id}", h.DeleteRoute)
	})
}

func ok(w http.ResponseWriter, data interface{}) {
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", data))
}

func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.Service.ListBrands(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, brands)
}

func (h *Handler) GetBrand(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	b, err := h.Service.GetBrand(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, b)
}

func (h *Handler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var in models.Brand
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	b, err := h.Service.CreateBrand(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tạo nhà xe thành công", b))
}

func (h *Handler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var in models.Brand
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	b, err := h.Service.UpdateBrand(r.Context(), id, in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, b)
}

func (h *Handler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.DeleteBrand(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xóa nhà xe thành công", nil))
}

func (h *Handler) ListBuses(w http.ResponseWriter, r *http.Request) {
	var brandID int64
	if raw := r.URL.Query().Get("brandId"); raw != "" {
		brandID, _ = strconv.ParseInt(raw, 10, 64)
	}
	buses, err := h.Service.ListBuses(r.Context(), brandID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, buses)
}

func (h *Handler) GetBus(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	b, err := h.Service.GetBus(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, b)
}

func (h *Handler) BusSeats(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	seats, err := h.Service.SeatsByBus(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, seats)
}

func (h *Handler) CreateBus(w http.ResponseWriter, r *http.Request) {
	var in models.Bus
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	b, err := h.Service.CreateBus(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tạo xe thành công", b))
}

func (h *Handler) UpdateBus(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var in models.Bus
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	b, err := h.Service.UpdateBus(r.Context(), id, in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, b)
}

func (h *Handler) DeleteBus(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.DeleteBus(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xóa xe thành công", nil))
}

func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Service.ListRoutes(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, routes)
}

func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	rt, err := h.Service.GetRoute(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, rt)
}

func (h *Handler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var in models.Route
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	rt, err := h.Service.CreateRoute(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tạo tuyến đường thành công", rt))
}

func (h *Handler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var in models.Route
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	rt, err := h.Service.UpdateRoute(r.Context(), id, in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	ok(w, rt)
}

func (h *Handler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.DeleteRoute(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xóa tuyến đường thành công", nil))
}
