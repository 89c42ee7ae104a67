package promotion_api

import (
	"net/http"

	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/promotion"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *promotion.Service
	Logger  *logger.Logger
}

func NewHandler(svc *promotion.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/promotions", func(r chi.Router) {
		r.Get("/", h.Active)
		r.With(authMW).Post("/apply", h.Apply)

		r.Group(func(r chi.Router) {
			r.Use(authMW, auth.RequireAdmin)
			r.Get("/admin", h.ListAdmin)
			r.Post("/", h.Create)
			r.Get("/{id}", h.Get)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	promos, err := h.Service.FindActive(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", promos))
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyPromotionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	res, err := h.Service.Apply(r.Context(), req.Code, req.OrderValue)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	promos, err := h.Service.ListAdmin(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", promos))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.Promotion
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	p, err := h.Service.Create(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tạo mã khuyến mãi thành công", p))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	p, err := h.Service.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", p))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var upd models.PromotionUpdate
	if err := utils.DecodeJSON(r, &upd); err != nil {
		utils.WriteError(w, err)
		return
	}
	p, err := h.Service.Update(r.Context(), id, upd)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Cập nhật mã khuyến mãi thành công", p))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xóa mã khuyến mãi thành công", nil))
}
