package review_api

import (
	"net/http"

	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/review"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *review.Service
	Logger  *logger.Logger
}

func NewHandler(svc *review.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/reviews", func(r chi.Router) {
		r.Get("/bus/{busId}", h.ByBus)
		r.Get("/stats/{busId}", h.Stats)

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Post("/", h.Create)
			r.Get("/my-reviews", h.Mine)
			r.Get("/unreviewed", h.Unreviewed)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW, auth.RequireAdmin)
			r.Get("/", h.All)
			r.Post("/{id}/reply", h.Reply)
		})
	})
}

func (h *Handler) ByBus(w http.ResponseWriter, r *http.Request) {
	busID, err := utils.ParseID(r, "busId")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	list, err := h.Service.ByBus(r.Context(), busID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	busID, err := utils.ParseID(r, "busId")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	stats, err := h.Service.Stats(r.Context(), busID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", stats))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReviewRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	rv, err := h.Service.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Cảm ơn bạn đã đánh giá", rv))
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) Unreviewed(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Service.Unreviewed(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", tickets))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var upd models.UpdateReviewRequest
	if err := utils.DecodeJSON(r, &upd); err != nil {
		utils.WriteError(w, err)
		return
	}
	rv, err := h.Service.Update(r.Context(), id, auth.UserID(r.Context()), upd)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Cập nhật đánh giá thành công", rv))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.Delete(r.Context(), id, auth.UserID(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xóa đánh giá thành công", nil))
}

func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.All(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var body struct {
		Reply string `json:"reply"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}
	rv, err := h.Service.Reply(r.Context(), id, body.Reply)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Đã phản hồi đánh giá", rv))
}
