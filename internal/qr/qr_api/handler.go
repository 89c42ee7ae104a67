package qr_api

import (
	"net/http"

	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/qr"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *qr.Service
	Logger  *logger.Logger
}

func NewHandler(svc *qr.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/qr", func(r chi.Router) {
		r.Get("/verify", h.Verify)
		r.With(authMW, auth.RequireAdmin).Post("/confirm", h.Confirm)
	})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Thiếu token", "Bad Request"))
		return
	}
	check, err := h.Service.VerifyTicket(r.Context(), token)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Vé hợp lệ", check))
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TicketID int64 `json:"ticketId"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.ConfirmBoarding(r.Context(), body.TicketID); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xác nhận lên xe thành công", nil))
}
