package booking_api

import (
	"fmt"
	"net/http"
	"strconv"

	"busticket/internal/auth"
	"busticket/internal/booking"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *booking.Service
	Logger  *logger.Logger
}

func NewHandler(svc *booking.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/tickets", func(r chi.Router) {
		r.Use(authMW)
		r.Post("/", h.Create)
		r.Post("/bulk", h.CreateBulk)
		r.Get("/me", h.Mine)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/status", h.Status)
		r.Get("/{id}/payment", h.Payment)
		r.Get("/{id}/pdf", h.PDF)
		r.Get("/{id}/qr", h.QR)
		r.Delete("/{id}", h.Cancel)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", h.All)
			r.Get("/user/{userId}", h.ByUser)
			r.Post("/{id}/pay", h.PayCash)
		})
	})

	r.With(authMW, auth.RequireAdmin).Get("/api/bookings", h.AdminBookings)
	r.With(authMW, auth.RequireAdmin).Get("/api/bookings/{id}", h.AdminBooking)
	r.With(authMW).Get("/api/payments/{id}/detail", h.PaymentDetail)
}

func caller(r *http.Request) (int64, bool) {
	return auth.UserID(r.Context()), auth.IsAdmin(r.Context())
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	res, err := h.Service.Create(r.Context(), auth.UserID(r.Context()), req, utils.ClientIP(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Đặt vé thành công", res))
}

func (h *Handler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req models.BulkBookingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	req.ClientIP = utils.ClientIP(r)
	res, err := h.Service.CreateBulk(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(fmt.Sprintf("Đặt %d vé thành công", len(res.Tickets)), res))
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.TicketsByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.ParseID(r, "userId")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	list, err := h.Service.TicketsByUser(r.Context(), userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.All(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	userID, admin := caller(r)
	t, err := h.Service.Get(r.Context(), id, userID, admin)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", t))
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	userID, admin := caller(r)
	st, err := h.Service.Status(r.Context(), id, userID, admin)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", map[string]interface{}{
		"ticketId": id,
		"status":   st,
	}))
}

func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	userID, admin := caller(r)
	sum, err := h.Service.PaymentHistoryByTicket(r.Context(), id, userID, admin)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", sum))
}

func (h *Handler) PaymentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	userID, admin := caller(r)
	d, err := h.Service.PaymentDetail(r.Context(), id, userID, admin)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", d))
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	userID, admin := caller(r)
	pdf, err := h.Service.PDF(r.Context(), id, userID, admin)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ve-%d.pdf"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) QR(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	userID, admin := caller(r)
	png, err := h.Service.QRImage(r.Context(), id, userID, admin)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	userID, admin := caller(r)
	res, err := h.Service.Cancel(r.Context(), id, userID, admin)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(res.Message, res))
}

// PayCash settles a counter payment; the path id is the payment history.
func (h *Handler) PayCash(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	res, err := h.Service.PayTicket(r.Context(), id, models.MethodCash, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.Logger.LogPayment(string(models.MethodCash), id, fmt.Sprintf("settled at counter by user %d", auth.UserID(r.Context())))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(res.Message, res))
}

func (h *Handler) AdminBookings(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.AdminBookings(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", list))
}

func (h *Handler) AdminBooking(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	b, err := h.Service.AdminBooking(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", b))
}
