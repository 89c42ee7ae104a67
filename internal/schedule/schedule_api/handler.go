package schedule_api

import (
	"fmt"
	"net/http"
	"time"

	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/schedule"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *schedule.Service
	Logger  *logger.Logger
}

func NewHandler(svc *schedule.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/schedules", func(r chi.Router) {
		r.Get("/", h.Search)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/seats", h.Seats)
		r.Get("/{id}/dropoff-points", h.ListDropoffPoints)

		r.Group(func(r chi.Router) {
			r.Use(authMW, auth.RequireAdmin)
			r.Post("/", h.Create)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/dropoff-points", h.CreateDropoffPoint)
			r.Post("/update-statuses", h.UpdateStatuses)
		})
	})

	r.Route("/api/dropoff-points", func(r chi.Router) {
		r.Use(authMW, auth.RequireAdmin)
		r.Put("/{id}", h.UpdateDropoffPoint)
		r.Delete("/{id}", h.DeleteDropoffPoint)
	})

	r.With(authMW).Get("/api/bookings/reminder-info/{scheduleId}", h.ReminderInfo)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	schedules, err := h.Service.Search(r.Context(), q.Get("startPoint"), q.Get("endPoint"), q.Get("date"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", schedules))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	sched, err := h.Service.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", sched))
}

func (h *Handler) Seats(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	seats, err := h.Service.Seats(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", map[string]interface{}{
		"scheduleId": id,
		"seats":      seats,
	}))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateScheduleRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	sched, err := h.Service.Create(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tạo lịch trình thành công", sched))
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
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xóa lịch trình thành công", nil))
}

func (h *Handler) UpdateStatuses(w http.ResponseWriter, r *http.Request) {
	ongoing, completed, err := h.Service.UpdateStatuses(r.Context(), time.Now())
	if err != nil {
		h.Logger.Error("SCHEDULE", fmt.Sprintf("Manual status update failed: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", map[string]int{
		"ongoing":   ongoing,
		"completed": completed,
	}))
}

func (h *Handler) ListDropoffPoints(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	points, err := h.Service.ListDropoffPoints(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", points))
}

func (h *Handler) CreateDropoffPoint(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var in models.DropoffPointInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	p, err := h.Service.CreateDropoffPoint(r.Context(), id, in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tạo điểm trả thành công", p))
}

func (h *Handler) UpdateDropoffPoint(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var in models.DropoffPointInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	p, err := h.Service.UpdateDropoffPoint(r.Context(), id, in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Cập nhật điểm trả thành công", p))
}

func (h *Handler) DeleteDropoffPoint(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.DeleteDropoffPoint(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xóa điểm trả thành công", nil))
}

func (h *Handler) ReminderInfo(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "scheduleId")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	info, err := h.Service.ReminderInfo(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, info)
}
