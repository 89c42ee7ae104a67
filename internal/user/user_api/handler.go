package user_api

import (
	"fmt"
	"net/http"

	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/user"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *user.Service
	Logger  *logger.Logger
}

func NewHandler(svc *user.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

// RegisterRoutes mounts /api/auth and /api/users. authMW must populate the
// request context through auth.WithUser.
func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authMW).Post("/logout", h.Logout)
		r.With(authMW).Post("/change-password", h.ChangePassword)
		r.With(authMW, auth.RequireAdmin).Post("/reset-password", h.ResetPassword)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/me", h.Me)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	resp, err := h.Service.Register(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Register failed for %s: %v", req.Email, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Đăng ký thành công", resp))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	resp, err := h.Service.Login(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Đăng nhập thành công", resp))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.Logout(r.Context(), token); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Đăng xuất thành công", nil))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.ChangePassword(r.Context(), auth.UserID(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Đổi mật khẩu thành công", nil))
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"newPassword"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Đặt lại mật khẩu thành công", nil))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Service.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", u))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("List users failed: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", users))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	u, err := h.Service.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", u))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var upd models.UserUpdate
	if err := utils.DecodeJSON(r, &upd); err != nil {
		utils.WriteError(w, err)
		return
	}
	u, err := h.Service.Update(r.Context(), id, upd)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Cập nhật thành công", u))
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
	h.Logger.Info("API", fmt.Sprintf("User %d deleted", id))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Xóa người dùng thành công", nil))
}
