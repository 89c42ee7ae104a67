package notification_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"busticket/internal/auth"
	"busticket/internal/logger"
	"busticket/internal/notification"
	"busticket/internal/utils"

	"github.com/go-chi/chi/v5"
)

const heartbeatInterval = 30 * time.Second

type Handler struct {
	Service *notification.Service
	Logger  *logger.Logger
}

func NewHandler(svc *notification.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, authMW func(http.Handler) http.Handler) {
	r.Route("/api/notifications", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/", h.List)
		r.Get("/stream", h.Stream)
		r.Patch("/read-all", h.MarkAllAsRead)
		r.Patch("/{id}/read", h.MarkAsRead)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	list, err := h.Service.List(r.Context(), userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	unread, err := h.Service.UnreadCount(r.Context(), userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", map[string]interface{}{
		"notifications": list,
		"unread":        unread,
	}))
}

func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.MarkAsRead(r.Context(), id, auth.UserID(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Đã đánh dấu đã đọc", nil))
}

func (h *Handler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.MarkAllAsRead(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Đã đánh dấu tất cả đã đọc", map[string]int64{"count": n}))
}

// Stream pushes the caller's new notifications as server-sent events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	userID := auth.UserID(r.Context())
	setupSSEHeaders(w)

	ctx := r.Context()
	events := h.Service.Hub.Subscribe(ctx, userID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"userId\":%d}\n\n", userID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("User %d connected to notification stream", userID))

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize notification: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("User %d disconnected from notification stream", userID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
