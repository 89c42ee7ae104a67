package notification_api

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"busticket/internal/auth"
	"busticket/internal/database/dbtest"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/notification"
	notificationdb "busticket/internal/notification/db"
	"busticket/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router http.Handler
	svc    *notification.Service
	hub    *sse.Hub
	user   *models.User
	token  string
}

func setup(t *testing.T) fixture {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	db := dbtest.New(t)
	u := dbtest.SeedUser(t, db, "stream@example.com")
	hub := sse.NewHub()
	svc := notification.NewService(&notificationdb.DB{Bun: db}, hub, log)

	tokens := auth.NewTokenIssuer("notify-secret", time.Hour)
	token, err := tokens.Issue(u)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(r, (&auth.Authenticator{Tokens: tokens, Logger: log}).Middleware())
	return fixture{router: r, svc: svc, hub: hub, user: u, token: token}
}

func TestListAndMarkRead(t *testing.T) {
	f := setup(t)
	n, err := f.svc.Create(context.Background(), f.user.ID, "Vé đã đặt", "Ghế A01", models.NotificationTicket)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Vé đã đặt")
	assert.Contains(t, rr.Body.String(), `"unread":1`)

	req = httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/notifications/%d/read", n.ID), nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPatch, "/api/notifications/999/read", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStreamDeliversNotifications(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/notifications/stream?access_token="+f.token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return f.hub.ClientCount(f.user.ID) == 1 }, time.Second, 10*time.Millisecond)
	_, err = f.svc.Create(context.Background(), f.user.ID, "Thanh toán thành công", "V000001", models.NotificationPayment)
	require.NoError(t, err)

	found := false
	for i := 0; i < 10 && !found; i++ {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: notification") {
			data, err := reader.ReadString('\n')
			require.NoError(t, err)
			assert.Contains(t, data, "Thanh toán thành công")
			found = true
		}
	}
	assert.True(t, found)
}
