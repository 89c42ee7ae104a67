package booking_api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"busticket/internal/auth"
	"busticket/internal/booking"
	bookingdb "busticket/internal/booking/db"
	"busticket/internal/config"
	"busticket/internal/database/dbtest"
	"busticket/internal/jobs"
	"busticket/internal/kafka"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/qr"
	"busticket/internal/seatlock"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router    http.Handler
	trip      *dbtest.Trip
	passenger string
	admin     string
}

func setup(t *testing.T) fixture {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	db := dbtest.New(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.BookingConfig{
		HoldDuration:            15 * time.Minute,
		ReminderDelay:           10 * time.Minute,
		MaxTicketsPerUserPerDay: 8,
		MinHoursBeforeDeparture: 1,
		CancelMinHours:          2,
		CustomDropoffSurcharge:  150000,
		DynamicPricingWindow:    24 * time.Hour,
		OccupancyThreshold:      0.8,
		SpecialRefundBrandID:    2,
	}
	svc := booking.NewService(&bookingdb.DB{Bun: db}, seatlock.NewRedis(client, 0, log), jobs.NewQueue(client, log), &kafka.NoopProducer{Logger: log}, cfg, log)
	svc.QR = qr.NewSigner("handler-secret", time.Hour)
	svc.FrontendURL = "https://busticket.test"

	passenger := dbtest.SeedUser(t, db, "rider@example.com")
	admin := dbtest.SeedUser(t, db, "admin@example.com")
	admin.Role = models.RoleAdmin
	_, err := db.NewUpdate().Model(admin).Column("role").WherePK().Exec(context.Background())
	require.NoError(t, err)

	tokens := auth.NewTokenIssuer("booking-secret", time.Hour)
	pt, err := tokens.Issue(passenger)
	require.NoError(t, err)
	at, err := tokens.Issue(admin)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(r, (&auth.Authenticator{Tokens: tokens, Logger: log}).Middleware())
	return fixture{router: r, trip: dbtest.SeedTrip(t, db, dbtest.TripOptions{}), passenger: pt, admin: at}
}

func (f fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestBookPayAndDownload(t *testing.T) {
	f := setup(t)
	body := fmt.Sprintf(`{"scheduleId":%d,"seatId":%d,"paymentMethod":"CASH"}`, f.trip.Schedule.ID, f.trip.Seats[0].ID)

	rr := f.do(t, http.MethodPost, "/api/tickets", "", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/tickets", f.passenger, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"paymentHistoryId":1`)

	rr = f.do(t, http.MethodPost, "/api/tickets", f.passenger, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/tickets/me", f.passenger, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"dropoffInfo"`)

	rr = f.do(t, http.MethodGet, "/api/tickets/1/qr", f.passenger, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unpaid tickets have no QR")

	rr = f.do(t, http.MethodPost, "/api/tickets/1/pay", f.passenger, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/tickets/1/pay", f.admin, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "verify-qr?token=")

	rr = f.do(t, http.MethodGet, "/api/tickets/1/status", f.passenger, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"PAID"`)

	rr = f.do(t, http.MethodGet, "/api/tickets/1/qr", f.passenger, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	rr = f.do(t, http.MethodGet, "/api/tickets/1/pdf", f.passenger, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))

	rr = f.do(t, http.MethodGet, "/api/payments/1/detail", f.passenger, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"seatList":["A01"]`)
}

func TestAdminRoutes(t *testing.T) {
	f := setup(t)
	body := fmt.Sprintf(`{"paymentMethod":"CASH","tickets":[{"scheduleId":%d,"seatId":%d},{"scheduleId":%d,"seatId":%d}]}`,
		f.trip.Schedule.ID, f.trip.Seats[0].ID, f.trip.Schedule.ID, f.trip.Seats[1].ID)
	rr := f.do(t, http.MethodPost, "/api/tickets/bulk", f.passenger, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/api/bookings", f.passenger, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/bookings", f.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"BOOKED"`)
	assert.Contains(t, rr.Body.String(), `"customerEmail":"rider@example.com"`)

	rr = f.do(t, http.MethodGet, "/api/bookings/1", f.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"seats":["A01","A02"]`)

	rr = f.do(t, http.MethodGet, "/api/tickets", f.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/tickets/user/1", f.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/tickets/1", f.admin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Hủy vé thành công")

	rr = f.do(t, http.MethodGet, "/api/tickets/999", f.passenger, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
