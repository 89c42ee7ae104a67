package qr_test

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/database/dbtest"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/notification"
	notificationdb "busticket/internal/notification/db"
	"busticket/internal/qr"
	qrdb "busticket/internal/qr/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTripAndExpiry(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := qr.NewSigner("qr-secret", 0).WithClock(func() time.Time { return now })

	token, err := s.Token(42)
	require.NoError(t, err)
	id, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = qr.NewSigner("other-secret", 0).WithClock(func() time.Time { return now }).Verify(token)
	assert.Error(t, err)

	later := qr.NewSigner("qr-secret", 0).WithClock(func() time.Time { return now.Add(8 * 24 * time.Hour) })
	_, err = later.Verify(token)
	assert.Error(t, err, "tokens last seven days")
}

func TestVerifyURLAndPNG(t *testing.T) {
	u := qr.VerifyURL("https://xe.example.vn/", "a.b+c")
	assert.Equal(t, "https://xe.example.vn/verify-qr?token=a.b%2Bc", u)

	img, err := qr.PNG(u, 200)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 200, decoded.Bounds().Dx())
}

func TestVerifyTicketAndConfirmBoarding(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	log := logger.NewWithWriter(io.Discard)
	u := dbtest.SeedUser(t, db, "board@example.com")
	trip := dbtest.SeedTrip(t, db, dbtest.TripOptions{})
	paidTicket := dbtest.SeedTicket(t, db, u.ID, trip, 0, models.TicketPaid, models.PaymentSuccess)
	booked := dbtest.SeedTicket(t, db, u.ID, trip, 1, models.TicketBooked, models.PaymentPending)

	notifications := notification.NewService(&notificationdb.DB{Bun: db}, nil, log)
	signer := qr.NewSigner("qr-secret", 0)
	svc := qr.NewService(&qrdb.DB{Bun: db}, signer, notifications, log)

	_, err := svc.VerifyTicket(ctx, "garbage")
	assert.True(t, apperr.IsValidation(err))

	token, err := signer.Token(booked.ID)
	require.NoError(t, err)
	_, err = svc.VerifyTicket(ctx, token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chưa được thanh toán")

	token, err = signer.Token(paidTicket.ID)
	require.NoError(t, err)
	check, err := svc.VerifyTicket(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "board@example.com", check.PassengerEmail)
	assert.Equal(t, "A01", check.Seat)
	assert.Equal(t, "Hồ Chí Minh - Đà Lạt", check.Route)
	assert.True(t, strings.HasPrefix(check.BookingCode, "V"))

	assert.True(t, apperr.IsValidation(svc.ConfirmBoarding(ctx, 0)))
	assert.True(t, apperr.IsValidation(svc.ConfirmBoarding(ctx, 9999)))
	require.NoError(t, svc.ConfirmBoarding(ctx, paidTicket.ID))

	list, err := notifications.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationTicket, list[0].Type)
}
