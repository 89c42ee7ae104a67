package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"busticket/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "0đ", FormatVND(0))
	assert.Equal(t, "950đ", FormatVND(950))
	assert.Equal(t, "150.000đ", FormatVND(150000))
	assert.Equal(t, "1.250.000đ", FormatVND(1250000))
	assert.Equal(t, "-20.000đ", FormatVND(-20000))
}

func TestBookingCodeAndSeat(t *testing.T) {
	assert.Equal(t, "V000042", BookingCode(42))
	assert.Equal(t, "07", PadSeat(7))
	assert.Equal(t, "12", PadSeat(12))
}

func TestGenerateAppTransID(t *testing.T) {
	now := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	id := GenerateAppTransID(now)
	assert.Regexp(t, regexp.MustCompile(`^250309_\d{1,6}$`), id)
}

func TestGenerateOrderID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "TICKET_15_1700000000123", GenerateOrderID(15, now))
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	// 20:00 UTC is already the next day in UTC+7.
	ts := time.Date(2025, 5, 1, 20, 0, 0, 0, time.UTC)

	start := StartOfDay(ts, loc)
	end := EndOfDay(ts, loc)
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, loc), start)
	assert.True(t, end.After(start))
	assert.Equal(t, 2, end.Day())
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, loc), StartOfMonth(ts, loc))
}

func TestRound1AndHours(t *testing.T) {
	assert.Equal(t, 33.3, Round1(33.333))
	assert.Equal(t, 66.7, Round1(66.66))
	now := time.Now()
	assert.InDelta(t, 3.0, HoursUntil(now.Add(3*time.Hour), now), 1e-9)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperr.NotFound("ticket"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "ticket not found", body.Message)
}
