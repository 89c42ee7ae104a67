package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SEAT_HOLD_MINUTES", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.Booking.HoldDuration)
	assert.Equal(t, 10*time.Minute, cfg.Booking.ReminderDelay)
	assert.Equal(t, 8, cfg.Booking.MaxTicketsPerUserPerDay)
	assert.Equal(t, 150000.0, cfg.Booking.CustomDropoffSurcharge)
	assert.Equal(t, int64(2), cfg.Booking.SpecialRefundBrandID)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "2554", cfg.ZaloPay.AppID)
	assert.Len(t, cfg.Kafka.Topics.All(), 5)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SEAT_HOLD_MINUTES", "5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MOMO_ENV", "sandbox")
	t.Setenv("FRONTEND_URL", "https://busticket.vn/")
	t.Setenv("JOB_POLL_INTERVAL", "250ms")
	t.Setenv("OCCUPANCY_THRESHOLD", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.Booking.HoldDuration)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.MoMo.Sandbox)
	assert.Equal(t, "https://busticket.vn", cfg.FrontendURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.PollInterval)
	assert.Equal(t, 0.8, cfg.Booking.OccupancyThreshold)
}

func TestBookingLocationFallback(t *testing.T) {
	b := BookingConfig{Timezone: "Nowhere/Invalid"}
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, b.Location()).Zone()
	assert.Equal(t, 7*3600, offset)
}

func TestDefaultSecretsRejectedOutsideDevelopment(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("QR_SECRET", "")
	t.Setenv("APP_ENV", "")

	cfg := Load()
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, []string{"JWT_SECRET", "QR_SECRET"}, cfg.InsecureSecrets())
	assert.NoError(t, cfg.CheckSecrets())

	t.Setenv("APP_ENV", "production")
	cfg = Load()
	err := cfg.CheckSecrets()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET, QR_SECRET")

	// QR_SECRET falls back to JWT_SECRET
	t.Setenv("JWT_SECRET", "s3cret")
	cfg = Load()
	assert.Empty(t, cfg.InsecureSecrets())
	assert.NoError(t, cfg.CheckSecrets())
}
