package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/config"
	"busticket/internal/logger"
	"busticket/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test"

func newService(t *testing.T, url string) *StripeService {
	t.Helper()
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	svc, err := NewStripeService(
		config.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: testWebhookSecret},
		&stripe.Backends{API: backend, Connect: backend, Uploads: backend},
		logger.NewWithWriter(io.Discard),
	)
	require.NoError(t, err)
	return svc
}

func TestNewStripeServiceRequiresKey(t *testing.T) {
	_, err := NewStripeService(config.StripeConfig{}, nil, logger.NewWithWriter(io.Discard))
	assert.ErrorIs(t, err, ErrStripeClientInitFailed)
}

func TestCheckoutCreatesPaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "450000", r.PostForm.Get("amount"))
		assert.Equal(t, "vnd", r.PostForm.Get("currency"))
		assert.Equal(t, "12", r.PostForm.Get("metadata[payment_history_id]"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "pi_123",
			"object":        "payment_intent",
			"client_secret": "pi_123_secret_abc",
			"status":        "requires_payment_method",
			"amount":        450000,
			"currency":      "vnd",
		})
	}))
	defer srv.Close()

	out, err := newService(t, srv.URL).Checkout(context.Background(), payment.Request{PaymentHistoryID: 12, Amount: 450000})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", out.TransactionID)
	assert.Equal(t, "pi_123_secret_abc", out.ClientSecret)
}

func TestCheckoutRejectsZeroAmount(t *testing.T) {
	_, err := newService(t, "http://unused").Checkout(context.Background(), payment.Request{PaymentHistoryID: 1})
	assert.True(t, apperr.IsValidation(err))
}

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestParseWebhookSucceeded(t *testing.T) {
	svc := newService(t, "http://unused")
	header, body := signed(t, `{"id":"evt_1","object":"event","type":"payment_intent.succeeded",
		"data":{"object":{"id":"pi_9","object":"payment_intent","metadata":{"payment_history_id":"33"}}}}`)

	ev, err := svc.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "pi_9", ev.PaymentIntentID)
	assert.Equal(t, int64(33), ev.PaymentHistoryID)
}

func TestParseWebhookFailures(t *testing.T) {
	svc := newService(t, "http://unused")

	_, body := signed(t, `{"id":"evt_2","object":"event","type":"payment_intent.succeeded","data":{"object":{}}}`)
	_, err := svc.ParseWebhook(body, "t=1,v1=bad")
	assert.True(t, apperr.IsValidation(err))

	header, body := signed(t, `{"id":"evt_3","object":"event","type":"payment_intent.payment_failed",
		"data":{"object":{"id":"pi_7","object":"payment_intent","metadata":{}}}}`)
	_, err = svc.ParseWebhook(body, header)
	assert.True(t, apperr.IsValidation(err))

	header, body = signed(t, `{"id":"evt_4","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)
	ev, err := svc.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "customer.created", ev.Type)
	assert.Zero(t, ev.PaymentHistoryID)
}
