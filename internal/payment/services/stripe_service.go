package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"busticket/internal/apperr"
	"busticket/internal/config"
	"busticket/internal/logger"
	"busticket/internal/payment"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrWebhookNotConfigured   = errors.New("stripe webhook secret is not configured")
)

const metadataPaymentHistoryID = "payment_history_id"

// StripeService collects CREDIT_CARD payments through PaymentIntents.
type StripeService struct {
	client        *client.API
	webhookSecret string
	log           *logger.Logger
}

// NewStripeService builds a client from cfg. backends may be nil.
func NewStripeService(cfg config.StripeConfig, backends *stripe.Backends, log *logger.Logger) (*StripeService, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY is not set")
		return nil, ErrStripeClientInitFailed
	}
	sc := client.New(cfg.SecretKey, backends)
	if sc == nil {
		return nil, ErrStripeClientInitFailed
	}
	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{client: sc, webhookSecret: cfg.WebhookSecret, log: log}, nil
}

// Checkout creates a PaymentIntent in VND, which Stripe treats as zero-decimal.
func (s *StripeService) Checkout(_ context.Context, req payment.Request) (*payment.Checkout, error) {
	if req.Amount <= 0 {
		return nil, apperr.Invalidf("Số tiền thanh toán không hợp lệ: %.0f", req.Amount)
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(int64(req.Amount)),
		Currency:           stripe.String(string(stripe.CurrencyVND)),
		Description:        stripe.String(fmt.Sprintf("Busticket payment #%d", req.PaymentHistoryID)),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Metadata:           map[string]string{metadataPaymentHistoryID: strconv.FormatInt(req.PaymentHistoryID, 10)},
	}
	if req.UserEmail != "" {
		params.ReceiptEmail = stripe.String(req.UserEmail)
	}
	params.SetIdempotencyKey(uuid.NewString())

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, apperr.Invalidf("Không thể tạo thanh toán thẻ: %v", err)
	}
	s.log.LogPayment("STRIPE", req.PaymentHistoryID, fmt.Sprintf("payment intent %s created (%s)", pi.ID, pi.Status))
	return &payment.Checkout{TransactionID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// WebhookEvent is the part of a Stripe event the callback handler acts on.
type WebhookEvent struct {
	Type             string
	PaymentIntentID  string
	PaymentHistoryID int64
	FailureMessage   string
}

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// ParseWebhook verifies the Stripe-Signature header and decodes payment intent events.
// Other event types come back with only Type set.
func (s *StripeService) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if s.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperr.Invalidf("Webhook signature verification failed: %v", err)
	}

	out := &WebhookEvent{Type: string(event.Type)}
	if out.Type != EventPaymentSucceeded && out.Type != EventPaymentFailed {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, apperr.Invalidf("Invalid event data: %v", err)
	}
	id, err := strconv.ParseInt(pi.Metadata[metadataPaymentHistoryID], 10, 64)
	if err != nil {
		return nil, apperr.Invalid("Payment intent has no payment_history_id in metadata")
	}
	out.PaymentIntentID = pi.ID
	out.PaymentHistoryID = id
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out, nil
}
