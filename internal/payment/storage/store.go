package storage

import (
	"context"
	"time"

	"busticket/internal/models"
)

// Store is the lookup side of payment histories used by gateway callbacks.
type Store interface {
	GetPayment(ctx context.Context, id int64) (*models.PaymentHistory, error)
	GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.PaymentHistory, error)
	MarkFailed(ctx context.Context, id int64, now time.Time) (bool, error)
	HealthCheck(ctx context.Context) error
}
