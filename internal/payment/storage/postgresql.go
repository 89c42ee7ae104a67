package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/logger"
	"busticket/internal/models"

	"github.com/uptrace/bun"
)

type PostgreSQLStore struct {
	db  *bun.DB
	log *logger.Logger
}

func NewPostgreSQLStore(db *bun.DB, log *logger.Logger) *PostgreSQLStore {
	return &PostgreSQLStore{db: db, log: log}
}

func (s *PostgreSQLStore) GetPayment(ctx context.Context, id int64) (*models.PaymentHistory, error) {
	var ph models.PaymentHistory
	err := s.db.NewSelect().Model(&ph).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.LogDatabase("NOT_FOUND", "payment_histories", fmt.Sprintf("Payment %d not found", id))
			return nil, apperr.NotFoundError{Resource: "payment", Err: err}
		}
		return nil, fmt.Errorf("failed to get payment %d: %w", id, err)
	}
	return &ph, nil
}

// GetPaymentByTransactionID resolves the gateway reference stored at checkout.
func (s *PostgreSQLStore) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.PaymentHistory, error) {
	var ph models.PaymentHistory
	err := s.db.NewSelect().
		Model(&ph).
		Where("transaction_id = ?", transactionID).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.LogDatabase("NOT_FOUND", "payment_histories", fmt.Sprintf("No payment for transaction %s", transactionID))
			return nil, apperr.NotFoundError{Resource: "payment", Err: err}
		}
		return nil, fmt.Errorf("failed to get payment by transaction %s: %w", transactionID, err)
	}
	return &ph, nil
}

// MarkFailed flips a PENDING payment to FAILED and reports whether it did.
func (s *PostgreSQLStore) MarkFailed(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.PaymentHistory)(nil)).
		Set("status = ?", models.PaymentFailed).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.PaymentPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment %d failed: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.LogPayment("STORE", id, "marked FAILED")
	}
	return n > 0, nil
}

func (s *PostgreSQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
