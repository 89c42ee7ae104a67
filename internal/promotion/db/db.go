package db

import (
	"context"
	"time"

	"busticket/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	_, err := d.Bun.NewInsert().Model(p).Exec(ctx)
	return err
}

func (d *DB) GetPromotion(ctx context.Context, id int64) (*models.Promotion, error) {
	var p models.Promotion
	if err := d.Bun.NewSelect().Model(&p).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) GetPromotionByCode(ctx context.Context, code string) (*models.Promotion, error) {
	var p models.Promotion
	if err := d.Bun.NewSelect().Model(&p).Where("code = ?", code).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) CodeExists(ctx context.Context, code string) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Promotion)(nil)).Where("code = ?", code).Exists(ctx)
}

func (d *DB) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := d.Bun.NewSelect().Model(&promos).Order("created_at DESC", "id DESC").Scan(ctx)
	return promos, err
}

// ListActive returns enabled promotions whose window contains now.
func (d *DB) ListActive(ctx context.Context, now time.Time) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := d.Bun.NewSelect().
		Model(&promos).
		Where("is_active = ?", true).
		Where("start_date <= ?", now).
		Where("end_date >= ?", now).
		Order("end_date ASC").
		Scan(ctx)
	return promos, err
}

func (d *DB) UpdatePromotion(ctx context.Context, p *models.Promotion) error {
	_, err := d.Bun.NewUpdate().
		Model(p).
		Column("description", "discount_type", "discount_value", "min_order_value", "max_discount",
			"start_date", "end_date", "usage_limit", "is_active", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) IncrementUsage(ctx context.Context, id int64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Promotion)(nil)).
		Set("used_count = used_count + 1").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeletePromotion detaches payments that used the promotion, then deletes it.
func (d *DB) DeletePromotion(ctx context.Context, id int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.PaymentHistory)(nil)).
			Set("promotion_id = NULL").
			Where("promotion_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*models.Promotion)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
}
