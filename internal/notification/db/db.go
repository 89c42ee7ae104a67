package db

import (
	"context"

	"busticket/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := d.Bun.NewInsert().Model(n).Exec(ctx)
	return err
}

func (d *DB) ListByUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	var list []models.Notification
	err := d.Bun.NewSelect().
		Model(&list).
		Where("user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	return list, err
}

// MarkAsRead reports whether a notification of userID was updated.
func (d *DB) MarkAsRead(ctx context.Context, id, userID int64) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d *DB) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) CountUnread(ctx context.Context, userID int64) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Notification)(nil)).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Count(ctx)
}
