package db

import (
	"context"

	"busticket/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := d.Bun.NewInsert().Model(u).Exec(ctx)
	return err
}

func (d *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().Model(&u).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().Model(&u).Where("email = ?", email).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().Model(&u).Where("uid = ?", uid).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	return d.Bun.NewSelect().Model((*models.User)(nil)).Where("email = ?", email).Exists(ctx)
}

func (d *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.Bun.NewSelect().Model(&users).Order("created_at DESC", "id DESC").Scan(ctx)
	return users, err
}

// UpdateUser writes the given columns, plus updated_at.
func (d *DB) UpdateUser(ctx context.Context, u *models.User, columns ...string) error {
	_, err := d.Bun.NewUpdate().
		Model(u).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) HasTickets(ctx context.Context, userID int64) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Ticket)(nil)).Where("user_id = ?", userID).Exists(ctx)
}

// DeleteUser removes the user with its notifications and reviews.
func (d *DB) DeleteUser(ctx context.Context, id int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.Notification)(nil)).Where("user_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.Review)(nil)).Where("user_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*models.User)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
}
