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

// GetTicket loads a ticket with its schedule.
func (d *DB) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	var t models.Ticket
	err := d.Bun.NewSelect().
		Model(&t).
		Relation("Schedule").
		Where("ticket.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) ReviewExistsForTicket(ctx context.Context, ticketID int64) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Review)(nil)).Where("ticket_id = ?", ticketID).Exists(ctx)
}

func (d *DB) CreateReview(ctx context.Context, r *models.Review) error {
	_, err := d.Bun.NewInsert().Model(r).Exec(ctx)
	return err
}

func (d *DB) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	var r models.Review
	if err := d.Bun.NewSelect().Model(&r).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *DB) ListByBus(ctx context.Context, busID int64) ([]models.Review, error) {
	var list []models.Review
	err := d.Bun.NewSelect().
		Model(&list).
		Relation("User").
		Where("review.bus_id = ?", busID).
		Order("review.created_at DESC", "review.id DESC").
		Scan(ctx)
	return list, err
}

func (d *DB) ListByUser(ctx context.Context, userID int64) ([]models.Review, error) {
	var list []models.Review
	err := d.Bun.NewSelect().
		Model(&list).
		Relation("Bus").
		Where("review.user_id = ?", userID).
		Order("review.created_at DESC", "review.id DESC").
		Scan(ctx)
	return list, err
}

func (d *DB) ListAll(ctx context.Context) ([]models.Review, error) {
	var list []models.Review
	err := d.Bun.NewSelect().
		Model(&list).
		Relation("User").
		Relation("Bus").
		Order("review.created_at DESC", "review.id DESC").
		Scan(ctx)
	return list, err
}

// Unreviewed returns the user's paid tickets of completed trips that have
// no review yet, latest departure first.
func (d *DB) Unreviewed(ctx context.Context, userID int64, now time.Time) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Seat").
		Relation("Schedule").
		Relation("Schedule.Route").
		Relation("Schedule.Bus").
		Where("ticket.user_id = ?", userID).
		Where("ticket.status = ?", models.TicketPaid).
		Where("schedule.status = ?", models.ScheduleCompleted).
		Where("schedule.arrival_at < ?", now).
		Where("NOT EXISTS (SELECT 1 FROM reviews AS rv WHERE rv.ticket_id = ticket.id)").
		Order("schedule.departure_at DESC").
		Scan(ctx)
	return tickets, err
}

// Stats returns the average rating and review count of a bus.
func (d *DB) Stats(ctx context.Context, busID int64) (float64, int, error) {
	var avg float64
	var count int
	err := d.Bun.NewSelect().
		Model((*models.Review)(nil)).
		ColumnExpr("COALESCE(AVG(rating), 0)").
		ColumnExpr("COUNT(*)").
		Where("bus_id = ?", busID).
		Scan(ctx, &avg, &count)
	return avg, count, err
}

func (d *DB) UpdateReview(ctx context.Context, r *models.Review, columns ...string) error {
	_, err := d.Bun.NewUpdate().Model(r).Column(append(columns, "updated_at")...).WherePK().Exec(ctx)
	return err
}

func (d *DB) DeleteReview(ctx context.Context, id int64) error {
	_, err := d.Bun.NewDelete().Model((*models.Review)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}
