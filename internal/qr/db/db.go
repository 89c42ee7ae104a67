package db

import (
	"context"

	"busticket/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetTicketDetail loads a ticket with everything printed on a boarding check.
func (d *DB) GetTicketDetail(ctx context.Context, id int64) (*models.Ticket, error) {
	var t models.Ticket
	err := d.Bun.NewSelect().
		Model(&t).
		Relation("User").
		Relation("Seat").
		Relation("PaymentHistory").
		Relation("Schedule").
		Relation("Schedule.Route").
		Relation("Schedule.Bus").
		Where("ticket.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
