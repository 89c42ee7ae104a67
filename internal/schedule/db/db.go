package db

import (
	"context"
	"strings"
	"time"

	"busticket/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// SearchFilter narrows Search; zero values are ignored.
type SearchFilter struct {
	StartPoint string
	EndPoint   string
	From       time.Time
	To         time.Time
}

func (d *DB) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	_, err := d.Bun.NewInsert().Model(s).Exec(ctx)
	return err
}

// GetSchedule loads a schedule with bus, brand, route and drop-off points.
func (d *DB) GetSchedule(ctx context.Context, id int64) (*models.Schedule, error) {
	var s models.Schedule
	err := d.Bun.NewSelect().
		Model(&s).
		Relation("Bus").
		Relation("Bus.Brand").
		Relation("Route").
		Relation("DropoffPoints", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("dropoff_point.sort_order ASC", "dropoff_point.id ASC")
		}).
		Where("schedule.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) Search(ctx context.Context, f SearchFilter) ([]models.Schedule, error) {
	var schedules []models.Schedule
	q := d.Bun.NewSelect().
		Model(&schedules).
		Relation("Bus").
		Relation("Bus.Brand").
		Relation("Route")
	if f.StartPoint != "" {
		q = q.Where("LOWER(route.start_point) LIKE ?", "%"+strings.ToLower(f.StartPoint)+"%")
	}
	if f.EndPoint != "" {
		q = q.Where("LOWER(route.end_point) LIKE ?", "%"+strings.ToLower(f.EndPoint)+"%")
	}
	if !f.From.IsZero() {
		q = q.Where("schedule.departure_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("schedule.departure_at <= ?", f.To)
	}
	err := q.Order("schedule.departure_at ASC").Scan(ctx)
	return schedules, err
}

// DeleteSchedule removes the schedule with everything hanging off it.
func (d *DB) DeleteSchedule(ctx context.Context, id int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		tickets := tx.NewSelect().Model((*models.Ticket)(nil)).Column("id").Where("schedule_id = ?", id)
		if _, err := tx.NewDelete().Model((*models.TicketPayment)(nil)).Where("ticket_id IN (?)", tickets).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.Review)(nil)).Where("ticket_id IN (?)", tickets).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.Ticket)(nil)).Where("schedule_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.DropoffPoint)(nil)).Where("schedule_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*models.Schedule)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
}

func (d *DB) SeatsByBus(ctx context.Context, busID int64) ([]models.Seat, error) {
	var seats []models.Seat
	err := d.Bun.NewSelect().Model(&seats).Where("bus_id = ?", busID).Order("seat_number ASC").Scan(ctx)
	return seats, err
}

// BookedSeatIDs returns seats holding a BOOKED or PAID ticket on the schedule.
func (d *DB) BookedSeatIDs(ctx context.Context, scheduleID int64) ([]int64, error) {
	var ids []int64
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("seat_id").
		Where("schedule_id = ?", scheduleID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketBooked, models.TicketPaid})).
		Scan(ctx, &ids)
	return ids, err
}

// TransitionStatus moves schedules in status from to status to when the
// column timeCol is at or before now. It returns the moved schedules.
func (d *DB) TransitionStatus(ctx context.Context, from, to models.ScheduleStatus, timeCol string, now time.Time) ([]models.Schedule, error) {
	var moved []models.Schedule
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&moved).
			Relation("Route").
			Where("schedule.status = ?", from).
			Where("schedule.? <= ?", bun.Ident(timeCol), now).
			Scan(ctx)
		if err != nil || len(moved) == 0 {
			return err
		}
		ids := make([]int64, len(moved))
		for i := range moved {
			ids[i] = moved[i].ID
			moved[i].Status = to
		}
		_, err = tx.NewUpdate().
			Model((*models.Schedule)(nil)).
			Set("status = ?", to).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	return moved, err
}

func (d *DB) ListDropoffPoints(ctx context.Context, scheduleID int64) ([]models.DropoffPoint, error) {
	var points []models.DropoffPoint
	err := d.Bun.NewSelect().
		Model(&points).
		Where("schedule_id = ?", scheduleID).
		Order("sort_order ASC", "id ASC").
		Scan(ctx)
	return points, err
}

func (d *DB) GetDropoffPoint(ctx context.Context, id int64) (*models.DropoffPoint, error) {
	var p models.DropoffPoint
	if err := d.Bun.NewSelect().Model(&p).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveDropoffPoint inserts or updates p. When p is the default every other
// point of the schedule loses the flag in the same transaction.
func (d *DB) SaveDropoffPoint(ctx context.Context, p *models.DropoffPoint) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if p.IsDefault {
			q := tx.NewUpdate().
				Model((*models.DropoffPoint)(nil)).
				Set("is_default = ?", false).
				Where("schedule_id = ?", p.ScheduleID)
			if p.ID > 0 {
				q = q.Where("id <> ?", p.ID)
			}
			if _, err := q.Exec(ctx); err != nil {
				return err
			}
		}
		if p.ID == 0 {
			_, err := tx.NewInsert().Model(p).Exec(ctx)
			return err
		}
		_, err := tx.NewUpdate().
			Model(p).
			Column("name", "address", "surcharge", "price_difference", "is_default", "sort_order").
			WherePK().
			Exec(ctx)
		return err
	})
}

func (d *DB) DropoffPointInUse(ctx context.Context, id int64) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Ticket)(nil)).Where("dropoff_point_id = ?", id).Exists(ctx)
}

func (d *DB) DeleteDropoffPoint(ctx context.Context, id int64) error {
	_, err := d.Bun.NewDelete().Model((*models.DropoffPoint)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// PaidSeatNumbers lists seat numbers of PAID tickets on the schedule.
func (d *DB) PaidSeatNumbers(ctx context.Context, scheduleID int64) ([]int, error) {
	var numbers []int
	err := d.Bun.NewSelect().
		TableExpr("tickets AS t").
		ColumnExpr("s.seat_number").
		Join("JOIN seats AS s ON s.id = t.seat_id").
		Where("t.schedule_id = ?", scheduleID).
		Where("t.status = ?", models.TicketPaid).
		OrderExpr("s.seat_number ASC").
		Scan(ctx, &numbers)
	return numbers, err
}
