package db

import (
	"context"
	"time"

	"busticket/internal/models"

	"github.com/uptrace/bun"
)

// DB runs the reporting queries. Queries stick to SQL that PostgreSQL and
// SQLite both accept; calendar bucketing happens in the service.
type DB struct {
	Bun *bun.DB
}

// Activity is one ticket state change used for day and hour buckets.
type Activity struct {
	At     time.Time           `bun:"at"`
	Status models.TicketStatus `bun:"status"`
	Amount float64             `bun:"amount"`
}

// Count is one GROUP BY row.
type Count struct {
	Label string `bun:"label"`
	Count int    `bun:"count"`
}

type Departure struct {
	ScheduleID int64 `bun:"schedule_id"`
	SeatCount  int   `bun:"seat_count"`
	Sold       int   `bun:"sold"`
}

var soldStatuses = []models.TicketStatus{models.TicketBooked, models.TicketPaid}

func (d *DB) TotalRevenue(ctx context.Context) (float64, error) {
	var total float64
	err := d.Bun.NewRaw(
		"SELECT COALESCE(SUM(total_price), 0) FROM tickets WHERE status = ?",
		models.TicketPaid,
	).Scan(ctx, &total)
	return total, err
}

// RevenueBetween sums PAID tickets settled in [from, to).
func (d *DB) RevenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := d.Bun.NewRaw(
		"SELECT COALESCE(SUM(total_price), 0) FROM tickets WHERE status = ? AND updated_at >= ? AND updated_at < ?",
		models.TicketPaid, from.UTC(), to.UTC(),
	).Scan(ctx, &total)
	return total, err
}

func (d *DB) CountSold(ctx context.Context) (int, error) {
	var n int
	err := d.Bun.NewRaw(
		"SELECT COUNT(*) FROM tickets WHERE status IN (?)",
		bun.In(soldStatuses),
	).Scan(ctx, &n)
	return n, err
}

func (d *DB) CountPassengersSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := d.Bun.NewRaw(
		"SELECT COUNT(*) FROM users WHERE role = ? AND created_at >= ?",
		models.RolePassenger, since.UTC(),
	).Scan(ctx, &n)
	return n, err
}

func (d *DB) CountActiveTrips(ctx context.Context) (int, error) {
	var n int
	err := d.Bun.NewRaw(
		"SELECT COUNT(*) FROM schedules WHERE status IN (?)",
		bun.In([]models.ScheduleStatus{models.ScheduleUpcoming, models.ScheduleOngoing}),
	).Scan(ctx, &n)
	return n, err
}

// TicketActivity lists tickets in the given statuses last updated since.
func (d *DB) TicketActivity(ctx context.Context, since time.Time, statuses ...models.TicketStatus) ([]Activity, error) {
	var rows []Activity
	err := d.Bun.NewRaw(
		"SELECT updated_at AS at, status, total_price AS amount FROM tickets WHERE status IN (?) AND updated_at >= ? ORDER BY updated_at",
		bun.In(statuses), since.UTC(),
	).Scan(ctx, &rows)
	return rows, err
}

// BookingTimes lists the creation time of every ticket booked since.
func (d *DB) BookingTimes(ctx context.Context, since time.Time) ([]Activity, error) {
	var rows []Activity
	err := d.Bun.NewRaw(
		"SELECT created_at AS at, status, total_price AS amount FROM tickets WHERE created_at >= ? ORDER BY created_at",
		since.UTC(),
	).Scan(ctx, &rows)
	return rows, err
}

func (d *DB) TopRoutes(ctx context.Context, limit int) ([]models.RouteRevenue, error) {
	var rows []models.RouteRevenue
	err := d.Bun.NewRaw(`
		SELECT r.id AS route_id, r.start_point, r.end_point,
			COUNT(t.id) AS tickets_sold, COALESCE(SUM(t.total_price), 0) AS revenue
		FROM tickets t
		JOIN schedules s ON t.schedule_id = s.id
		JOIN routes r ON s.route_id = r.id
		WHERE t.status = ?
		GROUP BY r.id, r.start_point, r.end_point
		ORDER BY revenue DESC
		LIMIT ?`,
		models.TicketPaid, limit,
	).Scan(ctx, &rows)
	return rows, err
}

func (d *DB) BrandRevenue(ctx context.Context) ([]models.BrandRevenue, error) {
	var rows []models.BrandRevenue
	err := d.Bun.NewRaw(`
		SELECT b.name, COALESCE(SUM(t.total_price), 0) AS revenue
		FROM tickets t
		JOIN schedules s ON t.schedule_id = s.id
		JOIN buses bus ON s.bus_id = bus.id
		JOIN brands b ON bus.brand_id = b.id
		WHERE t.status = ?
		GROUP BY b.name
		ORDER BY revenue DESC`,
		models.TicketPaid,
	).Scan(ctx, &rows)
	return rows, err
}

func (d *DB) StatusCounts(ctx context.Context) ([]Count, error) {
	var rows []Count
	err := d.Bun.NewRaw(
		"SELECT status AS label, COUNT(*) AS count FROM tickets GROUP BY status ORDER BY status",
	).Scan(ctx, &rows)
	return rows, err
}

func (d *DB) RouteTreemap(ctx context.Context) ([]models.TreemapNode, error) {
	var rows []models.TreemapNode
	err := d.Bun.NewRaw(`
		SELECT r.start_point || ' - ' || r.end_point AS name, SUM(t.total_price) AS value
		FROM tickets t
		JOIN schedules s ON t.schedule_id = s.id
		JOIN routes r ON s.route_id = r.id
		WHERE t.status = ?
		GROUP BY r.start_point, r.end_point
		HAVING SUM(t.total_price) > 0
		ORDER BY value DESC`,
		models.TicketPaid,
	).Scan(ctx, &rows)
	return rows, err
}

// Departures lists non-cancelled schedules departing in [from, to] with
// their seat count and BOOKED+PAID tickets.
func (d *DB) Departures(ctx context.Context, from, to time.Time) ([]Departure, error) {
	var rows []Departure
	err := d.Bun.NewRaw(`
		SELECT s.id AS schedule_id, b.seat_count,
			(SELECT COUNT(*) FROM tickets t WHERE t.schedule_id = s.id AND t.status IN (?)) AS sold
		FROM schedules s
		JOIN buses b ON s.bus_id = b.id
		WHERE s.departure_at >= ? AND s.departure_at <= ? AND s.status <> ?`,
		bun.In(soldStatuses), from.UTC(), to.UTC(), models.ScheduleCancelled,
	).Scan(ctx, &rows)
	return rows, err
}

func (d *DB) MethodCounts(ctx context.Context) ([]Count, error) {
	var rows []Count
	err := d.Bun.NewRaw(
		"SELECT COALESCE(payment_method, '') AS label, COUNT(*) AS count FROM tickets WHERE status = ? GROUP BY payment_method ORDER BY count DESC",
		models.TicketPaid,
	).Scan(ctx, &rows)
	return rows, err
}
