package db

import (
	"context"
	"time"

	"busticket/internal/models"
	"busticket/internal/payment"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

var activeStatuses = []models.TicketStatus{models.TicketBooked, models.TicketPaid}

// ticketRelations loads everything a ticket view or e-ticket needs.
func ticketRelations(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("User").
		Relation("Seat").
		Relation("DropoffPoint").
		Relation("PaymentHistory").
		Relation("Schedule").
		Relation("Schedule.Route").
		Relation("Schedule.Bus").
		Relation("Schedule.Bus.Brand")
}

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

func (d *DB) GetSeat(ctx context.Context, id int64) (*models.Seat, error) {
	var seat models.Seat
	if err := d.Bun.NewSelect().Model(&seat).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &seat, nil
}

// SeatTaken reports a BOOKED or PAID ticket on the seat for the schedule.
func (d *DB) SeatTaken(ctx context.Context, scheduleID, seatID int64) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("schedule_id = ?", scheduleID).
		Where("seat_id = ?", seatID).
		Where("status IN (?)", bun.In(activeStatuses)).
		Exists(ctx)
}

func (d *DB) CountUserTickets(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("user_id = ?", userID).
		Where("created_at >= ?", from).
		Where("created_at < ?", to).
		Count(ctx)
}

func (d *DB) CountBrandTickets(ctx context.Context, brandID int64, from, to time.Time) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Join("JOIN schedules AS s ON s.id = ticket.schedule_id").
		Join("JOIN buses AS b ON b.id = s.bus_id").
		Where("b.brand_id = ?", brandID).
		Where("ticket.created_at >= ?", from).
		Where("ticket.created_at < ?", to).
		Count(ctx)
}

// CountSold counts BOOKED and PAID tickets of a schedule.
func (d *DB) CountSold(ctx context.Context, scheduleID int64) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("schedule_id = ?", scheduleID).
		Where("status IN (?)", bun.In(activeStatuses)).
		Count(ctx)
}

// CreateBooking writes the payment group, its tickets and join rows in one transaction.
func (d *DB) CreateBooking(ctx context.Context, ph *models.PaymentHistory, tickets []*models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(ph).Exec(ctx); err != nil {
			return err
		}
		for _, t := range tickets {
			t.PaymentHistoryID = &ph.ID
			if _, err := tx.NewInsert().Model(t).Exec(ctx); err != nil {
				return err
			}
			link := &models.TicketPayment{TicketID: t.ID, PaymentID: ph.ID, CreatedAt: t.CreatedAt}
			if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) SetCheckout(ctx context.Context, paymentHistoryID int64, payURL, transactionID string) error {
	q := d.Bun.NewUpdate().
		Model((*models.PaymentHistory)(nil)).
		Set("pay_url = ?", payURL).
		Where("id = ?", paymentHistoryID)
	if transactionID != "" {
		q = q.Set("transaction_id = ?", transactionID)
	}
	_, err := q.Exec(ctx)
	return err
}

// AbortBooking cancels a group whose gateway checkout failed.
func (d *DB) AbortBooking(ctx context.Context, paymentHistoryID int64, ticketIDs []int64, now time.Time) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketCancelled).
			Set("updated_at = ?", now).
			Where("id IN (?)", bun.In(ticketIDs)).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewUpdate().
			Model((*models.PaymentHistory)(nil)).
			Set("status = ?", models.PaymentFailed).
			Set("updated_at = ?", now).
			Where("id = ?", paymentHistoryID).
			Exec(ctx)
		return err
	})
}

func (d *DB) GetPayment(ctx context.Context, id int64) (*models.PaymentHistory, error) {
	var ph models.PaymentHistory
	err := d.Bun.NewSelect().
		Model(&ph).
		Relation("Promotion").
		Where("payment_history.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ph, nil
}

// GroupTickets returns the tickets of a payment via the join table, falling
// back to tickets that reference the payment directly.
func (d *DB) GroupTickets(ctx context.Context, paymentHistoryID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	linked := d.Bun.NewSelect().
		Model((*models.TicketPayment)(nil)).
		Column("ticket_id").
		Where("payment_id = ?", paymentHistoryID)
	err := d.Bun.NewSelect().
		Model(&tickets).
		Apply(ticketRelations).
		Where("ticket.id IN (?)", linked).
		Order("ticket.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(tickets) > 0 {
		return tickets, nil
	}
	err = d.Bun.NewSelect().
		Model(&tickets).
		Apply(ticketRelations).
		Where("ticket.payment_history_id = ?", paymentHistoryID).
		Order("ticket.id ASC").
		Scan(ctx)
	return tickets, err
}

// Settlement is what PayTicket writes once a gateway confirms payment.
type Settlement struct {
	PaymentHistoryID int64
	Method           models.PaymentMethod
	TransactionID    string
	QRCode           string
	PaidAt           time.Time
	TicketIDs        []int64
	SeatIDs          []int64
}

// Settle marks a PENDING payment SUCCESS and its BOOKED tickets PAID. It
// returns payment.ErrAlreadyPaid when another settlement won, and
// payment.ErrNotPayable when the payment or any ticket is no longer pending.
func (d *DB) Settle(ctx context.Context, s Settlement) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*models.PaymentHistory)(nil)).
			Set("status = ?", models.PaymentSuccess).
			Set("method = ?", s.Method).
			Set("qr_code = ?", s.QRCode).
			Set("paid_at = ?", s.PaidAt).
			Set("updated_at = ?", s.PaidAt).
			Where("id = ?", s.PaymentHistoryID).
			Where("status = ?", models.PaymentPending)
		if s.TransactionID != "" {
			// the checkout reference (ZaloPay app_trans_id) stays the lookup key
			q = q.Set("transaction_id = COALESCE(NULLIF(transaction_id, ''), ?)", s.TransactionID)
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			var status string
			if err := tx.NewSelect().
				Model((*models.PaymentHistory)(nil)).
				Column("status").
				Where("id = ?", s.PaymentHistoryID).
				Scan(ctx, &status); err != nil {
				return err
			}
			if models.PaymentStatus(status) == models.PaymentSuccess {
				return payment.ErrAlreadyPaid
			}
			return payment.ErrNotPayable
		}

		res, err = tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketPaid).
			Set("payment_method = ?", s.Method).
			Set("updated_at = ?", s.PaidAt).
			Where("id IN (?)", bun.In(s.TicketIDs)).
			Where("status = ?", models.TicketBooked).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if int(n) != len(s.TicketIDs) {
			return payment.ErrNotPayable
		}

		_, err = tx.NewUpdate().
			Model((*models.Seat)(nil)).
			Set("is_available = ?", false).
			Where("id IN (?)", bun.In(s.SeatIDs)).
			Exec(ctx)
		return err
	})
}

func (d *DB) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	var t models.Ticket
	err := d.Bun.NewSelect().
		Model(&t).
		Apply(ticketRelations).
		Where("ticket.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTicket frees the ticket's seat. A PENDING payment left without
// active tickets is marked FAILED.
func (d *DB) CancelTicket(ctx context.Context, t *models.Ticket, now time.Time) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketCancelled).
			Set("updated_at = ?", now).
			Where("id = ?", t.ID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewUpdate().
			Model((*models.Seat)(nil)).
			Set("is_available = ?", true).
			Where("id = ?", t.SeatID).
			Exec(ctx); err != nil {
			return err
		}
		if t.PaymentHistoryID == nil {
			return nil
		}
		remaining, err := tx.NewSelect().
			Model((*models.Ticket)(nil)).
			Where("payment_history_id = ?", *t.PaymentHistoryID).
			Where("status IN (?)", bun.In(activeStatuses)).
			Count(ctx)
		if err != nil || remaining > 0 {
			return err
		}
		_, err = tx.NewUpdate().
			Model((*models.PaymentHistory)(nil)).
			Set("status = ?", models.PaymentFailed).
			Set("updated_at = ?", now).
			Where("id = ?", *t.PaymentHistoryID).
			Where("status = ?", models.PaymentPending).
			Exec(ctx)
		return err
	})
}

func (d *DB) TicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Apply(ticketRelations).
		Where("ticket.user_id = ?", userID).
		Order("ticket.created_at DESC", "ticket.id DESC").
		Scan(ctx)
	return tickets, err
}

func (d *DB) AllTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Apply(ticketRelations).
		Order("ticket.id ASC").
		Scan(ctx)
	return tickets, err
}

// PaymentForTicket finds the payment a ticket is linked to through the join table.
func (d *DB) PaymentForTicket(ctx context.Context, ticketID int64) (int64, error) {
	var paymentID int64
	err := d.Bun.NewSelect().
		Model((*models.TicketPayment)(nil)).
		Column("payment_id").
		Where("ticket_id = ?", ticketID).
		Order("id DESC").
		Limit(1).
		Scan(ctx, &paymentID)
	return paymentID, err
}

// ListPayments returns payment groups newest first.
func (d *DB) ListPayments(ctx context.Context) ([]models.PaymentHistory, error) {
	var payments []models.PaymentHistory
	err := d.Bun.NewSelect().
		Model(&payments).
		Order("payment_history.created_at DESC", "payment_history.id DESC").
		Scan(ctx)
	return payments, err
}

// TicketsWithPayment returns every ticket that belongs to a payment group.
func (d *DB) TicketsWithPayment(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Apply(ticketRelations).
		Where("ticket.payment_history_id IS NOT NULL").
		Order("ticket.id ASC").
		Scan(ctx)
	return tickets, err
}

func (d *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := d.Bun.NewSelect().Model(&u).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &u, nil
}
