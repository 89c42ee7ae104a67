package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"busticket/internal/apperr"
	"busticket/internal/models"
	"busticket/internal/utils"
)

// DropoffInfo describes where t leaves the bus.
func DropoffInfo(t *models.Ticket) models.DropoffInfo {
	switch {
	case t.DropoffAddress != "":
		return models.DropoffInfo{
			Type:          "tannoi",
			Display:       "Trả tận nơi",
			Address:       t.DropoffAddress,
			Surcharge:     t.Surcharge,
			SurchargeText: "+" + utils.FormatVND(t.Surcharge),
		}
	case t.DropoffPoint != nil:
		p := t.DropoffPoint
		addr := p.Address
		if addr == "" {
			addr = p.Name
		}
		text := "Miễn phí"
		if t.Surcharge > 0 {
			text = "+" + strconv.FormatFloat(t.Surcharge/1000, 'f', -1, 64) + "k"
		}
		return models.DropoffInfo{
			Type:          "diemtra",
			Display:       p.Name,
			Address:       addr,
			Surcharge:     t.Surcharge,
			SurchargeText: text,
		}
	default:
		var end string
		if t.Schedule != nil && t.Schedule.Route != nil {
			end = t.Schedule.Route.EndPoint
		}
		return models.DropoffInfo{
			Type:          "default",
			Display:       "Bến xe đích",
			Address:       end,
			SurchargeText: "Miễn phí",
		}
	}
}

func views(tickets []models.Ticket) []models.TicketView {
	out := make([]models.TicketView, len(tickets))
	for i := range tickets {
		out[i] = models.TicketView{Ticket: tickets[i], DropoffInfo: DropoffInfo(&tickets[i])}
	}
	return out
}

func seatLabel(t *models.Ticket) string {
	if t.Seat == nil {
		return ""
	}
	if t.Seat.Code != "" {
		return t.Seat.Code
	}
	return utils.PadSeat(t.Seat.SeatNumber)
}

func routeLabel(t *models.Ticket) string {
	if t.Schedule == nil {
		return ""
	}
	return t.Schedule.Route.Label()
}

func (s *Service) TicketsByUser(ctx context.Context, userID int64) ([]models.TicketView, error) {
	tickets, err := s.DB.TicketsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets of user %d: %w", userID, err)
	}
	return views(tickets), nil
}

// owned loads a ticket visible to the caller.
func (s *Service) owned(ctx context.Context, ticketID, userID int64, isAdmin bool) (*models.Ticket, error) {
	t, err := s.DB.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, notFound("ticket", err)
	}
	if !isAdmin && t.UserID != userID {
		return nil, apperr.Forbidden("Bạn không có quyền xem vé này")
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, ticketID, userID int64, isAdmin bool) (*models.TicketView, error) {
	t, err := s.owned(ctx, ticketID, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	return &models.TicketView{Ticket: *t, DropoffInfo: DropoffInfo(t)}, nil
}

func (s *Service) Status(ctx context.Context, ticketID, userID int64, isAdmin bool) (models.TicketStatus, error) {
	t, err := s.owned(ctx, ticketID, userID, isAdmin)
	if err != nil {
		return "", err
	}
	return t.Status, nil
}

func (s *Service) All(ctx context.Context) ([]models.TicketView, error) {
	tickets, err := s.DB.AllTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return views(tickets), nil
}

// paymentOf resolves the payment group of a ticket.
func (s *Service) paymentOf(ctx context.Context, t *models.Ticket) (int64, error) {
	id, err := s.DB.PaymentForTicket(ctx, t.ID)
	if err == nil && id != 0 {
		return id, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to resolve payment of ticket %d: %w", t.ID, err)
	}
	if t.PaymentHistoryID != nil {
		return *t.PaymentHistoryID, nil
	}
	return 0, apperr.NotFound("payment")
}

func summarize(ph *models.PaymentHistory, tickets []models.Ticket) models.PaymentSummary {
	sum := models.PaymentSummary{
		PaymentHistoryID: ph.ID,
		TicketCode:       utils.BookingCode(ph.ID),
		Price:            ph.Amount,
		Method:           ph.Method.Label(),
		Status:           ph.Status.Label(),
		PaidAt:           ph.PaidAt,
		TransactionID:    ph.TransactionID,
		QRCode:           ph.QRCode,
		TicketIDs:        ticketIDs(tickets),
		DiscountAmount:   ph.DiscountAmount,
	}
	if len(tickets) > 0 {
		first := &tickets[0]
		sum.Route = routeLabel(first)
		if first.Schedule != nil {
			sum.DepartureTime = first.Schedule.DepartureAt
		}
		if len(tickets) == 1 {
			sum.Seat = seatLabel(first)
		} else {
			sum.Seat = fmt.Sprintf("%d ghế", len(tickets))
		}
	}
	return sum
}

func (s *Service) PaymentHistoryByTicket(ctx context.Context, ticketID, userID int64, isAdmin bool) (*models.PaymentSummary, error) {
	t, err := s.owned(ctx, ticketID, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	phID, err := s.paymentOf(ctx, t)
	if err != nil {
		return nil, err
	}
	ph, err := s.DB.GetPayment(ctx, phID)
	if err != nil {
		return nil, notFound("payment", err)
	}
	tickets, err := s.DB.GroupTickets(ctx, ph.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets of payment %d: %w", ph.ID, err)
	}
	sum := summarize(ph, tickets)
	return &sum, nil
}

func (s *Service) PaymentDetail(ctx context.Context, paymentHistoryID, userID int64, isAdmin bool) (*models.PaymentDetail, error) {
	ph, err := s.DB.GetPayment(ctx, paymentHistoryID)
	if err != nil {
		return nil, notFound("payment", err)
	}
	tickets, err := s.DB.GroupTickets(ctx, ph.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets of payment %d: %w", ph.ID, err)
	}
	if len(tickets) == 0 {
		return nil, apperr.NotFound("ticket")
	}
	if !isAdmin && tickets[0].UserID != userID {
		return nil, apperr.Forbidden("Bạn không có quyền xem đơn này")
	}

	d := &models.PaymentDetail{PaymentSummary: summarize(ph, tickets)}
	for i := range tickets {
		d.SeatList = append(d.SeatList, seatLabel(&tickets[i]))
	}
	sort.Strings(d.SeatList)
	d.DropoffInfo = DropoffInfo(&tickets[0])
	if ph.Promotion != nil {
		d.PromotionCode = ph.Promotion.Code
		d.PromotionDescription = ph.Promotion.Description
	}
	if sched := tickets[0].Schedule; sched != nil && sched.Bus != nil {
		d.BusName = sched.Bus.Name
		if sched.Bus.Brand != nil {
			d.BrandName = sched.Bus.Brand.Name
		}
	}
	return d, nil
}

func bookingStatus(st models.PaymentStatus) string {
	switch st {
	case models.PaymentSuccess:
		return string(models.TicketPaid)
	case models.PaymentPending:
		return string(models.TicketBooked)
	default:
		return string(models.TicketCancelled)
	}
}

func adminBooking(ph *models.PaymentHistory, tickets []models.Ticket) models.AdminBooking {
	b := models.AdminBooking{
		ID:          ph.ID,
		BookingCode: utils.BookingCode(ph.ID),
		Status:      bookingStatus(ph.Status),
		TotalAmount: ph.Amount,
		Method:      ph.Method.Label(),
		CreatedAt:   ph.CreatedAt,
		Seats:       []string{},
		Tickets:     tickets,
	}
	if len(tickets) > 0 {
		first := &tickets[0]
		if first.User != nil {
			b.CustomerName = first.User.Name
			b.CustomerEmail = first.User.Email
		}
		b.Route = routeLabel(first)
		if first.Schedule != nil {
			b.DepartureAt = first.Schedule.DepartureAt
		}
	}
	for i := range tickets {
		b.Seats = append(b.Seats, seatLabel(&tickets[i]))
	}
	return b
}

// AdminBookings lists payment groups newest first with their tickets.
func (s *Service) AdminBookings(ctx context.Context) ([]models.AdminBooking, error) {
	payments, err := s.DB.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	tickets, err := s.DB.TicketsWithPayment(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	byPayment := make(map[int64][]models.Ticket)
	for _, t := range tickets {
		byPayment[*t.PaymentHistoryID] = append(byPayment[*t.PaymentHistoryID], t)
	}
	out := make([]models.AdminBooking, 0, len(payments))
	for i := range payments {
		group := byPayment[payments[i].ID]
		if len(group) == 0 {
			continue
		}
		out = append(out, adminBooking(&payments[i], group))
	}
	return out, nil
}

func (s *Service) AdminBooking(ctx context.Context, paymentHistoryID int64) (*models.AdminBooking, error) {
	ph, err := s.DB.GetPayment(ctx, paymentHistoryID)
	if err != nil {
		return nil, notFound("booking", err)
	}
	tickets, err := s.DB.GroupTickets(ctx, ph.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets of payment %d: %w", ph.ID, err)
	}
	b := adminBooking(ph, tickets)
	return &b, nil
}
