package booking

import (
	"context"
	"errors"
	"fmt"

	"busticket/internal/apperr"
	bookingdb "busticket/internal/booking/db"
	"busticket/internal/models"
	"busticket/internal/payment"
	"busticket/internal/qr"
	"busticket/internal/utils"
)

var (
	errAlreadyPaid = apperr.ValidationError{Msg: "Đơn đã được thanh toán", Err: payment.ErrAlreadyPaid}
	errNotPayable  = apperr.ValidationError{Msg: "Đơn đã bị hủy hoặc hết hạn giữ chỗ, không thể thanh toán", Err: payment.ErrNotPayable}
)

// PayTicket settles a payment group. Every gateway confirmation and the
// admin cash endpoint end up here.
func (s *Service) PayTicket(ctx context.Context, paymentHistoryID int64, method models.PaymentMethod, transID string) (*models.PayResult, error) {
	ph, err := s.DB.GetPayment(ctx, paymentHistoryID)
	if err != nil {
		return nil, notFound("payment", err)
	}
	switch ph.Status {
	case models.PaymentSuccess:
		return nil, errAlreadyPaid
	case models.PaymentFailed, models.PaymentRefunded:
		return nil, errNotPayable
	}
	tickets, err := s.DB.GroupTickets(ctx, ph.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets of payment %d: %w", ph.ID, err)
	}
	if len(tickets) == 0 {
		return nil, apperr.NotFound("ticket")
	}
	for _, t := range tickets {
		if t.Status != models.TicketBooked {
			return nil, errNotPayable
		}
	}

	now := s.now()
	first := tickets[0]
	if first.Schedule != nil && utils.HoursUntil(first.Schedule.DepartureAt, now) < s.Config.MinHoursBeforeDeparture {
		return nil, apperr.Invalidf("Chỉ được thanh toán trước %g giờ khởi hành", s.Config.MinHoursBeforeDeparture)
	}
	if method == "" {
		method = ph.Method
	}

	var qrURL string
	if s.QR != nil {
		token, err := s.QR.Token(first.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to sign ticket %d: %w", first.ID, err)
		}
		qrURL = qr.VerifyURL(s.FrontendURL, token)
	}

	ids := ticketIDs(tickets)
	seatIDs := make([]int64, len(tickets))
	for i, t := range tickets {
		seatIDs[i] = t.SeatID
	}
	err = s.DB.Settle(ctx, bookingdb.Settlement{
		PaymentHistoryID: ph.ID,
		Method:           method,
		TransactionID:    transID,
		QRCode:           qrURL,
		PaidAt:           now.UTC(),
		TicketIDs:        ids,
		SeatIDs:          seatIDs,
	})
	switch {
	case errors.Is(err, payment.ErrAlreadyPaid):
		return nil, errAlreadyPaid
	case errors.Is(err, payment.ErrNotPayable):
		return nil, errNotPayable
	case err != nil:
		return nil, fmt.Errorf("failed to settle payment %d: %w", ph.ID, err)
	}
	s.Logger.LogPayment(string(method), ph.ID, fmt.Sprintf("settled %d ticket(s), transaction %q", len(ids), transID))

	if ph.PromotionID != nil && s.Promotions != nil {
		if err := s.Promotions.IncrementUsage(ctx, *ph.PromotionID); err != nil {
			s.Logger.Warn("PROMOTION", err.Error())
		}
	}
	if err := s.Jobs.RemoveForTickets(ctx, ids); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("Failed to remove jobs of payment %d: %v", ph.ID, err))
	}
	for _, t := range tickets {
		if err := s.Locks.Release(ctx, t.ScheduleID, t.SeatID); err != nil {
			s.Logger.Warn("SEATLOCK", fmt.Sprintf("Failed to release seat %d: %v", t.SeatID, err))
		}
	}

	s.publish(s.Topics.TicketPaid, ph.ID, models.TicketEvent{
		PaymentHistoryID: ph.ID,
		TicketIDs:        ids,
		UserID:           first.UserID,
		ScheduleID:       first.ScheduleID,
		Status:           string(models.TicketPaid),
		Amount:           ph.Amount,
		OccurredAt:       now.UTC(),
	})
	s.publish(s.Topics.SeatStatus, first.ScheduleID, models.NewSeatStatusEvent(first.ScheduleID, seatIDs, models.SeatStatusBooked))

	code := utils.BookingCode(ph.ID)
	s.notify(ctx, first.UserID, "Thanh toán thành công",
		fmt.Sprintf("Bạn đã thanh toán thành công %d vé. Mã đơn: %s. Chúc bạn có chuyến đi vui vẻ!", len(ids), code),
		models.NotificationPayment)

	if s.EmailInline {
		if err := s.SendTicketEmail(ctx, ph.ID); err != nil {
			s.Logger.Error("EMAIL", fmt.Sprintf("Failed to send tickets of payment %d: %v", ph.ID, err))
		}
	}

	return &models.PayResult{
		Message:          "Thanh toán thành công",
		PaymentHistoryID: ph.ID,
		QRCode:           qrURL,
	}, nil
}
