package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"busticket/internal/apperr"
	"busticket/internal/models"
	"busticket/internal/utils"
)

const (
	earlyCancelFee = 0.10
	lateCancelFee  = 0.30
)

// refundPolicy decides whether t may be cancelled hoursLeft before
// departure and what fee is kept.
func (s *Service) refundPolicy(t *models.Ticket, hoursLeft float64) (float64, error) {
	var brandID int64
	if t.Schedule != nil && t.Schedule.Bus != nil {
		brandID = t.Schedule.Bus.BrandID
	}
	minHours := s.Config.CancelMinHours

	if brandID == s.Config.SpecialRefundBrandID && t.Status == models.TicketPaid {
		switch {
		case hoursLeft < 4:
			return 0, apperr.Invalid("Không thể hủy vé đã thanh toán trong vòng 4 giờ trước khởi hành")
		case hoursLeft >= 24:
			return earlyCancelFee, nil
		default:
			return lateCancelFee, nil
		}
	}
	if t.Status != models.TicketBooked {
		return 0, apperr.Invalid("Chỉ có thể hủy vé chưa thanh toán")
	}
	if hoursLeft < minHours {
		return 0, apperr.Invalidf("Chỉ được hủy vé trước %g giờ khởi hành", minHours)
	}
	return 0, nil
}

// Cancel cancels a ticket on behalf of its owner or an admin.
func (s *Service) Cancel(ctx context.Context, ticketID, userID int64, isAdmin bool) (*models.CancelResult, error) {
	t, err := s.DB.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, notFound("ticket", err)
	}
	if !isAdmin && t.UserID != userID {
		return nil, apperr.Forbidden("Bạn không có quyền hủy vé này")
	}
	if t.Status == models.TicketCancelled {
		return nil, apperr.Invalid("Vé đã được hủy trước đó")
	}

	now := s.now()
	var hoursLeft float64
	if t.Schedule != nil {
		hoursLeft = utils.HoursUntil(t.Schedule.DepartureAt, now)
	}
	fee, err := s.refundPolicy(t, hoursLeft)
	if err != nil {
		return nil, err
	}

	wasPaid := t.Status == models.TicketPaid
	if err := s.cancel(ctx, t, "CANCEL"); err != nil {
		return nil, err
	}

	res := &models.CancelResult{Message: "Hủy vé thành công", TicketID: t.ID}
	if wasPaid {
		res.FeeAmount = t.TotalPrice * fee
		res.RefundAmount = t.TotalPrice - res.FeeAmount
		res.Message = fmt.Sprintf("Hủy vé thành công. Số tiền hoàn lại: %s", utils.FormatVND(res.RefundAmount))
	}
	return res, nil
}

// cancel writes the cancellation and undoes every hold the ticket had.
func (s *Service) cancel(ctx context.Context, t *models.Ticket, action string) error {
	if err := s.DB.CancelTicket(ctx, t, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to cancel ticket %d: %w", t.ID, err)
	}
	if err := s.Locks.Release(ctx, t.ScheduleID, t.SeatID); err != nil {
		s.Logger.Warn("SEATLOCK", fmt.Sprintf("Failed to release seat %d: %v", t.SeatID, err))
	}
	if err := s.Jobs.RemoveForTickets(ctx, []int64{t.ID}); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("Failed to remove jobs of ticket %d: %v", t.ID, err))
	}
	s.Logger.LogBooking(action, t.ID, "ticket cancelled")

	var phID int64
	if t.PaymentHistoryID != nil {
		phID = *t.PaymentHistoryID
	}
	s.publish(s.Topics.TicketCancelled, t.ID, models.TicketEvent{
		PaymentHistoryID: phID,
		TicketIDs:        []int64{t.ID},
		UserID:           t.UserID,
		ScheduleID:       t.ScheduleID,
		Status:           string(models.TicketCancelled),
		Amount:           t.TotalPrice,
		OccurredAt:       s.now().UTC(),
	})
	s.publish(s.Topics.SeatStatus, t.ScheduleID, models.NewSeatStatusEvent(t.ScheduleID, []int64{t.SeatID}, models.SeatStatusAvailable))
	return nil
}

// ExpireHold cancels a ticket whose payment window ran out.
func (s *Service) ExpireHold(ctx context.Context, ticketID int64) error {
	t, err := s.DB.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if t.Status != models.TicketBooked {
		return nil
	}
	if err := s.cancel(ctx, t, "EXPIRE"); err != nil {
		return err
	}
	s.notify(ctx, t.UserID, "Vé đã bị hủy",
		fmt.Sprintf("Vé #%d đã tự động hủy do quá hạn thanh toán. Vui lòng đặt lại vé mới.", t.ID),
		models.NotificationTicketCancelled)
	return nil
}

// RemindPayment nudges the passenger while the ticket is still unpaid.
func (s *Service) RemindPayment(ctx context.Context, ticketID int64) error {
	t, err := s.DB.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if t.Status != models.TicketBooked {
		return nil
	}
	s.notify(ctx, t.UserID, "Sắp hết hạn thanh toán",
		fmt.Sprintf("Vé #%d sẽ bị hủy trong 5 phút nữa. Thanh toán ngay để giữ chỗ!", t.ID),
		models.NotificationPaymentReminder)
	return nil
}
