package qr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/utils"
)

type DBLayer interface {
	GetTicketDetail(ctx context.Context, id int64) (*models.Ticket, error)
}

type Notifier interface {
	Create(ctx context.Context, userID int64, title, message, typ string) (*models.Notification, error)
}

// TicketCheck is what a conductor sees after scanning a ticket.
type TicketCheck struct {
	TicketID       int64               `json:"ticketId"`
	BookingCode    string              `json:"bookingCode,omitempty"`
	PassengerName  string              `json:"passengerName"`
	PassengerEmail string              `json:"passengerEmail"`
	PassengerPhone string              `json:"passengerPhone,omitempty"`
	Route          string              `json:"route"`
	BusName        string              `json:"busName"`
	LicensePlate   string              `json:"licensePlate"`
	Seat           string              `json:"seat"`
	DepartureAt    time.Time           `json:"departureAt"`
	Status         models.TicketStatus `json:"status"`
}

type Service struct {
	DB       DBLayer
	Signer   *Signer
	Notifier Notifier
	Logger   *logger.Logger
}

func NewService(db DBLayer, signer *Signer, notifier Notifier, log *logger.Logger) *Service {
	return &Service{DB: db, Signer: signer, Notifier: notifier, Logger: log}
}

func paid(t *models.Ticket) bool {
	if t.Status == models.TicketPaid {
		return true
	}
	return t.PaymentHistory != nil && t.PaymentHistory.Status == models.PaymentSuccess
}

// VerifyTicket checks a scanned token against the ticket it names.
func (s *Service) VerifyTicket(ctx context.Context, token string) (*TicketCheck, error) {
	ticketID, err := s.Signer.Verify(token)
	if err != nil {
		s.Logger.LogSecurity("QR_REJECTED", err.Error())
		return nil, apperr.Invalid("Mã QR không hợp lệ hoặc đã hết hạn")
	}
	t, err := s.DB.GetTicketDetail(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Invalid("Vé không tồn tại")
		}
		return nil, fmt.Errorf("failed to load ticket %d: %w", ticketID, err)
	}
	if !paid(t) {
		return nil, apperr.Invalid("Vé chưa được thanh toán")
	}

	check := &TicketCheck{TicketID: t.ID, Status: t.Status}
	if t.PaymentHistoryID != nil {
		check.BookingCode = utils.BookingCode(*t.PaymentHistoryID)
	}
	if t.User != nil {
		check.PassengerName, check.PassengerEmail, check.PassengerPhone = t.User.Name, t.User.Email, t.User.Phone
	}
	if t.Seat != nil {
		check.Seat = t.Seat.Code
	}
	if sch := t.Schedule; sch != nil {
		check.DepartureAt = sch.DepartureAt
		check.Route = sch.Route.Label()
		if sch.Bus != nil {
			check.BusName, check.LicensePlate = sch.Bus.Name, sch.Bus.LicensePlate
		}
	}
	return check, nil
}

// ConfirmBoarding records that the passenger of ticketID got on the bus.
func (s *Service) ConfirmBoarding(ctx context.Context, ticketID int64) error {
	if ticketID <= 0 {
		return apperr.ValidationError{Field: "ticketId", Msg: "Thiếu mã vé"}
	}
	t, err := s.DB.GetTicketDetail(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Invalid("Vé không tồn tại")
		}
		return fmt.Errorf("failed to load ticket %d: %w", ticketID, err)
	}
	msg := fmt.Sprintf("Bạn đã lên xe thành công. Vé #%d", t.ID)
	if t.Seat != nil {
		msg += ", ghế " + t.Seat.Code
	}
	if _, err := s.Notifier.Create(ctx, t.UserID, "Xác nhận lên xe", msg, models.NotificationTicket); err != nil {
		return err
	}
	s.Logger.LogBooking("BOARDED", t.ID, "Passenger boarding confirmed")
	return nil
}
