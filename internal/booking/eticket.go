package booking

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"busticket/internal/apperr"
	"busticket/internal/mailer"
	"busticket/internal/models"
	"busticket/internal/qr"
	"busticket/internal/ticketpdf"
	"busticket/internal/utils"
)

const qrSize = 256

func (s *Service) qrContent(t *models.Ticket) (string, error) {
	if t.PaymentHistory != nil && t.PaymentHistory.QRCode != "" {
		return t.PaymentHistory.QRCode, nil
	}
	if s.QR == nil {
		return "", apperr.Internal("QR signing is not configured", nil)
	}
	token, err := s.QR.Token(t.ID)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket %d: %w", t.ID, err)
	}
	return qr.VerifyURL(s.FrontendURL, token), nil
}

// QRImage renders the boarding QR of a paid ticket.
func (s *Service) QRImage(ctx context.Context, ticketID, userID int64, isAdmin bool) ([]byte, error) {
	t, err := s.owned(ctx, ticketID, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TicketPaid {
		return nil, apperr.Invalid("Vé chưa được thanh toán")
	}
	content, err := s.qrContent(t)
	if err != nil {
		return nil, err
	}
	return qr.PNG(content, qrSize)
}

func printable(t *models.Ticket, seats []string, code string) ticketpdf.Ticket {
	pt := ticketpdf.Ticket{
		BookingCode: code,
		TicketID:    t.ID,
		Route:       routeLabel(t),
		Seats:       seats,
		Dropoff:     DropoffInfo(t).Display,
		Method:      t.PaymentMethod.Label(),
	}
	if t.User != nil {
		pt.Passenger = t.User.Name
		pt.Phone = t.User.Phone
	}
	if sched := t.Schedule; sched != nil {
		pt.DepartureAt = sched.DepartureAt
		if sched.Bus != nil {
			pt.BusName = sched.Bus.Name
			pt.LicensePlate = sched.Bus.LicensePlate
			if sched.Bus.Brand != nil {
				pt.Brand = sched.Bus.Brand.Name
			}
		}
	}
	return pt
}

// PDF renders the e-ticket of a single ticket.
func (s *Service) PDF(ctx context.Context, ticketID, userID int64, isAdmin bool) ([]byte, error) {
	t, err := s.owned(ctx, ticketID, userID, isAdmin)
	if err != nil {
		return nil, err
	}
	var code string
	if t.PaymentHistoryID != nil {
		code = utils.BookingCode(*t.PaymentHistoryID)
	}
	pt := printable(t, []string{seatLabel(t)}, code)
	pt.Total = utils.FormatVND(t.TotalPrice)

	var png []byte
	if t.Status == models.TicketPaid {
		content, err := s.qrContent(t)
		if err != nil {
			return nil, err
		}
		if png, err = qr.PNG(content, qrSize); err != nil {
			return nil, fmt.Errorf("failed to render QR of ticket %d: %w", t.ID, err)
		}
	}
	return ticketpdf.Render(pt, s.loc, png)
}

var ticketMail = template.Must(template.New("ticket").Parse(`<h2>Đặt vé thành công</h2>
<p>Xin chào {{.Name}},</p>
<p>Cảm ơn bạn đã đặt vé. Mã đơn: <strong>{{.Code}}</strong></p>
<ul>
<li>Tuyến: {{.Route}}</li>
<li>Khởi hành: {{.Departure}}</li>
<li>Ghế: {{.Seats}}</li>
<li>Tổng tiền: {{.Total}}</li>
</ul>
<p>Vé điện tử được đính kèm trong email này. Vui lòng xuất trình mã QR khi lên xe.</p>`))

// SendTicketEmail mails the e-ticket of a paid group to its passenger.
func (s *Service) SendTicketEmail(ctx context.Context, paymentHistoryID int64) error {
	if s.Mailer == nil {
		return nil
	}
	ph, err := s.DB.GetPayment(ctx, paymentHistoryID)
	if err != nil {
		return notFound("payment", err)
	}
	tickets, err := s.DB.GroupTickets(ctx, ph.ID)
	if err != nil {
		return fmt.Errorf("failed to load tickets of payment %d: %w", ph.ID, err)
	}
	if len(tickets) == 0 {
		return apperr.NotFound("ticket")
	}
	first := &tickets[0]
	if first.User == nil || first.User.Email == "" {
		return apperr.Invalidf("payment %d has no recipient", ph.ID)
	}
	if first.PaymentHistory == nil {
		first.PaymentHistory = ph
	}

	seats := make([]string, len(tickets))
	for i := range tickets {
		seats[i] = seatLabel(&tickets[i])
	}
	code := utils.BookingCode(ph.ID)
	pt := printable(first, seats, code)
	pt.Total = utils.FormatVND(ph.Amount)
	pt.Method = ph.Method.Label()

	content, err := s.qrContent(first)
	if err != nil {
		return err
	}
	png, err := qr.PNG(content, qrSize)
	if err != nil {
		return fmt.Errorf("failed to render QR of payment %d: %w", ph.ID, err)
	}
	pdf, err := ticketpdf.Render(pt, s.loc, png)
	if err != nil {
		return fmt.Errorf("failed to render e-ticket of payment %d: %w", ph.ID, err)
	}

	var body strings.Builder
	err = ticketMail.Execute(&body, map[string]string{
		"Name":      first.User.Name,
		"Code":      code,
		"Route":     pt.Route,
		"Departure": pt.DepartureAt.In(s.loc).Format("15:04 02/01/2006"),
		"Seats":     strings.Join(seats, ", "),
		"Total":     pt.Total,
	})
	if err != nil {
		return fmt.Errorf("failed to render ticket e-mail: %w", err)
	}

	err = s.Mailer.Send(ctx, mailer.Message{
		To:      first.User.Email,
		Subject: fmt.Sprintf("Vé xe của bạn - %s", code),
		HTML:    body.String(),
		Attachments: []mailer.Attachment{
			{Name: "ve-" + code + ".pdf", ContentType: "application/pdf", Data: pdf},
			{Name: "qr-" + code + ".png", ContentType: "image/png", Data: png},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send e-ticket of payment %d: %w", ph.ID, err)
	}
	s.Logger.Info("EMAIL", fmt.Sprintf("E-ticket %s sent to %s", code, first.User.Email))
	return nil
}
