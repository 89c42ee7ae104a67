package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"busticket/internal/apperr"
	bookingdb "busticket/internal/booking/db"
	"busticket/internal/config"
	"busticket/internal/jobs"
	"busticket/internal/kafka"
	"busticket/internal/logger"
	"busticket/internal/mailer"
	"busticket/internal/models"
	"busticket/internal/payment"
	"busticket/internal/qr"
	"busticket/internal/utils"
)

type DBLayer interface {
	GetSchedule(ctx context.Context, id int64) (*models.Schedule, error)
	GetSeat(ctx context.Context, id int64) (*models.Seat, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	SeatTaken(ctx context.Context, scheduleID, seatID int64) (bool, error)
	CountUserTickets(ctx context.Context, userID int64, from, to time.Time) (int, error)
	CountBrandTickets(ctx context.Context, brandID int64, from, to time.Time) (int, error)
	CountSold(ctx context.Context, scheduleID int64) (int, error)
	CreateBooking(ctx context.Context, ph *models.PaymentHistory, tickets []*models.Ticket) error
	SetCheckout(ctx context.Context, paymentHistoryID int64, payURL, transactionID string) error
	AbortBooking(ctx context.Context, paymentHistoryID int64, ticketIDs []int64, now time.Time) error
	GetPayment(ctx context.Context, id int64) (*models.PaymentHistory, error)
	GroupTickets(ctx context.Context, paymentHistoryID int64) ([]models.Ticket, error)
	Settle(ctx context.Context, s bookingdb.Settlement) error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	CancelTicket(ctx context.Context, t *models.Ticket, now time.Time) error
	TicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error)
	AllTickets(ctx context.Context) ([]models.Ticket, error)
	PaymentForTicket(ctx context.Context, ticketID int64) (int64, error)
	ListPayments(ctx context.Context) ([]models.PaymentHistory, error)
	TicketsWithPayment(ctx context.Context) ([]models.Ticket, error)
}

// SeatLocker holds seats while a booking waits for payment.
type SeatLocker interface {
	LockSeat(ctx context.Context, scheduleID, seatID int64, owner string) (bool, error)
	UnlockSeat(ctx context.Context, scheduleID, seatID int64, owner string) error
	Release(ctx context.Context, scheduleID, seatID int64) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, typ string, ticketID int64, delay time.Duration) (*jobs.Job, error)
	RemoveForTickets(ctx context.Context, ticketIDs []int64) error
}

type Promotions interface {
	Apply(ctx context.Context, code string, orderValue float64) (*models.ApplyPromotionResult, error)
	IncrementUsage(ctx context.Context, id int64) error
}

type Notifier interface {
	Create(ctx context.Context, userID int64, title, message, typ string) (*models.Notification, error)
}

type Service struct {
	DB          DBLayer
	Locks       SeatLocker
	Jobs        JobQueue
	Publisher   kafka.Publisher
	Topics      config.TopicConfig
	Promotions  Promotions
	Gateways    map[models.PaymentMethod]payment.Gateway
	Notifier    Notifier
	QR          *qr.Signer
	Mailer      mailer.Sender
	EmailInline bool
	FrontendURL string
	Config      config.BookingConfig
	Logger      *logger.Logger
	loc         *time.Location
	now         func() time.Time
}

func NewService(db DBLayer, locks SeatLocker, queue JobQueue, pub kafka.Publisher, cfg config.BookingConfig, log *logger.Logger) *Service {
	return &Service{
		DB:        db,
		Locks:     locks,
		Jobs:      queue,
		Publisher: pub,
		Gateways:  map[models.PaymentMethod]payment.Gateway{},
		Config:    cfg,
		Logger:    log,
		loc:       cfg.Location(),
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func notFound(resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundError{Resource: resource, Err: err}
	}
	return err
}

func (s *Service) publish(topic string, key int64, v any) {
	if s.Publisher == nil || topic == "" {
		return
	}
	if err := kafka.PublishJSON(s.Publisher, topic, strconv.FormatInt(key, 10), v); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish to %s: %v", topic, err))
	}
}

func (s *Service) notify(ctx context.Context, userID int64, title, message, typ string) {
	if s.Notifier == nil || userID == 0 {
		return
	}
	if _, err := s.Notifier.Create(ctx, userID, title, message, typ); err != nil {
		s.Logger.Warn("NOTIFICATION", fmt.Sprintf("Failed to notify user %d: %v", userID, err))
	}
}

func ticketIDs(tickets []models.Ticket) []int64 {
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	return ids
}

type dropoffChoice struct {
	Surcharge float64
	PointID   *int64
	Address   string
}

// dropoff resolves the drop-off of a booking and its per-ticket surcharge.
func (s *Service) dropoff(ctx context.Context, sched *models.Schedule, item models.BookingRequest, hoursLeft float64) (dropoffChoice, error) {
	var out dropoffChoice
	if item.DropoffPointID != nil {
		var point *models.DropoffPoint
		for i := range sched.DropoffPoints {
			if sched.DropoffPoints[i].ID == *item.DropoffPointID {
				point = &sched.DropoffPoints[i]
				break
			}
		}
		if point == nil {
			return out, apperr.Invalid("Điểm trả không hợp lệ")
		}
		out.Surcharge = point.Surcharge
		out.PointID = &point.ID

		if point.PriceDifference != 0 && hoursLeft < s.Config.DynamicPricingWindow.Hours() {
			sold, err := s.DB.CountSold(ctx, sched.ID)
			if err != nil {
				return out, fmt.Errorf("failed to count sold tickets: %w", err)
			}
			if sched.Bus != nil && sched.Bus.SeatCount > 0 &&
				float64(sold)/float64(sched.Bus.SeatCount) < s.Config.OccupancyThreshold {
				out.Surcharge += point.PriceDifference
			}
		}
		return out, nil
	}
	if addr := strings.TrimSpace(item.DropoffAddress); addr != "" {
		out.Surcharge = s.Config.CustomDropoffSurcharge
		out.Address = addr
		return out, nil
	}
	for i := range sched.DropoffPoints {
		if sched.DropoffPoints[i].IsDefault {
			out.PointID = &sched.DropoffPoints[i].ID
			break
		}
	}
	return out, nil
}

// Create books a single seat.
func (s *Service) Create(ctx context.Context, userID int64, req models.BookingRequest, clientIP string) (*models.BookingResult, error) {
	return s.CreateBulk(ctx, userID, models.BulkBookingRequest{
		Items:         []models.BookingRequest{req},
		PaymentMethod: req.PaymentMethod,
		ClientIP:      clientIP,
	})
}

// CreateBulk books several seats of one schedule as a single payment group.
func (s *Service) CreateBulk(ctx context.Context, userID int64, req models.BulkBookingRequest) (*models.BookingResult, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Invalid("Danh sách vé trống")
	}
	method := req.PaymentMethod
	if method == "" {
		method = req.Items[0].PaymentMethod
	}
	if method == "" {
		method = models.MethodMoMo
	}
	if !method.Valid() {
		return nil, apperr.ValidationError{Field: "paymentMethod", Msg: "Phương thức thanh toán không hợp lệ"}
	}

	sched, err := s.DB.GetSchedule(ctx, req.Items[0].ScheduleID)
	if err != nil {
		return nil, notFound("schedule", err)
	}

	now := s.now()
	hoursLeft := utils.HoursUntil(sched.DepartureAt, now)
	dayStart := utils.StartOfDay(now, s.loc).UTC()
	dayEnd := dayStart.Add(24 * time.Hour)

	userCount, err := s.DB.CountUserTickets(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count user tickets: %w", err)
	}
	var brandID int64
	brandLimit := 0
	if sched.Bus != nil {
		brandID = sched.Bus.BrandID
		if sched.Bus.Brand != nil {
			brandLimit = sched.Bus.Brand.DailyTicketLimit
		}
	}
	brandCount, err := s.DB.CountBrandTickets(ctx, brandID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count brand tickets: %w", err)
	}

	owner := fmt.Sprintf("booking:%d:%s", userID, utils.GenerateUUID())
	var locked []int64
	release := func() {
		for _, seatID := range locked {
			if err := s.Locks.UnlockSeat(ctx, sched.ID, seatID, owner); err != nil {
				s.Logger.Warn("SEATLOCK", fmt.Sprintf("Failed to unlock seat %d: %v", seatID, err))
			}
		}
	}

	seen := make(map[int64]bool, len(req.Items))
	for i, item := range req.Items {
		if item.ScheduleID != sched.ID {
			release()
			return nil, apperr.Invalid("Tất cả vé phải thuộc cùng một chuyến")
		}
		if hoursLeft < s.Config.MinHoursBeforeDeparture {
			release()
			return nil, apperr.Invalidf("Chỉ được đặt vé trước %g giờ khởi hành", s.Config.MinHoursBeforeDeparture)
		}
		seat, err := s.DB.GetSeat(ctx, item.SeatID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			release()
			return nil, fmt.Errorf("failed to load seat %d: %w", item.SeatID, err)
		}
		if seat == nil || seat.BusID != sched.BusID {
			release()
			return nil, apperr.Invalid("Ghế không thuộc xe của lịch trình này")
		}
		taken, err := s.DB.SeatTaken(ctx, sched.ID, seat.ID)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to check seat %d: %w", seat.ID, err)
		}
		if taken || seen[seat.ID] {
			release()
			return nil, apperr.Invalid("Ghế đã được đặt")
		}
		ok, err := s.Locks.LockSeat(ctx, sched.ID, seat.ID, owner)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to lock seat %d: %w", seat.ID, err)
		}
		if !ok {
			release()
			return nil, apperr.Conflict("seat", "Ghế đang được giữ bởi khách khác, vui lòng chọn ghế khác")
		}
		locked = append(locked, seat.ID)
		seen[seat.ID] = true

		if userCount+i >= s.Config.MaxTicketsPerUserPerDay {
			release()
			return nil, apperr.Invalidf("Chỉ được đặt tối đa %d vé/ngày", s.Config.MaxTicketsPerUserPerDay)
		}
		if brandLimit > 0 && brandCount+i >= brandLimit {
			release()
			return nil, apperr.Invalid("Hãng xe đã đạt giới hạn vé trong ngày")
		}
	}

	drop, err := s.dropoff(ctx, sched, req.Items[0], hoursLeft)
	if err != nil {
		release()
		return nil, err
	}

	nowUTC := now.UTC()
	tickets := make([]*models.Ticket, len(req.Items))
	var orderValue float64
	for i, item := range req.Items {
		price := item.Price
		if price <= 0 && sched.Route != nil {
			price = sched.Route.LowestPrice
		}
		orderValue += price + drop.Surcharge
		tickets[i] = &models.Ticket{
			UserID:         userID,
			ScheduleID:     sched.ID,
			SeatID:         item.SeatID,
			Price:          price,
			Surcharge:      drop.Surcharge,
			TotalPrice:     price + drop.Surcharge,
			Status:         models.TicketBooked,
			PaymentMethod:  method,
			DropoffPointID: drop.PointID,
			DropoffAddress: drop.Address,
			CreatedAt:      nowUTC,
			UpdatedAt:      nowUTC,
		}
	}

	ph := &models.PaymentHistory{
		Method:    method,
		Status:    models.PaymentPending,
		CreatedAt: nowUTC,
		UpdatedAt: nowUTC,
	}
	if code := strings.TrimSpace(req.PromotionCode); code != "" {
		if s.Promotions == nil {
			release()
			return nil, apperr.Invalid("Mã khuyến mãi không hợp lệ")
		}
		applied, err := s.Promotions.Apply(ctx, code, orderValue)
		if err != nil {
			release()
			return nil, err
		}
		ph.DiscountAmount = applied.DiscountAmount
		if applied.Promotion != nil {
			ph.PromotionID = &applied.Promotion.ID
		}
	}
	ph.Amount = orderValue - ph.DiscountAmount
	if ph.Amount < 0 {
		ph.Amount = 0
	}

	if err := s.DB.CreateBooking(ctx, ph, tickets); err != nil {
		release()
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	result := &models.BookingResult{
		PaymentHistoryID: ph.ID,
		TotalAmount:      ph.Amount,
		DiscountAmount:   ph.DiscountAmount,
		BookingCode:      utils.BookingCode(ph.ID),
	}
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
		result.Tickets = append(result.Tickets, *t)
		if _, err := s.Jobs.Enqueue(ctx, jobs.TypeHoldExpire, t.ID, s.Config.HoldDuration); err != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("Failed to schedule hold expiry for ticket %d: %v", t.ID, err))
		}
		if _, err := s.Jobs.Enqueue(ctx, jobs.TypePaymentReminder, t.ID, s.Config.ReminderDelay); err != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("Failed to schedule payment reminder for ticket %d: %v", t.ID, err))
		}
	}
	s.Logger.LogBooking("CREATE", ids[0], fmt.Sprintf("%d ticket(s) booked on schedule %d, payment %d, amount %s",
		len(ids), sched.ID, ph.ID, utils.FormatVND(ph.Amount)))

	s.publish(s.Topics.TicketBooked, ph.ID, models.TicketEvent{
		PaymentHistoryID: ph.ID,
		TicketIDs:        ids,
		UserID:           userID,
		ScheduleID:       sched.ID,
		Status:           string(models.TicketBooked),
		Amount:           ph.Amount,
		OccurredAt:       nowUTC,
	})
	s.publish(s.Topics.SeatStatus, sched.ID, models.NewSeatStatusEvent(sched.ID, locked, models.SeatStatusLocked))

	if method == models.MethodCash {
		return result, nil
	}
	checkout, err := s.checkout(ctx, userID, method, ph, req.ClientIP)
	if err != nil {
		s.abort(ctx, ph.ID, sched.ID, ids, locked, owner)
		return nil, err
	}
	result.PayURL = checkout.PayURL
	result.ClientSecret = checkout.ClientSecret
	return result, nil
}

func (s *Service) checkout(ctx context.Context, userID int64, method models.PaymentMethod, ph *models.PaymentHistory, clientIP string) (*payment.Checkout, error) {
	gw, ok := s.Gateways[method]
	if !ok || gw == nil {
		return nil, apperr.Invalidf("Phương thức thanh toán %s chưa được hỗ trợ", method.Label())
	}
	var email string
	if u, err := s.DB.GetUser(ctx, userID); err == nil {
		email = u.Email
	}
	co, err := gw.Checkout(ctx, payment.Request{
		PaymentHistoryID: ph.ID,
		Amount:           ph.Amount,
		UserEmail:        email,
		ClientIP:         clientIP,
	})
	if err != nil {
		s.Logger.LogPayment(string(method), ph.ID, fmt.Sprintf("checkout failed: %v", err))
		return nil, err
	}
	if err := s.DB.SetCheckout(ctx, ph.ID, co.PayURL, co.TransactionID); err != nil {
		return nil, fmt.Errorf("failed to store checkout for payment %d: %w", ph.ID, err)
	}
	return co, nil
}

// abort undoes a booking whose checkout failed.
func (s *Service) abort(ctx context.Context, paymentHistoryID, scheduleID int64, ticketIDs, seatIDs []int64, owner string) {
	if err := s.DB.AbortBooking(ctx, paymentHistoryID, ticketIDs, s.now().UTC()); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("Failed to roll back payment %d: %v", paymentHistoryID, err))
	}
	for _, seatID := range seatIDs {
		if err := s.Locks.UnlockSeat(ctx, scheduleID, seatID, owner); err != nil {
			s.Logger.Warn("SEATLOCK", fmt.Sprintf("Failed to unlock seat %d: %v", seatID, err))
		}
	}
	if err := s.Jobs.RemoveForTickets(ctx, ticketIDs); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("Failed to remove jobs of payment %d: %v", paymentHistoryID, err))
	}
	s.publish(s.Topics.SeatStatus, scheduleID, models.NewSeatStatusEvent(scheduleID, seatIDs, models.SeatStatusAvailable))
	s.Logger.LogBooking("ROLLBACK", ticketIDs[0], fmt.Sprintf("payment %d rolled back", paymentHistoryID))
}
