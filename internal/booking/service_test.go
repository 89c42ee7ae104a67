package booking_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/booking"
	bookingdb "busticket/internal/booking/db"
	"busticket/internal/config"
	"busticket/internal/database/dbtest"
	"busticket/internal/jobs"
	"busticket/internal/logger"
	"busticket/internal/mailer"
	"busticket/internal/models"
	"busticket/internal/notification"
	notificationdb "busticket/internal/notification/db"
	"busticket/internal/payment"
	"busticket/internal/qr"
	"busticket/internal/seatlock"
	"busticket/internal/sse"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Checkout(ctx context.Context, req payment.Request) (*payment.Checkout, error) {
	args := m.Called(ctx, req)
	co, _ := args.Get(0).(*payment.Checkout)
	return co, args.Error(1)
}

type message struct {
	Topic string
	Key   string
	Value []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []message
}

func (p *recordingPublisher) Publish(topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, message{Topic: topic, Key: key, Value: value})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, m := range p.sent {
		out[i] = m.Topic
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

var topics = config.TopicConfig{
	TicketBooked:    "busticket.tickets.booked",
	TicketPaid:      "busticket.tickets.paid",
	TicketCancelled: "busticket.tickets.cancelled",
	SeatStatus:      "busticket.seats.status",
	PaymentFailed:   "busticket.payments.failed",
}

func bookingConfig() config.BookingConfig {
	return config.BookingConfig{
		HoldDuration:            15 * time.Minute,
		ReminderDelay:           10 * time.Minute,
		MaxTicketsPerUserPerDay: 8,
		MinHoursBeforeDeparture: 1,
		CancelMinHours:          2,
		CustomDropoffSurcharge:  150000,
		DynamicPricingWindow:    24 * time.Hour,
		OccupancyThreshold:      0.8,
		SpecialRefundBrandID:    2,
		Timezone:                "UTC",
	}
}

type env struct {
	svc     *booking.Service
	db      *bun.DB
	mr      *miniredis.Miniredis
	locks   *seatlock.Redis
	queue   *jobs.Queue
	pub     *recordingPublisher
	momo    *MockGateway
	mail    *recordingMailer
	notices *notification.Service
	now     time.Time
}

func setup(t *testing.T) *env {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	e := &env{
		db:   dbtest.New(t),
		mr:   mr,
		pub:  &recordingPublisher{},
		momo: &MockGateway{},
		mail: &recordingMailer{},
		now:  time.Now(),
	}
	e.locks = seatlock.NewRedis(client, 15*time.Minute, log)
	e.queue = jobs.NewQueue(client, log)
	e.notices = notification.NewService(&notificationdb.DB{Bun: e.db}, sse.NewHub(), log)

	svc := booking.NewService(&bookingdb.DB{Bun: e.db}, e.locks, e.queue, e.pub, bookingConfig(), log)
	svc.WithClock(func() time.Time { return e.now })
	svc.Topics = topics
	svc.Gateways[models.MethodMoMo] = e.momo
	svc.Notifier = e.notices
	svc.QR = qr.NewSigner("qr-secret", 7*24*time.Hour)
	svc.Mailer = e.mail
	svc.EmailInline = true
	svc.FrontendURL = "https://busticket.test"
	e.svc = svc
	return e
}

func (e *env) ticket(t *testing.T, id int64) models.Ticket {
	t.Helper()
	var tk models.Ticket
	require.NoError(t, e.db.NewSelect().Model(&tk).Where("id = ?", id).Scan(context.Background()))
	return tk
}

func (e *env) payment(t *testing.T, id int64) models.PaymentHistory {
	t.Helper()
	var ph models.PaymentHistory
	require.NoError(t, e.db.NewSelect().Model(&ph).Where("id = ?", id).Scan(context.Background()))
	return ph
}

func items(trip *dbtest.Trip, seatIdx ...int) []models.BookingRequest {
	out := make([]models.BookingRequest, len(seatIdx))
	for i, idx := range seatIdx {
		out[i] = models.BookingRequest{ScheduleID: trip.Schedule.ID, SeatID: trip.Seats[idx].ID}
	}
	return out
}

func TestCreateBulkPersistsGroup(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "group@example.com")

	e.momo.On("Checkout", mock.Anything, mock.MatchedBy(func(r payment.Request) bool {
		return r.Amount == 600000 && r.UserEmail == "group@example.com"
	})).Return(&payment.Checkout{PayURL: "https://momo.test/pay"}, nil).Once()

	res, err := e.svc.CreateBulk(ctx, u.ID, models.BulkBookingRequest{Items: items(trip, 0, 1)})
	require.NoError(t, err)
	e.momo.AssertExpectations(t)

	assert.Len(t, res.Tickets, 2)
	assert.Equal(t, 600000.0, res.TotalAmount)
	assert.Equal(t, "https://momo.test/pay", res.PayURL)
	assert.Regexp(t, `^V\d{6}$`, res.BookingCode)

	ph := e.payment(t, res.PaymentHistoryID)
	assert.Equal(t, models.PaymentPending, ph.Status)
	assert.Equal(t, models.MethodMoMo, ph.Method)
	assert.Equal(t, "https://momo.test/pay", ph.PayURL)

	for _, tk := range res.Tickets {
		stored := e.ticket(t, tk.ID)
		assert.Equal(t, models.TicketBooked, stored.Status)
		require.NotNil(t, stored.PaymentHistoryID)
		assert.Equal(t, ph.ID, *stored.PaymentHistoryID)
	}
	links, err := e.db.NewSelect().Model((*models.TicketPayment)(nil)).Where("payment_id = ?", ph.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, links)

	assert.True(t, e.mr.Exists(seatlock.Key(trip.Schedule.ID, trip.Seats[0].ID)))
	pending, err := e.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pending)
	assert.Equal(t, []string{topics.TicketBooked, topics.SeatStatus}, e.pub.topics())
}

func TestCreateRejections(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	other := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	soon := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{Departure: e.now.Add(30 * time.Minute)})
	u := dbtest.SeedUser(t, e.db, "reject@example.com")
	dbtest.SeedTicket(t, e.db, u.ID, trip, 2, models.TicketPaid, models.PaymentSuccess)

	_, err := e.svc.Create(ctx, u.ID, models.BookingRequest{ScheduleID: 999, SeatID: trip.Seats[0].ID}, "")
	assert.True(t, apperr.IsNotFound(err))

	_, err = e.svc.Create(ctx, u.ID, items(soon, 0)[0], "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trước 1 giờ khởi hành")

	_, err = e.svc.Create(ctx, u.ID, models.BookingRequest{ScheduleID: trip.Schedule.ID, SeatID: other.Seats[0].ID}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ghế không thuộc xe")

	_, err = e.svc.Create(ctx, u.ID, items(trip, 2)[0], "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ghế đã được đặt")

	_, err = e.svc.CreateBulk(ctx, u.ID, models.BulkBookingRequest{Items: items(trip, 3, 3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ghế đã được đặt")
	assert.False(t, e.mr.Exists(seatlock.Key(trip.Schedule.ID, trip.Seats[3].ID)), "lock released on failure")

	ok, err := e.locks.LockSeat(ctx, trip.Schedule.ID, trip.Seats[4].ID, "booking:someone")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = e.svc.Create(ctx, u.ID, items(trip, 4)[0], "")
	assert.True(t, apperr.IsConflict(err))

	bad := int64(12345)
	req := items(trip, 5)[0]
	req.DropoffPointID = &bad
	_, err = e.svc.Create(ctx, u.ID, req, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Điểm trả không hợp lệ")

	req = items(trip, 5)[0]
	req.PaymentMethod = "BITCOIN"
	_, err = e.svc.Create(ctx, u.ID, req, "")
	assert.True(t, apperr.IsValidation(err))

	e.momo.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything)
}

func TestDailyLimits(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	e.svc.Config.MaxTicketsPerUserPerDay = 2
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "limit@example.com")

	cash := models.BulkBookingRequest{Items: items(trip, 0, 1), PaymentMethod: models.MethodCash}
	_, err := e.svc.CreateBulk(ctx, u.ID, cash)
	require.NoError(t, err)

	req := items(trip, 2)[0]
	req.PaymentMethod = models.MethodCash
	_, err = e.svc.Create(ctx, u.ID, req, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tối đa 2 vé/ngày")

	limited := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{DailyTicketLimit: 1})
	first := dbtest.SeedUser(t, e.db, "first@example.com")
	second := dbtest.SeedUser(t, e.db, "second@example.com")
	req = items(limited, 0)[0]
	req.PaymentMethod = models.MethodCash
	_, err = e.svc.Create(ctx, first.ID, req, "")
	require.NoError(t, err)

	req = items(limited, 1)[0]
	req.PaymentMethod = models.MethodCash
	_, err = e.svc.Create(ctx, second.ID, req, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giới hạn vé trong ngày")
}

func seedPoint(t *testing.T, db *bun.DB, scheduleID int64, p models.DropoffPoint) *models.DropoffPoint {
	t.Helper()
	p.ScheduleID = scheduleID
	p.CreatedAt = time.Now().UTC()
	_, err := db.NewInsert().Model(&p).Exec(context.Background())
	require.NoError(t, err)
	return &p
}

func TestDropoffPricing(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "dropoff@example.com")
	def := seedPoint(t, e.db, trip.Schedule.ID, models.DropoffPoint{Name: "Bến xe Liên tỉnh", IsDefault: true})
	paid := seedPoint(t, e.db, trip.Schedule.ID, models.DropoffPoint{Name: "Chợ Đà Lạt", Surcharge: 50000, SortOrder: 1})

	req := items(trip, 0)[0]
	req.PaymentMethod = models.MethodCash
	res, err := e.svc.Create(ctx, u.ID, req, "")
	require.NoError(t, err)
	require.NotNil(t, res.Tickets[0].DropoffPointID)
	assert.Equal(t, def.ID, *res.Tickets[0].DropoffPointID)
	assert.Zero(t, res.Tickets[0].Surcharge)

	req = items(trip, 1)[0]
	req.PaymentMethod = models.MethodCash
	req.DropoffPointID = &paid.ID
	res, err = e.svc.Create(ctx, u.ID, req, "")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, res.Tickets[0].Surcharge)
	assert.Equal(t, 350000.0, res.TotalAmount)

	req = items(trip, 2)[0]
	req.PaymentMethod = models.MethodCash
	req.DropoffAddress = "  12 Trần Phú, Đà Lạt "
	res, err = e.svc.Create(ctx, u.ID, req, "")
	require.NoError(t, err)
	assert.Equal(t, 150000.0, res.Tickets[0].Surcharge)
	assert.Equal(t, "12 Trần Phú, Đà Lạt", res.Tickets[0].DropoffAddress)
	assert.Equal(t, 450000.0, res.TotalAmount)

	near := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{Departure: e.now.Add(12 * time.Hour)})
	dyn := seedPoint(t, e.db, near.Schedule.ID, models.DropoffPoint{Name: "Ngã ba", Surcharge: 20000, PriceDifference: -10000})
	req = items(near, 0)[0]
	req.PaymentMethod = models.MethodCash
	req.DropoffPointID = &dyn.ID
	res, err = e.svc.Create(ctx, u.ID, req, "")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, res.Tickets[0].Surcharge, "price difference applies on an empty bus near departure")
}

func TestGatewayFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "rollback@example.com")
	e.momo.On("Checkout", mock.Anything, mock.Anything).Return(nil, errors.New("momo down")).Once()

	_, err := e.svc.CreateBulk(ctx, u.ID, models.BulkBookingRequest{Items: items(trip, 0, 1)})
	require.Error(t, err)

	var tickets []models.Ticket
	require.NoError(t, e.db.NewSelect().Model(&tickets).Scan(ctx))
	require.Len(t, tickets, 2)
	for _, tk := range tickets {
		assert.Equal(t, models.TicketCancelled, tk.Status)
	}
	ph := e.payment(t, *tickets[0].PaymentHistoryID)
	assert.Equal(t, models.PaymentFailed, ph.Status)
	assert.False(t, e.mr.Exists(seatlock.Key(trip.Schedule.ID, trip.Seats[0].ID)))
	pending, err := e.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	_, err = e.svc.Create(ctx, u.ID, models.BookingRequest{ScheduleID: trip.Schedule.ID, SeatID: trip.Seats[0].ID, PaymentMethod: models.MethodVNPay}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chưa được hỗ trợ")
}

func TestPayTicketSettlesGroup(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "pay@example.com")
	e.momo.On("Checkout", mock.Anything, mock.Anything).Return(&payment.Checkout{PayURL: "https://momo.test/pay"}, nil)

	res, err := e.svc.CreateBulk(ctx, u.ID, models.BulkBookingRequest{Items: items(trip, 0, 1)})
	require.NoError(t, err)

	paid, err := e.svc.PayTicket(ctx, res.PaymentHistoryID, models.MethodMoMo, "MOMO-123")
	require.NoError(t, err)
	assert.Contains(t, paid.QRCode, "https://busticket.test/verify-qr?token=")

	ph := e.payment(t, res.PaymentHistoryID)
	assert.Equal(t, models.PaymentSuccess, ph.Status)
	assert.Equal(t, "MOMO-123", ph.TransactionID)
	require.NotNil(t, ph.PaidAt)
	for _, tk := range res.Tickets {
		assert.Equal(t, models.TicketPaid, e.ticket(t, tk.ID).Status)
	}
	assert.False(t, e.mr.Exists(seatlock.Key(trip.Schedule.ID, trip.Seats[0].ID)))
	pending, err := e.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	list, err := e.notices.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Thanh toán thành công", list[0].Title)
	assert.Contains(t, list[0].Message, "2 vé")

	require.Len(t, e.mail.sent, 1)
	assert.Equal(t, "pay@example.com", e.mail.sent[0].To)
	assert.Len(t, e.mail.sent[0].Attachments, 2)

	assert.Contains(t, e.pub.topics(), topics.TicketPaid)
	var event models.TicketEvent
	for _, m := range e.pub.sent {
		if m.Topic == topics.TicketPaid {
			require.NoError(t, json.Unmarshal(m.Value, &event))
		}
	}
	assert.Len(t, event.TicketIDs, 2)

	_, err = e.svc.PayTicket(ctx, res.PaymentHistoryID, models.MethodMoMo, "MOMO-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "đã được thanh toán")

	_, err = e.svc.PayTicket(ctx, 999, models.MethodMoMo, "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestLatePaymentAfterHoldExpiry(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	first := dbtest.SeedUser(t, e.db, "late@example.com")
	second := dbtest.SeedUser(t, e.db, "rebook@example.com")
	e.momo.On("Checkout", mock.Anything, mock.Anything).Return(&payment.Checkout{PayURL: "https://momo.test/pay"}, nil)

	held, err := e.svc.CreateBulk(ctx, first.ID, models.BulkBookingRequest{Items: items(trip, 0)})
	require.NoError(t, err)
	require.NoError(t, e.svc.ExpireHold(ctx, held.Tickets[0].ID))
	assert.Equal(t, models.PaymentFailed, e.payment(t, held.PaymentHistoryID).Status)

	rebooked, err := e.svc.CreateBulk(ctx, second.ID, models.BulkBookingRequest{Items: items(trip, 0)})
	require.NoError(t, err)
	_, err = e.svc.PayTicket(ctx, rebooked.PaymentHistoryID, models.MethodMoMo, "MOMO-B")
	require.NoError(t, err)

	_, err = e.svc.PayTicket(ctx, held.PaymentHistoryID, models.MethodMoMo, "MOMO-A")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.ErrorIs(t, err, payment.ErrNotPayable)

	assert.Equal(t, models.TicketCancelled, e.ticket(t, held.Tickets[0].ID).Status)
	assert.Equal(t, models.PaymentFailed, e.payment(t, held.PaymentHistoryID).Status)
	assert.Equal(t, models.TicketPaid, e.ticket(t, rebooked.Tickets[0].ID).Status)
}

func TestSettleIsConditional(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "settle@example.com")
	tk := dbtest.SeedTicket(t, e.db, u.ID, trip, 0, models.TicketBooked, models.PaymentPending)
	store := &bookingdb.DB{Bun: e.db}

	settlement := bookingdb.Settlement{
		PaymentHistoryID: *tk.PaymentHistoryID,
		Method:           models.MethodMoMo,
		TransactionID:    "MOMO-1",
		PaidAt:           time.Now().UTC(),
		TicketIDs:        []int64{tk.ID},
		SeatIDs:          []int64{tk.SeatID},
	}
	require.NoError(t, store.Settle(ctx, settlement))
	assert.ErrorIs(t, store.Settle(ctx, settlement), payment.ErrAlreadyPaid)

	cancelled := dbtest.SeedTicket(t, e.db, u.ID, trip, 1, models.TicketCancelled, models.PaymentPending)
	settlement.PaymentHistoryID = *cancelled.PaymentHistoryID
	settlement.TicketIDs = []int64{cancelled.ID}
	settlement.SeatIDs = []int64{cancelled.SeatID}
	assert.ErrorIs(t, store.Settle(ctx, settlement), payment.ErrNotPayable)
	assert.Equal(t, models.PaymentPending, e.payment(t, *cancelled.PaymentHistoryID).Status, "rolled back")
	assert.Equal(t, models.TicketCancelled, e.ticket(t, cancelled.ID).Status)
}

func TestSettleKeepsCheckoutReference(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "zalo@example.com")
	tk := dbtest.SeedTicket(t, e.db, u.ID, trip, 0, models.TicketBooked, models.PaymentPending)
	store := &bookingdb.DB{Bun: e.db}
	require.NoError(t, store.SetCheckout(ctx, *tk.PaymentHistoryID, "https://zalo.test/pay", "250101_123456"))

	require.NoError(t, store.Settle(ctx, bookingdb.Settlement{
		PaymentHistoryID: *tk.PaymentHistoryID,
		Method:           models.MethodZaloPay,
		TransactionID:    "9001",
		PaidAt:           time.Now().UTC(),
		TicketIDs:        []int64{tk.ID},
		SeatIDs:          []int64{tk.SeatID},
	}))
	assert.Equal(t, "250101_123456", e.payment(t, *tk.PaymentHistoryID).TransactionID)
}

func TestCancelPolicies(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	u := dbtest.SeedUser(t, e.db, "cancel@example.com")
	stranger := dbtest.SeedUser(t, e.db, "stranger@example.com")

	early := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{BrandID: 2, Departure: e.now.Add(48 * time.Hour)})
	tk := dbtest.SeedTicket(t, e.db, u.ID, early, 0, models.TicketPaid, models.PaymentSuccess)

	_, err := e.svc.Cancel(ctx, tk.ID, stranger.ID, false)
	assert.True(t, apperr.IsForbidden(err))

	res, err := e.svc.Cancel(ctx, tk.ID, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 30000.0, res.FeeAmount)
	assert.Equal(t, 270000.0, res.RefundAmount)
	assert.Equal(t, models.TicketCancelled, e.ticket(t, tk.ID).Status)

	_, err = e.svc.Cancel(ctx, tk.ID, u.ID, false)
	assert.True(t, apperr.IsValidation(err))

	late := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{BrandID: 2, Departure: e.now.Add(10 * time.Hour)})
	tk = dbtest.SeedTicket(t, e.db, u.ID, late, 0, models.TicketPaid, models.PaymentSuccess)
	res, err = e.svc.Cancel(ctx, tk.ID, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 90000.0, res.FeeAmount)

	tooLate := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{BrandID: 2, Departure: e.now.Add(3 * time.Hour)})
	tk = dbtest.SeedTicket(t, e.db, u.ID, tooLate, 0, models.TicketPaid, models.PaymentSuccess)
	_, err = e.svc.Cancel(ctx, tk.ID, u.ID, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 giờ")

	regular := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	tk = dbtest.SeedTicket(t, e.db, u.ID, regular, 0, models.TicketPaid, models.PaymentSuccess)
	_, err = e.svc.Cancel(ctx, tk.ID, u.ID, false)
	assert.True(t, apperr.IsValidation(err))

	booked := dbtest.SeedTicket(t, e.db, u.ID, regular, 1, models.TicketBooked, models.PaymentPending)
	res, err = e.svc.Cancel(ctx, booked.ID, u.ID, false)
	require.NoError(t, err)
	assert.Zero(t, res.RefundAmount)
	assert.Equal(t, models.PaymentFailed, e.payment(t, *booked.PaymentHistoryID).Status)
	assert.Contains(t, e.pub.topics(), topics.TicketCancelled)

	nearTrip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{Departure: e.now.Add(90 * time.Minute)})
	tk = dbtest.SeedTicket(t, e.db, u.ID, nearTrip, 0, models.TicketBooked, models.PaymentPending)
	_, err = e.svc.Cancel(ctx, tk.ID, u.ID, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 giờ")
}

func TestExpireHoldAndReminder(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "expire@example.com")
	booked := dbtest.SeedTicket(t, e.db, u.ID, trip, 0, models.TicketBooked, models.PaymentPending)
	paid := dbtest.SeedTicket(t, e.db, u.ID, trip, 1, models.TicketPaid, models.PaymentSuccess)

	require.NoError(t, e.svc.RemindPayment(ctx, booked.ID))
	require.NoError(t, e.svc.RemindPayment(ctx, paid.ID))
	require.NoError(t, e.svc.ExpireHold(ctx, booked.ID))
	require.NoError(t, e.svc.ExpireHold(ctx, paid.ID))
	require.NoError(t, e.svc.ExpireHold(ctx, 999))

	assert.Equal(t, models.TicketCancelled, e.ticket(t, booked.ID).Status)
	assert.Equal(t, models.TicketPaid, e.ticket(t, paid.ID).Status)

	list, err := e.notices.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	types := []string{list[0].Type, list[1].Type}
	assert.ElementsMatch(t, []string{models.NotificationPaymentReminder, models.NotificationTicketCancelled}, types)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "query@example.com")
	stranger := dbtest.SeedUser(t, e.db, "other@example.com")

	cash := models.BulkBookingRequest{Items: items(trip, 1, 0), PaymentMethod: models.MethodCash}
	res, err := e.svc.CreateBulk(ctx, u.ID, cash)
	require.NoError(t, err)
	single := dbtest.SeedTicket(t, e.db, u.ID, trip, 2, models.TicketBooked, models.PaymentFailed)

	mine, err := e.svc.TicketsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
	assert.Equal(t, "default", mine[0].DropoffInfo.Type)
	assert.Equal(t, "Đà Lạt", mine[0].DropoffInfo.Address)

	_, err = e.svc.Get(ctx, single.ID, stranger.ID, false)
	assert.True(t, apperr.IsForbidden(err))
	st, err := e.svc.Status(ctx, single.ID, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.TicketBooked, st)

	sum, err := e.svc.PaymentHistoryByTicket(ctx, res.Tickets[0].ID, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "2 ghế", sum.Seat)
	assert.Equal(t, "Hồ Chí Minh - Đà Lạt", sum.Route)
	assert.Equal(t, "Tiền mặt", sum.Method)
	assert.Equal(t, "Chờ thanh toán", sum.Status)

	sum, err = e.svc.PaymentHistoryByTicket(ctx, single.ID, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "A03", sum.Seat)

	detail, err := e.svc.PaymentDetail(ctx, res.PaymentHistoryID, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"A01", "A02"}, detail.SeatList)
	assert.Equal(t, "Phương Trang", detail.BrandName)
	_, err = e.svc.PaymentDetail(ctx, res.PaymentHistoryID, stranger.ID, false)
	assert.True(t, apperr.IsForbidden(err))

	bookings, err := e.svc.AdminBookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	statuses := map[int64]string{}
	for _, b := range bookings {
		statuses[b.ID] = b.Status
	}
	assert.Equal(t, "BOOKED", statuses[res.PaymentHistoryID])
	assert.Equal(t, "CANCELLED", statuses[*single.PaymentHistoryID])

	b, err := e.svc.AdminBooking(ctx, res.PaymentHistoryID)
	require.NoError(t, err)
	assert.Equal(t, "query@example.com", b.CustomerEmail)
	assert.Len(t, b.Seats, 2)

	all, err := e.svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDropoffInfo(t *testing.T) {
	custom := &models.Ticket{DropoffAddress: "12 Trần Phú", Surcharge: 150000}
	info := booking.DropoffInfo(custom)
	assert.Equal(t, "tannoi", info.Type)
	assert.Equal(t, "+150.000đ", info.SurchargeText)

	point := &models.Ticket{Surcharge: 50000, DropoffPoint: &models.DropoffPoint{Name: "Chợ Đà Lạt"}}
	info = booking.DropoffInfo(point)
	assert.Equal(t, "diemtra", info.Type)
	assert.Equal(t, "Chợ Đà Lạt", info.Address)
	assert.Equal(t, "+50k", info.SurchargeText)

	point.Surcharge = 0
	assert.Equal(t, "Miễn phí", booking.DropoffInfo(point).SurchargeText)
}

func TestETicket(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	trip := dbtest.SeedTrip(t, e.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, e.db, "eticket@example.com")
	booked := dbtest.SeedTicket(t, e.db, u.ID, trip, 0, models.TicketBooked, models.PaymentPending)

	_, err := e.svc.QRImage(ctx, booked.ID, u.ID, false)
	assert.True(t, apperr.IsValidation(err))

	pdf, err := e.svc.PDF(ctx, booked.ID, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))

	_, err = e.svc.PayTicket(ctx, *booked.PaymentHistoryID, models.MethodCash, "")
	require.NoError(t, err)
	png, err := e.svc.QRImage(ctx, booked.ID, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}
