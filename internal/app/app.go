// Package app assembles the services shared by the API server and the
// background worker.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"busticket/internal/auth"
	"busticket/internal/booking"
	"busticket/internal/booking/booking_api"
	bookingdb "busticket/internal/booking/db"
	"busticket/internal/cache"
	"busticket/internal/config"
	"busticket/internal/fleet"
	fleetdb "busticket/internal/fleet/db"
	"busticket/internal/fleet/fleet_api"
	"busticket/internal/jobs"
	"busticket/internal/kafka"
	"busticket/internal/logger"
	"busticket/internal/mailer"
	"busticket/internal/models"
	"busticket/internal/notification"
	notificationdb "busticket/internal/notification/db"
	"busticket/internal/notification/notification_api"
	"busticket/internal/payment"
	handlers "busticket/internal/payment/handler"
	"busticket/internal/payment/momo"
	"busticket/internal/payment/services"
	"busticket/internal/payment/storage"
	"busticket/internal/payment/vnpay"
	"busticket/internal/payment/zalopay"
	"busticket/internal/promotion"
	promotiondb "busticket/internal/promotion/db"
	"busticket/internal/promotion/promotion_api"
	"busticket/internal/qr"
	qrdb "busticket/internal/qr/db"
	"busticket/internal/qr/qr_api"
	"busticket/internal/review"
	reviewdb "busticket/internal/review/db"
	"busticket/internal/review/review_api"
	"busticket/internal/schedule"
	scheduledb "busticket/internal/schedule/db"
	"busticket/internal/schedule/schedule_api"
	"busticket/internal/seatlock"
	"busticket/internal/sse"
	"busticket/internal/stats"
	statsdb "busticket/internal/stats/db"
	"busticket/internal/stats/stats_api"
	"busticket/internal/user"
	userdb "busticket/internal/user/db"
	"busticket/internal/user/user_api"
	"busticket/internal/utils"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/uptrace/bun"
)

const paymentsPrefix = "/api/payments"

type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *bun.DB
	Redis     *redis.Client
	Publisher kafka.Publisher
	Verifier  *oidc.IDTokenVerifier

	Tokens        *auth.TokenIssuer
	Revocations   *auth.RedisRevocations
	Locks         *seatlock.Redis
	Queue         *jobs.Queue
	Users         *user.Service
	Fleet         *fleet.Service
	Schedules     *schedule.Service
	Promotions    *promotion.Service
	Reviews       *review.Service
	Notifications *notification.Service
	QR            *qr.Service
	Bookings      *booking.Service
	Stats         *stats.Service
	Payments      *handlers.PaymentHandler
}

// New wires every service on top of already opened connections.
func New(cfg *config.Config, db *bun.DB, rdb *redis.Client, pub kafka.Publisher, log *logger.Logger) *App {
	loc := cfg.Booking.Location()
	c := cache.NewRedisCache(rdb)

	a := &App{Config: cfg, Logger: log, DB: db, Redis: rdb, Publisher: pub}
	a.Tokens = auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	a.Locks = seatlock.NewRedis(rdb, cfg.Booking.HoldDuration, log)
	a.Queue = jobs.NewQueue(rdb, log)

	a.Revocations = auth.NewRedisRevocations(rdb)
	a.Users = user.NewService(&userdb.DB{Bun: db}, a.Tokens, log)
	a.Users.Revoker = a.Revocations
	a.Fleet = fleet.NewService(&fleetdb.DB{Bun: db}, log)
	a.Schedules = schedule.NewService(&scheduledb.DB{Bun: db}, a.Fleet, a.Locks, loc, log)
	a.Promotions = promotion.NewService(&promotiondb.DB{Bun: db}, c, log)
	a.Reviews = review.NewService(&reviewdb.DB{Bun: db}, log)
	a.Notifications = notification.NewService(&notificationdb.DB{Bun: db}, sse.NewHub(), log)

	signer := qr.NewSigner(cfg.Auth.QRSecret, cfg.Auth.QRTokenTTL)
	a.QR = qr.NewService(&qrdb.DB{Bun: db}, signer, a.Notifications, log)

	b := booking.NewService(&bookingdb.DB{Bun: db}, a.Locks, a.Queue, pub, cfg.Booking, log)
	b.Topics = cfg.Kafka.Topics
	b.Promotions = a.Promotions
	b.Notifier = a.Notifications
	b.QR = signer
	b.Mailer = mailer.New(cfg.Email, log)
	// without Kafka there is no worker consumer to send the e-ticket
	b.EmailInline = !cfg.Kafka.Enabled
	b.FrontendURL = cfg.FrontendURL
	a.Bookings = b

	a.Stats = stats.NewService(&statsdb.DB{Bun: db}, c, loc, log)

	a.Payments = handlers.NewPaymentHandler(b, storage.NewPostgreSQLStore(db, log), log)
	a.Payments.FrontendURL = cfg.FrontendURL
	a.wireGateways(loc)
	return a
}

// wireGateways registers every gateway whose credentials are configured.
func (a *App) wireGateways(loc *time.Location) {
	cfg, log := a.Config, a.Logger
	gateways := a.Bookings.Gateways

	if cfg.MoMo.AccessKey != "" && cfg.MoMo.SecretKey != "" {
		a.Payments.MoMo = momo.NewClient(cfg.MoMo, log)
		gateways[models.MethodMoMo] = a.Payments.MoMo
	}
	if cfg.ZaloPay.AppID != "" && cfg.ZaloPay.Key1 != "" {
		a.Payments.ZaloPay = zalopay.NewClient(cfg.ZaloPay, log)
		gateways[models.MethodZaloPay] = a.Payments.ZaloPay
	}
	if cfg.VNPay.TmnCode != "" && cfg.VNPay.HashSecret != "" {
		a.Payments.VNPay = vnpay.NewClient(cfg.VNPay, loc, log)
		gateways[models.MethodVNPay] = a.Payments.VNPay
	}
	if cfg.Stripe.SecretKey != "" {
		st, err := services.NewStripeService(cfg.Stripe, nil, log)
		if err != nil {
			log.Error("STRIPE", fmt.Sprintf("Card payments disabled: %v", err))
		} else {
			a.Payments.Stripe = st
			gateways[models.MethodCreditCard] = st
		}
	}

	enabled := make([]string, 0, len(gateways))
	for m := range gateways {
		enabled = append(enabled, string(m))
	}
	log.Info("PAYMENT", fmt.Sprintf("Gateways enabled: %s", strings.Join(enabled, ", ")))
}

// Gateway returns the gateway wired for method, if any.
func (a *App) Gateway(method models.PaymentMethod) (payment.Gateway, bool) {
	g, ok := a.Bookings.Gateways[method]
	return g, ok
}

// Router builds the HTTP API.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.Logger.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.Config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", logger.RequestIDHeader},
		ExposedHeaders:   []string{logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", a.Health)

	authMW := (&auth.Authenticator{
		Tokens:   a.Tokens,
		Verifier: a.Verifier,
		Users:    a.Users,
		Revoked:  a.Revocations,
		Logger:   a.Logger,
	}).Middleware()

	user_api.NewHandler(a.Users, a.Logger).RegisterRoutes(r, authMW)
	fleet_api.NewHandler(a.Fleet, a.Logger).RegisterRoutes(r, authMW)
	schedule_api.NewHandler(a.Schedules, a.Logger).RegisterRoutes(r, authMW)
	promotion_api.NewHandler(a.Promotions, a.Logger).RegisterRoutes(r, authMW)
	review_api.NewHandler(a.Reviews, a.Logger).RegisterRoutes(r, authMW)
	notification_api.NewHandler(a.Notifications, a.Logger).RegisterRoutes(r, authMW)
	qr_api.NewHandler(a.QR, a.Logger).RegisterRoutes(r, authMW)
	booking_api.NewHandler(a.Bookings, a.Logger).RegisterRoutes(r, authMW)
	stats_api.NewHandler(a.Stats, a.Logger).RegisterRoutes(r, authMW)

	r.Handle(paymentsPrefix+"/*", handlers.NewEngine(a.Payments, paymentsPrefix))
	return r
}

// Health pings Postgres and Redis.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var failed []string
	if err := a.DB.PingContext(ctx); err != nil {
		failed = append(failed, "database: "+err.Error())
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		failed = append(failed, "redis: "+err.Error())
	}
	if len(failed) > 0 {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Service unavailable", strings.Join(failed, "; ")))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", map[string]string{"database": "ok", "redis": "ok"}))
}

// RunWorkers starts the delayed-job poller, the schedule status ticker and
// the seat lock expiry listener. They stop when ctx is done.
func (a *App) RunWorkers(ctx context.Context) {
	w := a.Config.Worker
	go jobs.NewWorker(a.Queue, a.Bookings, w.PollInterval, a.Logger).Run(ctx)
	go jobs.NewStatusRunner(a.Schedules, w.ScheduleStatusInterval, a.Logger).Run(ctx)

	listener := &jobs.SeatExpiryListener{
		Client:    a.Redis,
		Publisher: a.Publisher,
		Topic:     a.Config.Kafka.Topics.SeatStatus,
		Logger:    a.Logger,
	}
	go listener.Run(ctx)
	a.Logger.Info("WORKER", "Background workers started")
}

// TicketPaidHandler mails the e-ticket for each ticket.paid event.
func (a *App) TicketPaidHandler() kafka.MessageHandler {
	return func(ctx context.Context, msg kafkago.Message) error {
		var ev models.TicketEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("failed to decode ticket event: %w", err)
		}
		if ev.PaymentHistoryID == 0 {
			return fmt.Errorf("ticket event without payment id")
		}
		a.Logger.LogKafka("CONSUME", msg.Topic, fmt.Sprintf("sending e-ticket for payment %d", ev.PaymentHistoryID))
		return a.Bookings.SendTicketEmail(ctx, ev.PaymentHistoryID)
	}
}
