package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"busticket/internal/models"

	"github.com/uptrace/bun"
)

// Trip is a seeded brand, bus with seats, route and schedule.
type Trip struct {
	Brand    *models.Brand
	Bus      *models.Bus
	Seats    []models.Seat
	Route    *models.Route
	Schedule *models.Schedule
}

type TripOptions struct {
	BrandID          int64
	BrandName        string
	DailyTicketLimit int
	SeatCount        int
	Departure        time.Time
	Duration         time.Duration
	Status           models.ScheduleStatus
	StartPoint       string
	EndPoint         string
	Price            float64
}

func insert(t *testing.T, db bun.IDB, m interface{}) {
	t.Helper()
	if _, err := db.NewInsert().Model(m).Exec(context.Background()); err != nil {
		t.Fatalf("insert %T: %v", m, err)
	}
}

// SeedTrip creates a trip; zero options get usable defaults.
func SeedTrip(t *testing.T, db *bun.DB, opt TripOptions) *Trip {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	if opt.SeatCount == 0 {
		opt.SeatCount = 10
	}
	if opt.Departure.IsZero() {
		opt.Departure = now.Add(48 * time.Hour)
	}
	if opt.Duration == 0 {
		opt.Duration = 6 * time.Hour
	}
	if opt.Status == "" {
		opt.Status = models.ScheduleUpcoming
	}
	if opt.StartPoint == "" {
		opt.StartPoint = "Hồ Chí Minh"
	}
	if opt.EndPoint == "" {
		opt.EndPoint = "Đà Lạt"
	}
	if opt.Price == 0 {
		opt.Price = 300000
	}
	if opt.DailyTicketLimit == 0 {
		opt.DailyTicketLimit = 100
	}
	if opt.BrandName == "" {
		opt.BrandName = "Phương Trang"
	}

	trip := &Trip{}
	var brand models.Brand
	err := db.NewSelect().Model(&brand).Where("id = ?", opt.BrandID).Limit(1).Scan(context.Background())
	if opt.BrandID == 0 || err != nil {
		brand = models.Brand{
			ID:               opt.BrandID,
			Name:             opt.BrandName,
			DailyTicketLimit: opt.DailyTicketLimit,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		insert(t, db, &brand)
	}
	trip.Brand = &brand

	var busCount int
	busCount, _ = db.NewSelect().Model((*models.Bus)(nil)).Count(context.Background())
	trip.Bus = &models.Bus{
		Name:         fmt.Sprintf("Xe %d", busCount+1),
		LicensePlate: fmt.Sprintf("51B-%05d", busCount+1),
		SeatCount:    opt.SeatCount,
		Type:         models.BusCoach30,
		BrandID:      brand.ID,
		CreatedAt:    now,
	}
	insert(t, db, trip.Bus)

	trip.Seats = make([]models.Seat, opt.SeatCount)
	for i := range trip.Seats {
		trip.Seats[i] = models.Seat{BusID: trip.Bus.ID, SeatNumber: i + 1, Code: fmt.Sprintf("A%02d", i+1), IsAvailable: true}
		insert(t, db, &trip.Seats[i])
	}

	trip.Route = &models.Route{
		StartPoint:  opt.StartPoint,
		EndPoint:    opt.EndPoint,
		LowestPrice: opt.Price,
		BrandID:     brand.ID,
		CreatedAt:   now,
	}
	insert(t, db, trip.Route)

	trip.Schedule = &models.Schedule{
		BusID:       trip.Bus.ID,
		RouteID:     trip.Route.ID,
		DepartureAt: opt.Departure.UTC(),
		ArrivalAt:   opt.Departure.Add(opt.Duration).UTC(),
		Status:      opt.Status,
		CreatedAt:   now,
	}
	insert(t, db, trip.Schedule)
	trip.Schedule.Bus = trip.Bus
	trip.Schedule.Route = trip.Route
	trip.Bus.Brand = trip.Brand
	return trip
}

// SeedUser inserts a passenger.
func SeedUser(t *testing.T, db *bun.DB, email string) *models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	u := &models.User{
		UID:       "uid-" + email,
		Name:      "Hành khách",
		Email:     email,
		Role:      models.RolePassenger,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	insert(t, db, u)
	return u
}

// SeedTicket inserts a ticket with its payment history and join row.
func SeedTicket(t *testing.T, db *bun.DB, userID int64, trip *Trip, seatIdx int, status models.TicketStatus, payStatus models.PaymentStatus) *models.Ticket {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	price := trip.Route.LowestPrice
	ph := &models.PaymentHistory{
		Method:    models.MethodMoMo,
		Amount:    price,
		Status:    payStatus,
		CreatedAt: now,
		UpdatedAt: now,
	}
	insert(t, db, ph)
	tk := &models.Ticket{
		UserID:           userID,
		ScheduleID:       trip.Schedule.ID,
		SeatID:           trip.Seats[seatIdx].ID,
		Price:            price,
		TotalPrice:       price,
		Status:           status,
		PaymentMethod:    models.MethodMoMo,
		PaymentHistoryID: &ph.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	insert(t, db, tk)
	insert(t, db, &models.TicketPayment{TicketID: tk.ID, PaymentID: ph.ID, CreatedAt: now})
	tk.PaymentHistory = ph
	return tk
}
