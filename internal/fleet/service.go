package fleet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/logger"
	"busticket/internal/models"
)

const maxSeatsPerBus = 60

type DBLayer interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
	GetBrand(ctx context.Context, id int64) (*models.Brand, error)
	CreateBrand(ctx context.Context, b *models.Brand) error
	UpdateBrand(ctx context.Context, b *models.Brand) error
	BrandInUse(ctx context.Context, id int64) (bool, error)
	DeleteBrand(ctx context.Context, id int64) error

	ListBuses(ctx context.Context, brandID int64) ([]models.Bus, error)
	GetBus(ctx context.Context, id int64) (*models.Bus, error)
	CreateBusWithSeats(ctx context.Context, b *models.Bus, seats []models.Seat) error
	UpdateBus(ctx context.Context, b *models.Bus) error
	LicensePlateExists(ctx context.Context, plate string, excludeID int64) (bool, error)
	BusHasSchedules(ctx context.Context, busID int64) (bool, error)
	DeleteBus(ctx context.Context, id int64) error
	SeatsByBus(ctx context.Context, busID int64) ([]models.Seat, error)

	ListRoutes(ctx context.Context) ([]models.Route, error)
	GetRoute(ctx context.Context, id int64) (*models.Route, error)
	CreateRoute(ctx context.Context, rt *models.Route) error
	UpdateRoute(ctx context.Context, rt *models.Route) error
	RouteHasSchedules(ctx context.Context, routeID int64) (bool, error)
	DeleteRoute(ctx context.Context, id int64) error
}

type Service struct {
	DB     DBLayer
	Logger *logger.Logger
	now    func() time.Time
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log, now: time.Now}
}

func notFound(resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundError{Resource: resource, Err: err}
	}
	return fmt.Errorf("failed to load %s: %w", resource, err)
}

// SeatCode labels seat n of a bus: A01, A02, ...
func SeatCode(n int) string {
	return fmt.Sprintf("A%02d", n)
}

// GenerateSeats builds seats 1..count for a bus not yet inserted.
func GenerateSeats(count int) []models.Seat {
	seats := make([]models.Seat, 0, count)
	for i := 1; i <= count; i++ {
		seats = append(seats, models.Seat{SeatNumber: i, Code: SeatCode(i), IsAvailable: true})
	}
	return seats
}

// Brands

func (s *Service) ListBrands(ctx context.Context) ([]models.Brand, error) {
	return s.DB.ListBrands(ctx)
}

func (s *Service) GetBrand(ctx context.Context, id int64) (*models.Brand, error) {
	b, err := s.DB.GetBrand(ctx, id)
	if err != nil {
		return nil, notFound("brand", err)
	}
	return b, nil
}

func validateBrand(b *models.Brand) error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return apperr.ValidationError{Field: "name", Msg: "Tên nhà xe không được để trống"}
	}
	if b.DailyTicketLimit < 0 {
		return apperr.ValidationError{Field: "dailyTicketLimit", Msg: "Giới hạn vé phải lớn hơn hoặc bằng 0"}
	}
	return nil
}

func (s *Service) CreateBrand(ctx context.Context, b models.Brand) (*models.Brand, error) {
	if b.DailyTicketLimit == 0 {
		b.DailyTicketLimit = 100
	}
	if err := validateBrand(&b); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	b.ID, b.CreatedAt, b.UpdatedAt = 0, now, now
	if err := s.DB.CreateBrand(ctx, &b); err != nil {
		return nil, fmt.Errorf("failed to create brand: %w", err)
	}
	s.Logger.Info("FLEET", fmt.Sprintf("Brand %d (%s) created", b.ID, b.Name))
	return &b, nil
}

func (s *Service) UpdateBrand(ctx context.Context, id int64, in models.Brand) (*models.Brand, error) {
	b, err := s.GetBrand(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		b.Name = in.Name
	}
	if in.PhoneNumber != "" {
		b.PhoneNumber = in.PhoneNumber
	}
	if in.Image != "" {
		b.Image = in.Image
	}
	if in.Address != "" {
		b.Address = in.Address
	}
	if in.DailyTicketLimit > 0 {
		b.DailyTicketLimit = in.DailyTicketLimit
	}
	if err := validateBrand(b); err != nil {
		return nil, err
	}
	b.UpdatedAt = s.now().UTC()
	if err := s.DB.UpdateBrand(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update brand %d: %w", id, err)
	}
	return b, nil
}

func (s *Service) DeleteBrand(ctx context.Context, id int64) error {
	if _, err := s.GetBrand(ctx, id); err != nil {
		return err
	}
	inUse, err := s.DB.BrandInUse(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check brand usage: %w", err)
	}
	if inUse {
		return apperr.Conflict("brand", "Nhà xe còn xe hoặc tuyến đường, không thể xóa")
	}
	return s.DB.DeleteBrand(ctx, id)
}

// Buses

func (s *Service) ListBuses(ctx context.Context, brandID int64) ([]models.Bus, error) {
	return s.DB.ListBuses(ctx, brandID)
}

func (s *Service) GetBus(ctx context.Context, id int64) (*models.Bus, error) {
	b, err := s.DB.GetBus(ctx, id)
	if err != nil {
		return nil, notFound("bus", err)
	}
	return b, nil
}

func validBusType(t models.BusType) bool {
	switch t {
	case models.BusMinivan16, models.BusCoach30, models.BusCoach45, models.BusLimousine:
		return true
	}
	return false
}

// CreateBus inserts the bus and generates SeatCount seats for it.
func (s *Service) CreateBus(ctx context.Context, b models.Bus) (*models.Bus, error) {
	b.Name = strings.TrimSpace(b.Name)
	b.LicensePlate = strings.ToUpper(strings.TrimSpace(b.LicensePlate))
	switch {
	case b.Name == "":
		return nil, apperr.ValidationError{Field: "name", Msg: "Tên xe không được để trống"}
	case b.LicensePlate == "":
		return nil, apperr.ValidationError{Field: "licensePlate", Msg: "Biển số không được để trống"}
	case b.SeatCount <= 0 || b.SeatCount > maxSeatsPerBus:
		return nil, apperr.ValidationError{Field: "seatCount", Msg: fmt.Sprintf("Số ghế phải từ 1 đến %d", maxSeatsPerBus)}
	case !validBusType(b.Type):
		return nil, apperr.ValidationError{Field: "type", Msg: "Loại xe không hợp lệ"}
	}
	if _, err := s.GetBrand(ctx, b.BrandID); err != nil {
		return nil, err
	}
	taken, err := s.DB.LicensePlateExists(ctx, b.LicensePlate, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check license plate: %w", err)
	}
	if taken {
		return nil, apperr.Conflict("bus", "Biển số đã tồn tại")
	}

	b.ID, b.CreatedAt, b.Brand, b.Seats = 0, s.now().UTC(), nil, nil
	seats := GenerateSeats(b.SeatCount)
	if err := s.DB.CreateBusWithSeats(ctx, &b, seats); err != nil {
		return nil, fmt.Errorf("failed to create bus: %w", err)
	}
	b.Seats = seats
	s.Logger.Info("FLEET", fmt.Sprintf("Bus %d (%s) created with %d seats", b.ID, b.LicensePlate, len(seats)))
	return &b, nil
}

// UpdateBus edits bus attributes; the seat layout is fixed at creation.
func (s *Service) UpdateBus(ctx context.Context, id int64, in models.Bus) (*models.Bus, error) {
	b, err := s.GetBus(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		b.Name = strings.TrimSpace(in.Name)
	}
	if in.LicensePlate != "" {
		plate := strings.ToUpper(strings.TrimSpace(in.LicensePlate))
		taken, err := s.DB.LicensePlateExists(ctx, plate, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check license plate: %w", err)
		}
		if taken {
			return nil, apperr.Conflict("bus", "Biển số đã tồn tại")
		}
		b.LicensePlate = plate
	}
	if in.Type != "" {
		if !validBusType(in.Type) {
			return nil, apperr.ValidationError{Field: "type", Msg: "Loại xe không hợp lệ"}
		}
		b.Type = in.Type
	}
	if in.BrandID > 0 && in.BrandID != b.BrandID {
		if _, err := s.GetBrand(ctx, in.BrandID); err != nil {
			return nil, err
		}
		b.BrandID = in.BrandID
		b.Brand = nil
	}
	if err := s.DB.UpdateBus(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update bus %d: %w", id, err)
	}
	return b, nil
}

func (s *Service) DeleteBus(ctx context.Context, id int64) error {
	if _, err := s.GetBus(ctx, id); err != nil {
		return err
	}
	scheduled, err := s.DB.BusHasSchedules(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check schedules: %w", err)
	}
	if scheduled {
		return apperr.Conflict("bus", "Xe đã có lịch trình, không thể xóa")
	}
	if err := s.DB.DeleteBus(ctx, id); err != nil {
		return fmt.Errorf("failed to delete bus %d: %w", id, err)
	}
	s.Logger.Info("FLEET", fmt.Sprintf("Bus %d deleted", id))
	return nil
}

func (s *Service) SeatsByBus(ctx context.Context, busID int64) ([]models.Seat, error) {
	if _, err := s.GetBus(ctx, busID); err != nil {
		return nil, err
	}
	return s.DB.SeatsByBus(ctx, busID)
}

// Routes

func (s *Service) ListRoutes(ctx context.Context) ([]models.Route, error) {
	return s.DB.ListRoutes(ctx)
}

func (s *Service) GetRoute(ctx context.Context, id int64) (*models.Route, error) {
	rt, err := s.DB.GetRoute(ctx, id)
	if err != nil {
		return nil, notFound("route", err)
	}
	return rt, nil
}

func validateRoute(rt *models.Route) error {
	rt.StartPoint = strings.TrimSpace(rt.StartPoint)
	rt.EndPoint = strings.TrimSpace(rt.EndPoint)
	switch {
	case rt.StartPoint == "" || rt.EndPoint == "":
		return apperr.ValidationError{Field: "startPoint", Msg: "Điểm đi và điểm đến không được để trống"}
	case strings.EqualFold(rt.StartPoint, rt.EndPoint):
		return apperr.ValidationError{Field: "endPoint", Msg: "Điểm đến phải khác điểm đi"}
	case rt.LowestPrice < 0:
		return apperr.ValidationError{Field: "lowestPrice", Msg: "Giá vé không hợp lệ"}
	}
	return nil
}

func (s *Service) CreateRoute(ctx context.Context, rt models.Route) (*models.Route, error) {
	if err := validateRoute(&rt); err != nil {
		return nil, err
	}
	if _, err := s.GetBrand(ctx, rt.BrandID); err != nil {
		return nil, err
	}
	rt.ID, rt.CreatedAt, rt.Brand = 0, s.now().UTC(), nil
	if err := s.DB.CreateRoute(ctx, &rt); err != nil {
		return nil, fmt.Errorf("failed to create route: %w", err)
	}
	s.Logger.Info("FLEET", fmt.Sprintf("Route %d (%s) created", rt.ID, rt.Label()))
	return &rt, nil
}

func (s *Service) UpdateRoute(ctx context.Context, id int64, in models.Route) (*models.Route, error) {
	rt, err := s.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.StartPoint != "" {
		rt.StartPoint = in.StartPoint
	}
	if in.EndPoint != "" {
		rt.EndPoint = in.EndPoint
	}
	if in.AverageDurationMin > 0 {
		rt.AverageDurationMin = in.AverageDurationMin
	}
	if in.LowestPrice > 0 {
		rt.LowestPrice = in.LowestPrice
	}
	if in.DistanceKm > 0 {
		rt.DistanceKm = in.DistanceKm
	}
	if in.Image != "" {
		rt.Image = in.Image
	}
	if in.BrandID > 0 && in.BrandID != rt.BrandID {
		if _, err := s.GetBrand(ctx, in.BrandID); err != nil {
			return nil, err
		}
		rt.BrandID = in.BrandID
		rt.Brand = nil
	}
	if err := validateRoute(rt); err != nil {
		return nil, err
	}
	if err := s.DB.UpdateRoute(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to update route %d: %w", id, err)
	}
	return rt, nil
}

func (s *Service) DeleteRoute(ctx context.Context, id int64) error {
	if _, err := s.GetRoute(ctx, id); err != nil {
		return err
	}
	scheduled, err := s.DB.RouteHasSchedules(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check schedules: %w", err)
	}
	if scheduled {
		return apperr.Conflict("route", "Tuyến đường đã có lịch trình, không thể xóa")
	}
	return s.DB.DeleteRoute(ctx, id)
}
