package schedule

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
	scheduledb "busticket/internal/schedule/db"
	"busticket/internal/utils"
)

type DBLayer interface {
	CreateSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, id int64) (*models.Schedule, error)
	Search(ctx context.Context, f scheduledb.SearchFilter) ([]models.Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
	SeatsByBus(ctx context.Context, busID int64) ([]models.Seat, error)
	BookedSeatIDs(ctx context.Context, scheduleID int64) ([]int64, error)
	TransitionStatus(ctx context.Context, from, to models.ScheduleStatus, timeCol string, now time.Time) ([]models.Schedule, error)
	ListDropoffPoints(ctx context.Context, scheduleID int64) ([]models.DropoffPoint, error)
	GetDropoffPoint(ctx context.Context, id int64) (*models.DropoffPoint, error)
	SaveDropoffPoint(ctx context.Context, p *models.DropoffPoint) error
	DropoffPointInUse(ctx context.Context, id int64) (bool, error)
	DeleteDropoffPoint(ctx context.Context, id int64) error
	PaidSeatNumbers(ctx context.Context, scheduleID int64) ([]int, error)
}

// FleetLookup checks the bus and route a schedule points at.
type FleetLookup interface {
	GetBus(ctx context.Context, id int64) (*models.Bus, error)
	GetRoute(ctx context.Context, id int64) (*models.Route, error)
}

// SeatLocks reports seats currently held by an in-flight booking.
type SeatLocks interface {
	LockedSeats(ctx context.Context, scheduleID int64, seatIDs []int64) (map[int64]bool, error)
}

type Service struct {
	DB     DBLayer
	Fleet  FleetLookup
	Locks  SeatLocks
	Logger *logger.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewService(db DBLayer, fleet FleetLookup, locks SeatLocks, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{DB: db, Fleet: fleet, Locks: locks, Logger: log, loc: loc, now: time.Now}
}

func (s *Service) Create(ctx context.Context, req models.CreateScheduleRequest) (*models.Schedule, error) {
	if req.DepartureAt.IsZero() || req.ArrivalAt.IsZero() {
		return nil, apperr.ValidationError{Field: "departureAt", Msg: "Thời gian khởi hành và đến nơi là bắt buộc"}
	}
	if !req.ArrivalAt.After(req.DepartureAt) {
		return nil, apperr.ValidationError{Field: "arrivalAt", Msg: "Thời gian đến phải sau thời gian khởi hành"}
	}
	status := req.Status
	if status == "" {
		status = models.ScheduleUpcoming
	}
	if !status.Valid() {
		return nil, apperr.ValidationError{Field: "status", Msg: "Trạng thái không hợp lệ"}
	}
	if _, err := s.Fleet.GetBus(ctx, req.BusID); err != nil {
		return nil, err
	}
	if _, err := s.Fleet.GetRoute(ctx, req.RouteID); err != nil {
		return nil, err
	}

	sched := &models.Schedule{
		BusID:       req.BusID,
		RouteID:     req.RouteID,
		DepartureAt: req.DepartureAt.UTC(),
		ArrivalAt:   req.ArrivalAt.UTC(),
		Status:      status,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.DB.CreateSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	s.Logger.Info("SCHEDULE", fmt.Sprintf("Schedule %d created for bus %d on route %d", sched.ID, sched.BusID, sched.RouteID))
	return sched, nil
}

// Search matches route points case-insensitively; date (YYYY-MM-DD) selects
// departures on that calendar day in the service timezone.
func (s *Service) Search(ctx context.Context, startPoint, endPoint, date string) ([]models.Schedule, error) {
	f := scheduledb.SearchFilter{
		StartPoint: strings.TrimSpace(startPoint),
		EndPoint:   strings.TrimSpace(endPoint),
	}
	if date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, s.loc)
		if err != nil {
			return nil, apperr.ValidationError{Field: "date", Msg: "Ngày không hợp lệ (YYYY-MM-DD)", Err: err}
		}
		f.From = utils.StartOfDay(day, s.loc).UTC()
		f.To = utils.EndOfDay(day, s.loc).UTC()
	}
	schedules, err := s.DB.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to search schedules: %w", err)
	}
	return schedules, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Schedule, error) {
	sched, err := s.DB.GetSchedule(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "schedule", Err: err}
		}
		return nil, fmt.Errorf("failed to load schedule %d: %w", id, err)
	}
	return sched, nil
}

// Seats returns the seat map of a schedule. Cancelled tickets do not block
// a seat; live Redis locks mark it locked.
func (s *Service) Seats(ctx context.Context, id int64) ([]models.SeatView, error) {
	sched, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	seats, err := s.DB.SeatsByBus(ctx, sched.BusID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seats: %w", err)
	}
	bookedIDs, err := s.DB.BookedSeatIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked seats: %w", err)
	}
	booked := make(map[int64]bool, len(bookedIDs))
	for _, sid := range bookedIDs {
		booked[sid] = true
	}

	locked := map[int64]bool{}
	if s.Locks != nil && len(seats) > 0 {
		ids := make([]int64, len(seats))
		for i, seat := range seats {
			ids[i] = seat.ID
		}
		if locked, err = s.Locks.LockedSeats(ctx, id, ids); err != nil {
			s.Logger.Warn("SCHEDULE", fmt.Sprintf("Seat lock lookup failed for schedule %d: %v", id, err))
			locked = map[int64]bool{}
		}
	}

	views := make([]models.SeatView, 0, len(seats))
	for _, seat := range seats {
		views = append(views, models.SeatView{
			SeatID:     seat.ID,
			SeatNumber: seat.SeatNumber,
			Code:       seat.Code,
			IsBooked:   booked[seat.ID],
			IsLocked:   locked[seat.ID] && !booked[seat.ID],
		})
	}
	return views, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.DB.DeleteSchedule(ctx, id); err != nil {
		return fmt.Errorf("failed to delete schedule %d: %w", id, err)
	}
	s.Logger.Info("SCHEDULE", fmt.Sprintf("Schedule %d deleted with its tickets", id))
	return nil
}

// UpdateStatuses moves departed trips to ONGOING and arrived trips to
// COMPLETED.
func (s *Service) UpdateStatuses(ctx context.Context, now time.Time) (ongoing, completed int, err error) {
	started, err := s.DB.TransitionStatus(ctx, models.ScheduleUpcoming, models.ScheduleOngoing, "departure_at", now.UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to start schedules: %w", err)
	}
	for _, sc := range started {
		s.Logger.Info("SCHEDULE", fmt.Sprintf("Schedule %d (%s) UPCOMING -> ONGOING", sc.ID, sc.Route.Label()))
	}

	finished, err := s.DB.TransitionStatus(ctx, models.ScheduleOngoing, models.ScheduleCompleted, "arrival_at", now.UTC())
	if err != nil {
		return len(started), 0, fmt.Errorf("failed to complete schedules: %w", err)
	}
	for _, sc := range finished {
		s.Logger.Info("SCHEDULE", fmt.Sprintf("Schedule %d (%s) ONGOING -> COMPLETED", sc.ID, sc.Route.Label()))
	}
	return len(started), len(finished), nil
}

// Drop-off points

func (s *Service) ListDropoffPoints(ctx context.Context, scheduleID int64) ([]models.DropoffPoint, error) {
	points, err := s.DB.ListDropoffPoints(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list drop-off points: %w", err)
	}
	if len(points) == 0 {
		return nil, apperr.NotFound("dropoff points")
	}
	return points, nil
}

func applyDropoffInput(p *models.DropoffPoint, in models.DropoffPointInput) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	if in.Surcharge != nil {
		p.Surcharge = *in.Surcharge
	}
	if in.PriceDifference != nil {
		p.PriceDifference = *in.PriceDifference
	}
	if in.IsDefault != nil {
		p.IsDefault = *in.IsDefault
	}
	if in.Order != nil {
		p.SortOrder = *in.Order
	}
	if p.Name == "" {
		return apperr.ValidationError{Field: "name", Msg: "Tên điểm trả không được để trống"}
	}
	if p.Surcharge < 0 {
		return apperr.ValidationError{Field: "surcharge", Msg: "Phụ phí không được âm"}
	}
	return nil
}

func (s *Service) CreateDropoffPoint(ctx context.Context, scheduleID int64, in models.DropoffPointInput) (*models.DropoffPoint, error) {
	if _, err := s.Get(ctx, scheduleID); err != nil {
		return nil, err
	}
	p := &models.DropoffPoint{ScheduleID: scheduleID, CreatedAt: s.now().UTC()}
	if err := applyDropoffInput(p, in); err != nil {
		return nil, err
	}
	if err := s.DB.SaveDropoffPoint(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create drop-off point: %w", err)
	}
	return p, nil
}

func (s *Service) getDropoffPoint(ctx context.Context, id int64) (*models.DropoffPoint, error) {
	p, err := s.DB.GetDropoffPoint(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "dropoff point", Err: err}
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateDropoffPoint(ctx context.Context, id int64, in models.DropoffPointInput) (*models.DropoffPoint, error) {
	p, err := s.getDropoffPoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyDropoffInput(p, in); err != nil {
		return nil, err
	}
	if err := s.DB.SaveDropoffPoint(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update drop-off point %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) DeleteDropoffPoint(ctx context.Context, id int64) error {
	if _, err := s.getDropoffPoint(ctx, id); err != nil {
		return err
	}
	inUse, err := s.DB.DropoffPointInUse(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check drop-off usage: %w", err)
	}
	if inUse {
		return apperr.Invalid("Điểm trả đã được sử dụng trong vé, không thể xóa")
	}
	return s.DB.DeleteDropoffPoint(ctx, id)
}

// ReminderInfo summarises a trip for departure reminders.
func (s *Service) ReminderInfo(ctx context.Context, scheduleID int64) (*models.ReminderInfo, error) {
	sched, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	numbers, err := s.DB.PaidSeatNumbers(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load paid seats: %w", err)
	}
	info := &models.ReminderInfo{
		DepartureAt: sched.DepartureAt.UTC().Format(time.RFC3339),
		SeatNumbers: make([]string, 0, len(numbers)),
	}
	if sched.Bus != nil {
		info.BusName = sched.Bus.Name
	}
	if sched.Route != nil {
		info.From = sched.Route.StartPoint
		info.To = sched.Route.EndPoint
	}
	for _, n := range numbers {
		info.SeatNumbers = append(info.SeatNumbers, utils.PadSeat(n))
	}
	return info, nil
}
