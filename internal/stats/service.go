// Package stats builds the admin dashboard figures.
package stats

import (
	"context"
	"fmt"
	"time"

	"busticket/internal/cache"
	"busticket/internal/logger"
	"busticket/internal/models"
	statsdb "busticket/internal/stats/db"
	"busticket/internal/utils"
)

const (
	summaryCacheKey = "stats:summary"
	topRoutesLimit  = 5
	occupancyDays   = 30
	hourlyDays      = 30
)

type DBLayer interface {
	TotalRevenue(ctx context.Context) (float64, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (float64, error)
	CountSold(ctx context.Context) (int, error)
	CountPassengersSince(ctx context.Context, since time.Time) (int, error)
	CountActiveTrips(ctx context.Context) (int, error)
	TicketActivity(ctx context.Context, since time.Time, statuses ...models.TicketStatus) ([]statsdb.Activity, error)
	BookingTimes(ctx context.Context, since time.Time) ([]statsdb.Activity, error)
	TopRoutes(ctx context.Context, limit int) ([]models.RouteRevenue, error)
	BrandRevenue(ctx context.Context) ([]models.BrandRevenue, error)
	StatusCounts(ctx context.Context) ([]statsdb.Count, error)
	RouteTreemap(ctx context.Context) ([]models.TreemapNode, error)
	Departures(ctx context.Context, from, to time.Time) ([]statsdb.Departure, error)
	MethodCounts(ctx context.Context) ([]statsdb.Count, error)
}

type Service struct {
	DB       DBLayer
	Cache    *cache.RedisCache
	CacheTTL time.Duration
	Logger   *logger.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(db DBLayer, c *cache.RedisCache, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{DB: db, Cache: c, CacheTTL: time.Minute, Logger: log, loc: loc, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Growth is the percent change from previous to current, 100 when there
// was nothing to compare against.
func Growth(current, previous float64) float64 {
	switch {
	case previous > 0:
		return utils.Round1((current - previous) / previous * 100)
	case current > 0:
		return 100
	default:
		return 0
	}
}

func (s *Service) Summary(ctx context.Context) (*models.StatsSummary, error) {
	return cache.Remember(ctx, s.Cache, summaryCacheKey, s.CacheTTL, func() (*models.StatsSummary, error) {
		now := s.now()
		monthStart := utils.StartOfMonth(now, s.loc)
		lastMonthStart := monthStart.AddDate(0, -1, 0)

		revenue, err := s.DB.TotalRevenue(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to sum revenue: %w", err)
		}
		lastMonth, err := s.DB.RevenueBetween(ctx, lastMonthStart, monthStart)
		if err != nil {
			return nil, fmt.Errorf("failed to sum last month revenue: %w", err)
		}
		sold, err := s.DB.CountSold(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count sold tickets: %w", err)
		}
		passengers, err := s.DB.CountPassengersSince(ctx, monthStart)
		if err != nil {
			return nil, fmt.Errorf("failed to count new passengers: %w", err)
		}
		trips, err := s.DB.CountActiveTrips(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count active trips: %w", err)
		}
		return &models.StatsSummary{
			TotalRevenue:  revenue,
			RevenueGrowth: Growth(revenue, lastMonth),
			TicketsSold:   sold,
			NewPassengers: passengers,
			ActiveTrips:   trips,
		}, nil
	})
}

// window returns the local midnights of the last days days, oldest first.
func (s *Service) window(days int) []time.Time {
	if days <= 0 {
		days = 7
	}
	today := utils.StartOfDay(s.now(), s.loc)
	out := make([]time.Time, days)
	for i := range out {
		out[i] = today.AddDate(0, 0, i-days+1)
	}
	return out
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

func shortDate(t time.Time) string { return fmt.Sprintf("%d/%d", t.Day(), int(t.Month())) }

// RevenueChart sums PAID revenue per local day, zero-filled.
func (s *Service) RevenueChart(ctx context.Context, days int) ([]models.RevenuePoint, error) {
	window := s.window(days)
	rows, err := s.DB.TicketActivity(ctx, window[0], models.TicketPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to load paid tickets: %w", err)
	}
	byDay := make(map[string]float64)
	for _, r := range rows {
		byDay[dayKey(r.At.In(s.loc))] += r.Amount
	}
	out := make([]models.RevenuePoint, len(window))
	for i, d := range window {
		out[i] = models.RevenuePoint{Date: shortDate(d), FullDate: dayKey(d), Revenue: byDay[dayKey(d)]}
	}
	return out, nil
}

// TicketTrend compares PAID and CANCELLED tickets per local day.
func (s *Service) TicketTrend(ctx context.Context, days int) ([]models.TrendPoint, error) {
	window := s.window(days)
	rows, err := s.DB.TicketActivity(ctx, window[0], models.TicketPaid, models.TicketCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket activity: %w", err)
	}
	paid := make(map[string]int)
	cancelled := make(map[string]int)
	for _, r := range rows {
		key := dayKey(r.At.In(s.loc))
		if r.Status == models.TicketPaid {
			paid[key]++
		} else {
			cancelled[key]++
		}
	}
	out := make([]models.TrendPoint, len(window))
	for i, d := range window {
		key := dayKey(d)
		out[i] = models.TrendPoint{Date: shortDate(d), FullDate: key, Success: paid[key], Cancelled: cancelled[key]}
	}
	return out, nil
}

func (s *Service) TopRoutes(ctx context.Context) ([]models.RouteRevenue, error) {
	rows, err := s.DB.TopRoutes(ctx, topRoutesLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank routes: %w", err)
	}
	if rows == nil {
		rows = []models.RouteRevenue{}
	}
	return rows, nil
}

func (s *Service) BrandRevenue(ctx context.Context) ([]models.BrandRevenue, error) {
	rows, err := s.DB.BrandRevenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum brand revenue: %w", err)
	}
	if rows == nil {
		rows = []models.BrandRevenue{}
	}
	return rows, nil
}

var statusLabels = map[string][2]string{
	string(models.TicketPaid):      {"Đã thanh toán", "#22c55e"},
	string(models.TicketBooked):    {"Chờ thanh toán", "#eab308"},
	string(models.TicketCancelled): {"Đã hủy", "#ef4444"},
}

func (s *Service) StatusStats(ctx context.Context) ([]models.StatusStat, error) {
	rows, err := s.DB.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count ticket statuses: %w", err)
	}
	out := make([]models.StatusStat, 0, len(rows))
	for _, r := range rows {
		stat := models.StatusStat{Name: r.Label, Value: r.Count, Color: "#94a3b8", RawStatus: r.Label}
		if l, ok := statusLabels[r.Label]; ok {
			stat.Name, stat.Color = l[0], l[1]
		}
		out = append(out, stat)
	}
	return out, nil
}

func (s *Service) RouteTreemap(ctx context.Context) ([]models.TreemapNode, error) {
	rows, err := s.DB.RouteTreemap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build route treemap: %w", err)
	}
	if rows == nil {
		rows = []models.TreemapNode{}
	}
	return rows, nil
}

// Occupancy covers non-cancelled trips that departed in the last 30 days.
func (s *Service) Occupancy(ctx context.Context) (*models.Occupancy, error) {
	now := s.now()
	rows, err := s.DB.Departures(ctx, now.AddDate(0, 0, -occupancyDays), now)
	if err != nil {
		return nil, fmt.Errorf("failed to load departures: %w", err)
	}
	occ := &models.Occupancy{}
	for _, r := range rows {
		occ.Capacity += r.SeatCount
		occ.Sold += r.Sold
	}
	if occ.Capacity > 0 {
		occ.Rate = utils.Round1(float64(occ.Sold) / float64(occ.Capacity) * 100)
	}
	occ.ChartData = []models.ChartSlice{
		{Name: "Ghế đã bán", Value: occ.Sold, Fill: "#22c55e"},
		{Name: "Ghế trống", Value: occ.Capacity - occ.Sold, Fill: "#e5e7eb"},
	}
	return occ, nil
}

var methodColors = map[models.PaymentMethod]string{
	models.MethodMoMo:       "#A50064",
	models.MethodZaloPay:    "#0068FF",
	models.MethodCash:       "#22c55e",
	models.MethodVNPay:      "#ED1C24",
	models.MethodCreditCard: "#635BFF",
}

func (s *Service) PaymentMethods(ctx context.Context) ([]models.ChartSlice, error) {
	rows, err := s.DB.MethodCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count payment methods: %w", err)
	}
	out := make([]models.ChartSlice, 0, len(rows))
	for _, r := range rows {
		m := models.PaymentMethod(r.Label)
		slice := models.ChartSlice{Name: r.Label, Value: r.Count, Fill: "#94a3b8"}
		if r.Label == "" {
			slice.Name = "Khác"
		}
		if c, ok := methodColors[m]; ok {
			slice.Fill = c
		}
		out = append(out, slice)
	}
	return out, nil
}

// HourlyBookings buckets the last 30 days of bookings by local hour.
func (s *Service) HourlyBookings(ctx context.Context) ([]models.HourlyStat, error) {
	rows, err := s.DB.BookingTimes(ctx, s.now().AddDate(0, 0, -hourlyDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load booking times: %w", err)
	}
	var counts [24]int
	for _, r := range rows {
		counts[r.At.In(s.loc).Hour()]++
	}
	out := make([]models.HourlyStat, 24)
	for h := range out {
		out[h] = models.HourlyStat{Hour: fmt.Sprintf("%d:00", h), Count: counts[h]}
	}
	return out, nil
}
