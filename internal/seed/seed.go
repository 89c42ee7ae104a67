// Package seed loads YAML fixtures (brands, routes, buses, schedules and their
// drop-off points) through the fleet and schedule services.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"busticket/internal/fleet"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/schedule"

	"gopkg.in/yaml.v3"
)

type Fixtures struct {
	Brands    []BrandFixture    `yaml:"brands"`
	Schedules []ScheduleFixture `yaml:"schedules"`
}

type BrandFixture struct {
	Name             string         `yaml:"name"`
	Phone            string         `yaml:"phone"`
	Address          string         `yaml:"address"`
	DailyTicketLimit int            `yaml:"dailyTicketLimit"`
	Routes           []RouteFixture `yaml:"routes"`
	Buses            []BusFixture   `yaml:"buses"`
}

type RouteFixture struct {
	Key         string  `yaml:"key"`
	Start       string  `yaml:"start"`
	End         string  `yaml:"end"`
	LowestPrice float64 `yaml:"lowestPrice"`
	DurationMin int     `yaml:"durationMin"`
	DistanceKm  float64 `yaml:"distanceKm"`
}

type BusFixture struct {
	Key          string         `yaml:"key"`
	Name         string         `yaml:"name"`
	LicensePlate string         `yaml:"licensePlate"`
	Type         models.BusType `yaml:"type"`
	Seats        int            `yaml:"seats"`
}

type ScheduleFixture struct {
	Bus         string           `yaml:"bus"`
	Route       string           `yaml:"route"`
	Departure   time.Time        `yaml:"departure"`
	DurationMin int              `yaml:"durationMin"`
	Dropoffs    []DropoffFixture `yaml:"dropoffPoints"`
}

type DropoffFixture struct {
	Name            string  `yaml:"name"`
	Address         string  `yaml:"address"`
	Surcharge       float64 `yaml:"surcharge"`
	PriceDifference float64 `yaml:"priceDifference"`
	Default         bool    `yaml:"default"`
}

// Result counts what Load inserted.
type Result struct {
	Brands, Routes, Buses, Schedules, Dropoffs int
}

func Parse(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return &f, nil
}

func ParseFile(path string) (*Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

type Loader struct {
	Fleet     *fleet.Service
	Schedules *schedule.Service
	Logger    *logger.Logger
}

// Load inserts f in dependency order. Schedules refer to buses and routes by
// their fixture keys.
func (l *Loader) Load(ctx context.Context, f *Fixtures) (*Result, error) {
	res := &Result{}
	routes := map[string]*models.Route{}
	buses := map[string]int64{}

	for _, bf := range f.Brands {
		brand, err := l.Fleet.CreateBrand(ctx, models.Brand{
			Name:             bf.Name,
			PhoneNumber:      bf.Phone,
			Address:          bf.Address,
			DailyTicketLimit: bf.DailyTicketLimit,
		})
		if err != nil {
			return res, fmt.Errorf("brand %q: %w", bf.Name, err)
		}
		res.Brands++

		for _, rf := range bf.Routes {
			rt, err := l.Fleet.CreateRoute(ctx, models.Route{
				StartPoint:         rf.Start,
				EndPoint:           rf.End,
				LowestPrice:        rf.LowestPrice,
				AverageDurationMin: rf.DurationMin,
				DistanceKm:         rf.DistanceKm,
				BrandID:            brand.ID,
			})
			if err != nil {
				return res, fmt.Errorf("route %q: %w", rf.Key, err)
			}
			routes[rf.Key] = rt
			res.Routes++
		}

		for _, busf := range bf.Buses {
			bus, err := l.Fleet.CreateBus(ctx, models.Bus{
				Name:         busf.Name,
				LicensePlate: busf.LicensePlate,
				Type:         busf.Type,
				SeatCount:    busf.Seats,
				BrandID:      brand.ID,
			})
			if err != nil {
				return res, fmt.Errorf("bus %q: %w", busf.Key, err)
			}
			buses[busf.Key] = bus.ID
			res.Buses++
		}
	}

	for i, sf := range f.Schedules {
		rt, ok := routes[sf.Route]
		if !ok {
			return res, fmt.Errorf("schedule %d: unknown route %q", i, sf.Route)
		}
		busID, ok := buses[sf.Bus]
		if !ok {
			return res, fmt.Errorf("schedule %d: unknown bus %q", i, sf.Bus)
		}
		minutes := sf.DurationMin
		if minutes <= 0 {
			minutes = rt.AverageDurationMin
		}
		sched, err := l.Schedules.Create(ctx, models.CreateScheduleRequest{
			BusID:       busID,
			RouteID:     rt.ID,
			DepartureAt: sf.Departure,
			ArrivalAt:   sf.Departure.Add(time.Duration(minutes) * time.Minute),
		})
		if err != nil {
			return res, fmt.Errorf("schedule %d: %w", i, err)
		}
		res.Schedules++

		for j, df := range sf.Dropoffs {
			order := j + 1
			if _, err := l.Schedules.CreateDropoffPoint(ctx, sched.ID, models.DropoffPointInput{
				Name:            &df.Name,
				Address:         &df.Address,
				Surcharge:       &df.Surcharge,
				PriceDifference: &df.PriceDifference,
				IsDefault:       &df.Default,
				Order:           &order,
			}); err != nil {
				return res, fmt.Errorf("schedule %d drop-off %q: %w", i, df.Name, err)
			}
			res.Dropoffs++
		}
	}

	l.Logger.Info("SEED", fmt.Sprintf("Loaded %d brands, %d routes, %d buses, %d schedules, %d drop-off points",
		res.Brands, res.Routes, res.Buses, res.Schedules, res.Dropoffs))
	return res, nil
}
