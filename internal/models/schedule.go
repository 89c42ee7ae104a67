package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ScheduleStatus string

const (
	ScheduleUpcoming  ScheduleStatus = "UPCOMING"
	ScheduleOngoing   ScheduleStatus = "ONGOING"
	ScheduleCompleted ScheduleStatus = "COMPLETED"
	ScheduleCancelled ScheduleStatus = "CANCELLED"
	ScheduleFull      ScheduleStatus = "FULL"
	ScheduleFewSeats  ScheduleStatus = "FEW_SEATS"
)

func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleUpcoming, ScheduleOngoing, ScheduleCompleted, ScheduleCancelled, ScheduleFull, ScheduleFewSeats:
		return true
	}
	return false
}

type Schedule struct {
	bun.BaseModel `bun:"table:schedules"`

	ID          int64          `bun:"id,pk,autoincrement" json:"id"`
	BusID       int64          `bun:"bus_id,notnull" json:"busId"`
	RouteID     int64          `bun:"route_id,notnull" json:"routeId"`
	DepartureAt time.Time      `bun:"departure_at,notnull" json:"departureAt"`
	ArrivalAt   time.Time      `bun:"arrival_at,notnull" json:"arrivalAt"`
	Status      ScheduleStatus `bun:"status,notnull,default:'UPCOMING'" json:"status"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Bus           *Bus           `bun:"rel:belongs-to,join:bus_id=id" json:"bus,omitempty"`
	Route         *Route         `bun:"rel:belongs-to,join:route_id=id" json:"route,omitempty"`
	DropoffPoints []DropoffPoint `bun:"rel:has-many,join:id=schedule_id" json:"dropoffPoints,omitempty"`
}

type DropoffPoint struct {
	bun.BaseModel `bun:"table:dropoff_points"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	ScheduleID      int64     `bun:"schedule_id,notnull" json:"scheduleId"`
	Name            string    `bun:"name,notnull" json:"name"`
	Address         string    `bun:"address" json:"address,omitempty"`
	Surcharge       float64   `bun:"surcharge,notnull,default:0" json:"surcharge"`
	PriceDifference float64   `bun:"price_difference,notnull,default:0" json:"priceDifference"`
	IsDefault       bool      `bun:"is_default,notnull,default:false" json:"isDefault"`
	SortOrder       int       `bun:"sort_order,notnull,default:0" json:"order"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// SeatView is one seat of a schedule's seat map.
type SeatView struct {
	SeatID     int64  `json:"seatId"`
	SeatNumber int    `json:"seatNumber"`
	Code       string `json:"code"`
	IsBooked   bool   `json:"isBooked"`
	IsLocked   bool   `json:"isLocked"`
}

type ReminderInfo struct {
	DepartureAt string   `json:"departureAt"`
	BusName     string   `json:"busName"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	SeatNumbers []string `json:"seatNumbers"`
}

type CreateScheduleRequest struct {
	BusID       int64          `json:"busId"`
	RouteID     int64          `json:"routeId"`
	DepartureAt time.Time      `json:"departureAt"`
	ArrivalAt   time.Time      `json:"arrivalAt"`
	Status      ScheduleStatus `json:"status,omitempty"`
}

// DropoffPointInput carries create and partial update fields.
type DropoffPointInput struct {
	Name            *string  `json:"name,omitempty"`
	Address         *string  `json:"address,omitempty"`
	Surcharge       *float64 `json:"surcharge,omitempty"`
	PriceDifference *float64 `json:"priceDifference,omitempty"`
	IsDefault       *bool    `json:"isDefault,omitempty"`
	Order           *int     `json:"order,omitempty"`
}

