package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BusType string

const (
	BusMinivan16 BusType = "MINIVAN_16"
	BusCoach30   BusType = "COACH_30"
	BusCoach45   BusType = "COACH_45"
	BusLimousine BusType = "LIMOUSINE"
)

type Brand struct {
	bun.BaseModel `bun:"table:brands"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	Name             string    `bun:"name,notnull" json:"name"`
	PhoneNumber      string    `bun:"phone_number" json:"phoneNumber"`
	Image            string    `bun:"image" json:"image,omitempty"`
	Address          string    `bun:"address" json:"address,omitempty"`
	DailyTicketLimit int       `bun:"daily_ticket_limit,notnull,default:100" json:"dailyTicketLimit"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

type Bus struct {
	bun.BaseModel `bun:"table:buses"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	LicensePlate string    `bun:"license_plate,unique,notnull" json:"licensePlate"`
	SeatCount    int       `bun:"seat_count,notnull" json:"seatCount"`
	Type         BusType   `bun:"type,notnull" json:"type"`
	BrandID      int64     `bun:"brand_id,notnull" json:"brandId"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Brand *Brand `bun:"rel:belongs-to,join:brand_id=id" json:"brand,omitempty"`
	Seats []Seat `bun:"rel:has-many,join:id=bus_id" json:"seats,omitempty"`
}

type Seat struct {
	bun.BaseModel `bun:"table:seats"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	BusID       int64  `bun:"bus_id,notnull" json:"busId"`
	SeatNumber  int    `bun:"seat_number,notnull" json:"seatNumber"`
	Code        string `bun:"code,notnull" json:"code"`
	IsAvailable bool   `bun:"is_available,notnull,default:true" json:"isAvailable"`
}

type Route struct {
	bun.BaseModel `bun:"table:routes"`

	ID                 int64     `bun:"id,pk,autoincrement" json:"id"`
	StartPoint         string    `bun:"start_point,notnull" json:"startPoint"`
	EndPoint           string    `bun:"end_point,notnull" json:"endPoint"`
	AverageDurationMin int       `bun:"average_duration_min" json:"averageDurationMin"`
	LowestPrice        float64   `bun:"lowest_price,notnull" json:"lowestPrice"`
	DistanceKm         float64   `bun:"distance_km" json:"distanceKm"`
	Image              string    `bun:"image" json:"image,omitempty"`
	BrandID            int64     `bun:"brand_id,notnull" json:"brandId"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Brand *Brand `bun:"rel:belongs-to,join:brand_id=id" json:"brand,omitempty"`
}

// Label renders a route as "Start - End".
func (r *Route) Label() string {
	if r == nil {
		return ""
	}
	return r.StartPoint + " - " + r.EndPoint
}
