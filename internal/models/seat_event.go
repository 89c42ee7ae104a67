package models

import "time"

const (
	SeatStatusAvailable = "AVAILABLE"
	SeatStatusLocked    = "LOCKED"
	SeatStatusBooked    = "BOOKED"
)

// SeatStatusEvent is published whenever a seat of a schedule changes state.
type SeatStatusEvent struct {
	ScheduleID int64     `json:"scheduleId"`
	SeatIDs    []int64   `json:"seatIds"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewSeatStatusEvent(scheduleID int64, seatIDs []int64, status string) SeatStatusEvent {
	return SeatStatusEvent{
		ScheduleID: scheduleID,
		SeatIDs:    seatIDs,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
}

// TicketEvent is the payload of the ticket lifecycle topics.
type TicketEvent struct {
	PaymentHistoryID int64     `json:"paymentHistoryId"`
	TicketIDs        []int64   `json:"ticketIds"`
	UserID           int64     `json:"userId"`
	ScheduleID       int64     `json:"scheduleId"`
	Status           string    `json:"status"`
	Amount           float64   `json:"amount"`
	OccurredAt       time.Time `json:"occurredAt"`
}
