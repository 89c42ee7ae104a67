package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketBooked    TicketStatus = "BOOKED"
	TicketPaid      TicketStatus = "PAID"
	TicketCancelled TicketStatus = "CANCELLED"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID               int64         `bun:"id,pk,autoincrement" json:"id"`
	UserID           int64         `bun:"user_id,notnull" json:"userId"`
	ScheduleID       int64         `bun:"schedule_id,notnull" json:"scheduleId"`
	SeatID           int64         `bun:"seat_id,notnull" json:"seatId"`
	Price            float64       `bun:"price,notnull" json:"price"`
	Surcharge        float64       `bun:"surcharge,notnull,default:0" json:"surcharge"`
	TotalPrice       float64       `bun:"total_price,notnull" json:"totalPrice"`
	Status           TicketStatus  `bun:"status,notnull,default:'BOOKED'" json:"status"`
	PaymentMethod    PaymentMethod `bun:"payment_method" json:"paymentMethod,omitempty"`
	DropoffPointID   *int64        `bun:"dropoff_point_id" json:"dropoffPointId,omitempty"`
	DropoffAddress   string        `bun:"dropoff_address" json:"dropoffAddress,omitempty"`
	PaymentHistoryID *int64        `bun:"payment_history_id" json:"paymentHistoryId,omitempty"`
	CreatedAt        time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt        time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`

	User           *User           `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Schedule       *Schedule       `bun:"rel:belongs-to,join:schedule_id=id" json:"schedule,omitempty"`
	Seat           *Seat           `bun:"rel:belongs-to,join:seat_id=id" json:"seat,omitempty"`
	DropoffPoint   *DropoffPoint   `bun:"rel:belongs-to,join:dropoff_point_id=id" json:"dropoffPoint,omitempty"`
	PaymentHistory *PaymentHistory `bun:"rel:belongs-to,join:payment_history_id=id" json:"paymentHistory,omitempty"`
}

// TicketPayment links tickets to the payment that settles them.
type TicketPayment struct {
	bun.BaseModel `bun:"table:ticket_payments"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	TicketID  int64     `bun:"ticket_id,notnull" json:"ticketId"`
	PaymentID int64     `bun:"payment_id,notnull" json:"paymentId"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Ticket *Ticket `bun:"rel:belongs-to,join:ticket_id=id" json:"ticket,omitempty"`
}

// DropoffInfo is the display form of where a passenger leaves the bus.
type DropoffInfo struct {
	Type          string  `json:"type"`
	Display       string  `json:"display"`
	Address       string  `json:"address,omitempty"`
	Surcharge     float64 `json:"surcharge"`
	SurchargeText string  `json:"surchargeText"`
}

type TicketView struct {
	Ticket
	DropoffInfo DropoffInfo `json:"dropoffInfo"`
}

// BookingRequest is one seat of a booking.
type BookingRequest struct {
	ScheduleID     int64         `json:"scheduleId"`
	SeatID         int64         `json:"seatId"`
	Price          float64       `json:"price"`
	PaymentMethod  PaymentMethod `json:"paymentMethod,omitempty"`
	DropoffPointID *int64        `json:"dropoffPointId,omitempty"`
	DropoffAddress string        `json:"dropoffAddress,omitempty"`
}

type BulkBookingRequest struct {
	Items         []BookingRequest `json:"tickets"`
	PaymentMethod PaymentMethod    `json:"paymentMethod,omitempty"`
	PromotionCode string           `json:"promotionCode,omitempty"`
	ClientIP      string           `json:"-"`
}

type BookingResult struct {
	Tickets          []Ticket `json:"tickets"`
	PaymentHistoryID int64    `json:"paymentHistoryId"`
	TotalAmount      float64  `json:"totalAmount"`
	DiscountAmount   float64  `json:"discountAmount"`
	PayURL           string   `json:"payUrl,omitempty"`
	ClientSecret     string   `json:"clientSecret,omitempty"`
	BookingCode      string   `json:"bookingCode"`
}

type PayResult struct {
	Message          string `json:"message"`
	PaymentHistoryID int64  `json:"paymentHistoryId"`
	QRCode           string `json:"qrCode"`
}

type CancelResult struct {
	Message      string  `json:"message"`
	TicketID     int64   `json:"ticketId"`
	RefundAmount float64 `json:"refundAmount"`
	FeeAmount    float64 `json:"feeAmount"`
}

// AdminBooking groups the tickets of one payment history.
type AdminBooking struct {
	ID            int64     `json:"id"`
	BookingCode   string    `json:"bookingCode"`
	Status        string    `json:"status"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	Route         string    `json:"route"`
	DepartureAt   time.Time `json:"departureAt"`
	Seats         []string  `json:"seats"`
	TotalAmount   float64   `json:"totalAmount"`
	Method        string    `json:"method"`
	CreatedAt     time.Time `json:"createdAt"`
	Tickets       []Ticket  `json:"tickets,omitempty"`
}
