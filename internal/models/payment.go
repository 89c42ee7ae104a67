package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	MethodCash       PaymentMethod = "CASH"
	MethodCreditCard PaymentMethod = "CREDIT_CARD"
	MethodMoMo       PaymentMethod = "MOMO"
	MethodZaloPay    PaymentMethod = "ZALOPAY"
	MethodVNPay      PaymentMethod = "VNPAY"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCreditCard, MethodMoMo, MethodZaloPay, MethodVNPay:
		return true
	}
	return false
}

// Label is the Vietnamese display name of a method.
func (m PaymentMethod) Label() string {
	switch m {
	case MethodCash:
		return "Tiền mặt"
	case MethodCreditCard:
		return "Thẻ tín dụng"
	case MethodMoMo:
		return "MoMo"
	case MethodZaloPay:
		return "ZaloPay"
	case MethodVNPay:
		return "VNPay"
	default:
		return string(m)
	}
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Label() string {
	switch s {
	case PaymentSuccess:
		return "Thành công"
	case PaymentPending:
		return "Chờ thanh toán"
	case PaymentFailed:
		return "Thất bại"
	case PaymentRefunded:
		return "Đã hoàn tiền"
	default:
		return string(s)
	}
}

type PaymentHistory struct {
	bun.BaseModel `bun:"table:payment_histories"`

	ID             int64         `bun:"id,pk,autoincrement" json:"id"`
	Method         PaymentMethod `bun:"method,notnull" json:"method"`
	Amount         float64       `bun:"amount,notnull" json:"amount"`
	TransactionID  string        `bun:"transaction_id" json:"transactionId,omitempty"`
	Status         PaymentStatus `bun:"status,notnull,default:'PENDING'" json:"status"`
	QRCode         string        `bun:"qr_code" json:"qrCode,omitempty"`
	PayURL         string        `bun:"pay_url" json:"payUrl,omitempty"`
	PaidAt         *time.Time    `bun:"paid_at" json:"paidAt,omitempty"`
	PromotionID    *int64        `bun:"promotion_id" json:"promotionId,omitempty"`
	DiscountAmount float64       `bun:"discount_amount,notnull,default:0" json:"discountAmount"`
	CreatedAt      time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt      time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`

	Promotion      *Promotion      `bun:"rel:belongs-to,join:promotion_id=id" json:"promotion,omitempty"`
	TicketPayments []TicketPayment `bun:"rel:has-many,join:id=payment_id" json:"ticketPayments,omitempty"`
}

// PaymentSummary is the passenger view of the payment behind a ticket.
type PaymentSummary struct {
	PaymentHistoryID int64      `json:"paymentHistoryId"`
	TicketCode       string     `json:"ticketCode"`
	Route            string     `json:"route"`
	DepartureTime    time.Time  `json:"departureTime"`
	Seat             string     `json:"seat"`
	Price            float64    `json:"price"`
	Method           string     `json:"method"`
	Status           string     `json:"status"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	TransactionID    string     `json:"transactionId,omitempty"`
	QRCode           string     `json:"qrCode,omitempty"`
	TicketIDs        []int64    `json:"ticketIds"`
	DiscountAmount   float64    `json:"discountAmount"`
}

type PaymentDetail struct {
	PaymentSummary
	SeatList             []string    `json:"seatList"`
	DropoffInfo          DropoffInfo `json:"dropoffInfo"`
	PromotionCode        string      `json:"promotionCode,omitempty"`
	PromotionDescription string      `json:"promotionDescription,omitempty"`
	BusName              string      `json:"busName,omitempty"`
	BrandName            string      `json:"brandName,omitempty"`
}
