package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	NotificationSystem          = "SYSTEM"
	NotificationPayment         = "PAYMENT"
	NotificationTicket          = "TICKET"
	NotificationTicketCancelled = "TICKET_CANCELLED"
	NotificationPaymentReminder = "PAYMENT_REMINDER"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull" json:"userId"`
	Title     string    `bun:"title,notnull" json:"title"`
	Message   string    `bun:"message,notnull" json:"message"`
	Type      string    `bun:"type,notnull,default:'SYSTEM'" json:"type"`
	IsRead    bool      `bun:"is_read,notnull,default:false" json:"isRead"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}
