package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Review struct {
	bun.BaseModel `bun:"table:reviews"`

	ID        int64      `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64      `bun:"user_id,notnull" json:"userId"`
	BusID     int64      `bun:"bus_id,notnull" json:"busId"`
	TicketID  int64      `bun:"ticket_id,unique,notnull" json:"ticketId"`
	Rating    int        `bun:"rating,notnull" json:"rating"`
	Comment   string     `bun:"comment" json:"comment,omitempty"`
	Images    []string   `bun:"images" json:"images"`
	Reply     string     `bun:"reply" json:"reply,omitempty"`
	RepliedAt *time.Time `bun:"replied_at" json:"repliedAt,omitempty"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Bus  *Bus  `bun:"rel:belongs-to,join:bus_id=id" json:"bus,omitempty"`
}

type CreateReviewRequest struct {
	TicketID int64    `json:"ticketId"`
	Rating   int      `json:"rating"`
	Comment  string   `json:"comment"`
	Images   []string `json:"images"`
}

type UpdateReviewRequest struct {
	Rating  *int      `json:"rating,omitempty"`
	Comment *string   `json:"comment,omitempty"`
	Images  *[]string `json:"images,omitempty"`
}

type ReviewStats struct {
	BusID   int64   `json:"busId"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
