package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountFixed      DiscountType = "FIXED"
	DiscountPercentage DiscountType = "PERCENTAGE"
)

type Promotion struct {
	bun.BaseModel `bun:"table:promotions"`

	ID            int64        `bun:"id,pk,autoincrement" json:"id"`
	Code          string       `bun:"code,unique,notnull" json:"code"`
	Description   string       `bun:"description" json:"description,omitempty"`
	DiscountType  DiscountType `bun:"discount_type,notnull" json:"discountType"`
	DiscountValue float64      `bun:"discount_value,notnull" json:"discountValue"`
	MinOrderValue float64      `bun:"min_order_value,notnull,default:0" json:"minOrderValue"`
	MaxDiscount   float64      `bun:"max_discount,notnull,default:0" json:"maxDiscount"`
	StartDate     time.Time    `bun:"start_date,notnull" json:"startDate"`
	EndDate       time.Time    `bun:"end_date,notnull" json:"endDate"`
	UsageLimit    int          `bun:"usage_limit,notnull,default:0" json:"usageLimit"`
	UsedCount     int          `bun:"used_count,notnull,default:0" json:"usedCount"`
	IsActive      bool         `bun:"is_active,notnull,default:true" json:"isActive"`
	CreatedAt     time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time    `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

type ApplyPromotionRequest struct {
	Code       string  `json:"code"`
	OrderValue float64 `json:"orderValue"`
}

type ApplyPromotionResult struct {
	Success        bool       `json:"success"`
	DiscountAmount float64    `json:"discountAmount"`
	FinalPrice     float64    `json:"finalPrice"`
	Promotion      *Promotion `json:"promotion"`
}

type PromotionUpdate struct {
	Description   *string       `json:"description,omitempty"`
	DiscountType  *DiscountType `json:"discountType,omitempty"`
	DiscountValue *float64      `json:"discountValue,omitempty"`
	MinOrderValue *float64      `json:"minOrderValue,omitempty"`
	MaxDiscount   *float64      `json:"maxDiscount,omitempty"`
	StartDate     *time.Time    `json:"startDate,omitempty"`
	EndDate       *time.Time    `json:"endDate,omitempty"`
	UsageLimit    *int          `json:"usageLimit,omitempty"`
	IsActive      *bool         `json:"isActive,omitempty"`
}
