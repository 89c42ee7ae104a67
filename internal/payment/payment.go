// Package payment holds what every gateway integration shares.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"regexp"
	"strconv"
)

var (
	// ErrAlreadyPaid is returned when a payment group was settled before.
	ErrAlreadyPaid = errors.New("payment already settled")
	// ErrNotPayable is returned for groups that were cancelled or failed.
	ErrNotPayable = errors.New("payment can no longer be settled")
)

// Request describes the group payment a gateway is asked to collect.
type Request struct {
	PaymentHistoryID int64
	Amount           float64
	UserEmail        string
	ClientIP         string
}

// Checkout is what a gateway hands back for the passenger to complete.
type Checkout struct {
	PayURL        string `json:"payUrl,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	ClientSecret  string `json:"clientSecret,omitempty"`
}

type Gateway interface {
	Checkout(ctx context.Context, req Request) (*Checkout, error)
}

func HMACSHA256(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func HMACSHA512(key, data string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

var orderIDPattern = regexp.MustCompile(`^TICKET_(\d+)_\d+$`)

// ParseOrderID extracts the payment history id from TICKET_<id>_<ms>.
func ParseOrderID(orderID string) (int64, bool) {
	m := orderIDPattern.FindStringSubmatch(orderID)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
