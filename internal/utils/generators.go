package utils

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

func randomInt(max int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return time.Now().UnixNano() % max
	}
	return n.Int64()
}

// GenerateAppTransID builds a ZaloPay app_trans_id: yymmdd_<random>.
func GenerateAppTransID(now time.Time) string {
	return fmt.Sprintf("%s_%d", now.Format("060102"), randomInt(1000000))
}

// GenerateOrderID builds the gateway order reference for a payment history.
func GenerateOrderID(paymentHistoryID int64, now time.Time) string {
	return fmt.Sprintf("TICKET_%d_%d", paymentHistoryID, now.UnixMilli())
}

func GenerateUUID() string {
	return uuid.New().String()
}

// BookingCode renders the customer facing code for a payment history id.
func BookingCode(paymentHistoryID int64) string {
	return fmt.Sprintf("V%06d", paymentHistoryID)
}

// FormatVND groups thousands with dots: 150000 -> "150.000đ".
func FormatVND(amount float64) string {
	n := int64(math.Round(amount))
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	out := b.String() + "đ"
	if neg {
		return "-" + out
	}
	return out
}

// PadSeat renders a seat number with at least two digits.
func PadSeat(n int) string {
	return fmt.Sprintf("%02d", n)
}
