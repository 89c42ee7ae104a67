// Package vnpay builds signed VNPay payment URLs and verifies their returns.
package vnpay

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/config"
	"busticket/internal/logger"
	"busticket/internal/payment"
	"busticket/internal/utils"
)

const (
	version    = "2.1.0"
	dateLayout = "20060102150405"

	ResponseSuccess = "00"
)

type Client struct {
	Config   config.VNPayConfig
	Location *time.Location
	Logger   *logger.Logger
	now      func() time.Time
}

func NewClient(cfg config.VNPayConfig, loc *time.Location, log *logger.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{Config: cfg, Location: loc, Logger: log, now: time.Now}
}

func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Result is the outcome of verifying a return or IPN query.
type Result struct {
	ValidSignature   bool
	Success          bool
	PaymentHistoryID int64
	TxnRef           string
	ResponseCode     string
	TransactionNo    string
	Message          string
}

// encode sorts keys and PHP-urlencodes both sides, skipping empty values.
func encode(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func (c *Client) sign(data string) string {
	return payment.HMACSHA512(c.Config.HashSecret, data)
}

// Sign returns the vnp_SecureHash for params.
func (c *Client) Sign(params map[string]string) string {
	return c.sign(encode(params))
}

// PaymentURL returns the redirect URL for paying amount VND.
func (c *Client) PaymentURL(paymentHistoryID int64, amount float64, clientIP string) (string, string, error) {
	if c.Config.TmnCode == "" || c.Config.HashSecret == "" {
		return "", "", fmt.Errorf("vnpay configuration is missing")
	}
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	now := c.now()
	txnRef := utils.GenerateOrderID(paymentHistoryID, now)

	params := map[string]string{
		"vnp_Version":    version,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    c.Config.TmnCode,
		"vnp_Locale":     "vn",
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     txnRef,
		"vnp_OrderInfo":  fmt.Sprintf("Thanh toan ve %d", paymentHistoryID),
		"vnp_OrderType":  "other",
		"vnp_Amount":     strconv.FormatInt(int64(amount*100), 10),
		"vnp_ReturnUrl":  c.Config.ReturnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": now.In(c.Location).Format(dateLayout),
	}
	query := encode(params)
	payURL := c.Config.PayURL + "?" + query + "&vnp_SecureHash=" + c.sign(query)

	c.Logger.LogPayment("VNPAY", paymentHistoryID, "payment URL created for "+txnRef)
	return payURL, txnRef, nil
}

func (c *Client) Checkout(_ context.Context, req payment.Request) (*payment.Checkout, error) {
	payURL, txnRef, err := c.PaymentURL(req.PaymentHistoryID, req.Amount, req.ClientIP)
	if err != nil {
		return nil, apperr.Invalidf("Không thể tạo thanh toán VNPay: %v", err)
	}
	return &payment.Checkout{PayURL: payURL, TransactionID: txnRef}, nil
}

// Verify checks a return or IPN query string.
func (c *Client) Verify(query url.Values) Result {
	params := make(map[string]string, len(query))
	for k := range query {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		params[k] = query.Get(k)
	}

	res := Result{
		TxnRef:        query.Get("vnp_TxnRef"),
		ResponseCode:  query.Get("vnp_ResponseCode"),
		TransactionNo: query.Get("vnp_TransactionNo"),
	}
	if !strings.EqualFold(c.sign(encode(params)), query.Get("vnp_SecureHash")) {
		res.Message = "Invalid Signature"
		return res
	}
	res.ValidSignature = true

	if res.ResponseCode != ResponseSuccess {
		res.Message = "Payment failed code: " + res.ResponseCode
		return res
	}
	id, ok := payment.ParseOrderID(res.TxnRef)
	if !ok {
		res.Message = "Invalid OrderId format"
		return res
	}
	res.Success = true
	res.PaymentHistoryID = id
	return res
}
