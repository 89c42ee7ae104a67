// Package momo talks to the MoMo wallet payment API (v2, payWithMethod).
package momo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/config"
	"busticket/internal/logger"
	"busticket/internal/payment"
	"busticket/internal/utils"
)

const requestType = "payWithMethod"

type CreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	PartnerName string `json:"partnerName"`
	StoreID     string `json:"storeId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	RequestType string `json:"requestType"`
	AutoCapture bool   `json:"autoCapture"`
	ExtraData   string `json:"extraData"`
	Signature   string `json:"signature"`
}

type CreateResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink,omitempty"`
	QRCodeURL    string `json:"qrCodeUrl,omitempty"`
}

// IPN is the instant payment notification MoMo posts after a payment.
type IPN struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

type Client struct {
	Config config.MoMoConfig
	HTTP   *http.Client
	Logger *logger.Logger
	now    func() time.Time
}

func NewClient(cfg config.MoMoConfig, log *logger.Logger) *Client {
	return &Client{Config: cfg, HTTP: &http.Client{Timeout: 15 * time.Second}, Logger: log, now: time.Now}
}

func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) createSignature(r *CreateRequest) string {
	raw := fmt.Sprintf("accessKey=%s&amount=%d&extraData=%s&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		c.Config.AccessKey, r.Amount, r.ExtraData, r.IPNURL, r.OrderID, r.OrderInfo, r.PartnerCode, r.RedirectURL, r.RequestID, r.RequestType)
	return payment.HMACSHA256(c.Config.SecretKey, raw)
}

// IPNSignature computes the signature MoMo puts on an IPN.
func (c *Client) IPNSignature(n IPN) string {
	raw := fmt.Sprintf("accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		c.Config.AccessKey, n.Amount, n.ExtraData, n.Message, n.OrderID, n.OrderInfo, n.OrderType, n.PartnerCode, n.PayType, n.RequestID, n.ResponseTime, n.ResultCode, n.TransID)
	return payment.HMACSHA256(c.Config.SecretKey, raw)
}

// VerifyIPN is always true in the sandbox environment.
func (c *Client) VerifyIPN(n IPN) bool {
	if c.Config.Sandbox {
		return true
	}
	return c.IPNSignature(n) == n.Signature
}

// IPNFromQuery reads the signed result fields MoMo appends to the redirect URL.
func IPNFromQuery(q url.Values) IPN {
	amount, _ := strconv.ParseInt(q.Get("amount"), 10, 64)
	transID, _ := strconv.ParseInt(q.Get("transId"), 10, 64)
	resultCode, _ := strconv.Atoi(q.Get("resultCode"))
	responseTime, _ := strconv.ParseInt(q.Get("responseTime"), 10, 64)
	return IPN{
		PartnerCode:  q.Get("partnerCode"),
		OrderID:      q.Get("orderId"),
		RequestID:    q.Get("requestId"),
		Amount:       amount,
		OrderInfo:    q.Get("orderInfo"),
		OrderType:    q.Get("orderType"),
		TransID:      transID,
		ResultCode:   resultCode,
		Message:      q.Get("message"),
		PayType:      q.Get("payType"),
		ResponseTime: responseTime,
		ExtraData:    q.Get("extraData"),
		Signature:    q.Get("signature"),
	}
}

// VerifyRedirect checks the signature of a browser redirect. Unlike the IPN
// it is enforced in the sandbox too, since anyone can open the URL.
func (c *Client) VerifyRedirect(n IPN) bool {
	if n.Signature == "" {
		return false
	}
	return hmac.Equal([]byte(c.IPNSignature(n)), []byte(n.Signature))
}

// CreatePayment asks MoMo for a payment page for a booking group.
func (c *Client) CreatePayment(ctx context.Context, paymentHistoryID int64, amount float64) (*CreateResponse, error) {
	now := c.now()
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	req := &CreateRequest{
		PartnerCode: c.Config.PartnerCode,
		PartnerName: "BusTicket",
		StoreID:     "BusTicketStore",
		RequestID:   c.Config.PartnerCode + ms,
		Amount:      int64(amount),
		OrderID:     utils.GenerateOrderID(paymentHistoryID, now),
		OrderInfo:   fmt.Sprintf("Thanh toán vé xe #%d - %s", paymentHistoryID, utils.FormatVND(amount)),
		RedirectURL: c.Config.RedirectURL,
		IPNURL:      c.Config.IPNURL,
		Lang:        "vi",
		RequestType: requestType,
		AutoCapture: true,
	}
	req.Signature = c.createSignature(req)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("momo request failed: %w", err)
	}
	defer resp.Body.Close()

	var out CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("momo response: %w", err)
	}
	c.Logger.LogPayment("MOMO", paymentHistoryID, fmt.Sprintf("create order %s resultCode=%d %s", req.OrderID, out.ResultCode, out.Message))
	return &out, nil
}

func (c *Client) Checkout(ctx context.Context, req payment.Request) (*payment.Checkout, error) {
	res, err := c.CreatePayment(ctx, req.PaymentHistoryID, req.Amount)
	if err != nil {
		return nil, err
	}
	if res.ResultCode != 0 || res.PayURL == "" {
		return nil, apperr.Invalidf("Không thể tạo thanh toán MoMo: %s", res.Message)
	}
	return &payment.Checkout{PayURL: res.PayURL}, nil
}
