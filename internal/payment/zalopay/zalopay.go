// Package zalopay integrates the ZaloPay v2 order API.
package zalopay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/config"
	"busticket/internal/logger"
	"busticket/internal/payment"
	"busticket/internal/utils"
)

type OrderResult struct {
	ReturnCode       int    `json:"return_code"`
	ReturnMessage    string `json:"return_message"`
	SubReturnCode    int    `json:"sub_return_code"`
	SubReturnMessage string `json:"sub_return_message"`
	OrderURL         string `json:"order_url"`
	ZPTransToken     string `json:"zp_trans_token"`
	AppTransID       string `json:"-"`
}

// CallbackData is the JSON document inside a callback's data field.
type CallbackData struct {
	AppID      int64  `json:"app_id"`
	AppTransID string `json:"app_trans_id"`
	AppTime    int64  `json:"app_time"`
	AppUser    string `json:"app_user"`
	Amount     int64  `json:"amount"`
	ZPTransID  int64  `json:"zp_trans_id"`
	ServerTime int64  `json:"server_time"`
}

type CallbackReply struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

type Client struct {
	Config config.ZaloPayConfig
	HTTP   *http.Client
	Logger *logger.Logger
	now    func() time.Time
}

func NewClient(cfg config.ZaloPayConfig, log *logger.Logger) *Client {
	return &Client{Config: cfg, HTTP: &http.Client{Timeout: 15 * time.Second}, Logger: log, now: time.Now}
}

func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// OrderMAC signs app_id|app_trans_id|app_user|amount|app_time|embed_data|item with key1.
func (c *Client) OrderMAC(appTransID, appUser string, amount, appTime int64, embedData, item string) string {
	data := strings.Join([]string{
		c.Config.AppID, appTransID, appUser,
		strconv.FormatInt(amount, 10), strconv.FormatInt(appTime, 10),
		embedData, item,
	}, "|")
	return payment.HMACSHA256(c.Config.Key1, data)
}

// CreateOrder registers an order for a booking group.
func (c *Client) CreateOrder(ctx context.Context, paymentHistoryID int64, amount float64, userEmail string) (*OrderResult, error) {
	now := c.now()
	if userEmail == "" {
		userEmail = "demo_user"
	}
	embed, _ := json.Marshal(map[string]string{"redirecturl": c.Config.RedirectURL})
	item, _ := json.Marshal([]map[string]interface{}{{"bookingId": paymentHistoryID, "userEmail": userEmail}})
	appTransID := utils.GenerateAppTransID(now)
	appTime := now.UnixMilli()
	amt := int64(amount)

	form := url.Values{}
	form.Set("app_id", c.Config.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("app_user", userEmail)
	form.Set("app_time", strconv.FormatInt(appTime, 10))
	form.Set("item", string(item))
	form.Set("embed_data", string(embed))
	form.Set("amount", strconv.FormatInt(amt, 10))
	form.Set("description", fmt.Sprintf("Busticket - Payment for Ticket #%d", paymentHistoryID))
	form.Set("bank_code", "")
	form.Set("callback_url", c.Config.CallbackURL)
	form.Set("mac", c.OrderMAC(appTransID, userEmail, amt, appTime, string(embed), string(item)))

	var out OrderResult
	if err := c.postForm(ctx, "/create", form, &out); err != nil {
		return nil, err
	}
	out.AppTransID = appTransID
	c.Logger.LogPayment("ZALOPAY", paymentHistoryID, fmt.Sprintf("create order %s return_code=%d %s", appTransID, out.ReturnCode, out.ReturnMessage))
	return &out, nil
}

func (c *Client) Checkout(ctx context.Context, req payment.Request) (*payment.Checkout, error) {
	res, err := c.CreateOrder(ctx, req.PaymentHistoryID, req.Amount, req.UserEmail)
	if err != nil {
		return nil, err
	}
	if res.ReturnCode != 1 {
		msg := res.ReturnMessage
		if res.SubReturnMessage != "" {
			msg = res.SubReturnMessage
		}
		return nil, apperr.Invalidf("Không thể tạo đơn ZaloPay: %s", msg)
	}
	return &payment.Checkout{PayURL: res.OrderURL, TransactionID: res.AppTransID}, nil
}

// VerifyCallback checks mac = HMAC-SHA256(key2, data).
func (c *Client) VerifyCallback(data, mac string) bool {
	return payment.HMACSHA256(c.Config.Key2, data) == mac
}

func ParseCallbackData(data string) (*CallbackData, error) {
	var cb CallbackData
	if err := json.Unmarshal([]byte(data), &cb); err != nil {
		return nil, fmt.Errorf("invalid callback data: %w", err)
	}
	return &cb, nil
}

// QueryStatus asks ZaloPay for the state of an order.
func (c *Client) QueryStatus(ctx context.Context, appTransID string) (map[string]interface{}, error) {
	form := url.Values{}
	form.Set("app_id", c.Config.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("mac", payment.HMACSHA256(c.Config.Key1, c.Config.AppID+"|"+appTransID+"|"+c.Config.Key1))

	out := map[string]interface{}{}
	if err := c.postForm(ctx, "/query", form, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, dst interface{}) error {
	endpoint := strings.TrimRight(c.Config.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("zalopay %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("zalopay %s response: %w", path, err)
	}
	return nil
}
