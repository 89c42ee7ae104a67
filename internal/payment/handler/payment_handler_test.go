package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	bookingdb "busticket/internal/booking/db"
	"busticket/internal/config"
	"busticket/internal/database/dbtest"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/payment"
	"busticket/internal/payment/momo"
	"busticket/internal/payment/services"
	"busticket/internal/payment/storage"
	"busticket/internal/payment/vnpay"
	"busticket/internal/payment/zalopay"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/uptrace/bun"
)

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) PayTicket(ctx context.Context, id int64, method models.PaymentMethod, transID string) (*models.PayResult, error) {
	args := m.Called(ctx, id, method, transID)
	if r, ok := args.Get(0).(*models.PayResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	engine  *gin.Engine
	settler *MockSettler
	db      *bun.DB
	h       *PaymentHandler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewWithWriter(io.Discard)
	db := dbtest.New(t)

	settler := new(MockSettler)
	h := NewPaymentHandler(settler, storage.NewPostgreSQLStore(db, log), log)
	h.FrontendURL = "http://front.test"
	h.MoMo = momo.NewClient(config.MoMoConfig{AccessKey: "ak", SecretKey: "sk", PartnerCode: "MOMO"}, log)
	h.ZaloPay = zalopay.NewClient(config.ZaloPayConfig{AppID: "1", Key1: "k1", Key2: "k2"}, log)
	h.VNPay = vnpay.NewClient(config.VNPayConfig{TmnCode: "T", HashSecret: "S"}, time.UTC, log)
	stripeSvc, err := services.NewStripeService(config.StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec"}, nil, log)
	require.NoError(t, err)
	h.Stripe = stripeSvc

	return &fixture{engine: NewEngine(h, "/api/payments"), settler: settler, db: db, h: h}
}

func (f *fixture) payment(t *testing.T, status models.PaymentStatus, txn string) *models.PaymentHistory {
	t.Helper()
	ph := &models.PaymentHistory{Method: models.MethodMoMo, Amount: 300000, Status: status, TransactionID: txn}
	_, err := f.db.NewInsert().Model(ph).Exec(context.Background())
	require.NoError(t, err)
	return ph
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func postJSON(path string, v interface{}) *http.Request {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestMoMoIPN(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentPending, "")
	f.settler.On("PayTicket", mock.Anything, ph.ID, models.MethodMoMo, "555").Return(&models.PayResult{}, nil).Once()

	ipn := momo.IPN{OrderID: "TICKET_" + itoa(ph.ID) + "_1700000000000", TransID: 555, ResultCode: 0, Amount: 300000}
	ipn.Signature = f.h.MoMo.IPNSignature(ipn)
	rec := f.do(postJSON("/api/payments/momo/ipn", ipn))
	assert.Equal(t, true, decode(t, rec)["success"])

	bad := ipn
	bad.Signature = "forged"
	rec = f.do(postJSON("/api/payments/momo/ipn", bad))
	assert.Equal(t, false, decode(t, rec)["success"])

	failed := momo.IPN{OrderID: ipn.OrderID, ResultCode: 1006}
	failed.Signature = f.h.MoMo.IPNSignature(failed)
	rec = f.do(postJSON("/api/payments/momo/ipn", failed))
	assert.Equal(t, false, decode(t, rec)["success"])

	f.settler.AssertExpectations(t)
}

func TestMoMoIPNAlreadyPaidIsIdempotent(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentSuccess, "")

	ipn := momo.IPN{OrderID: "TICKET_" + itoa(ph.ID) + "_1", TransID: 1}
	ipn.Signature = f.h.MoMo.IPNSignature(ipn)
	rec := f.do(postJSON("/api/payments/momo/ipn", ipn))
	assert.Equal(t, true, decode(t, rec)["success"])
	f.settler.AssertNotCalled(t, "PayTicket", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func momoRedirectQuery(c *momo.Client, n momo.IPN, sign bool) string {
	if sign {
		n.Signature = c.IPNSignature(n)
	}
	q := url.Values{}
	q.Set("partnerCode", n.PartnerCode)
	q.Set("orderId", n.OrderID)
	q.Set("requestId", n.RequestID)
	q.Set("amount", strconv.FormatInt(n.Amount, 10))
	q.Set("orderInfo", n.OrderInfo)
	q.Set("orderType", n.OrderType)
	q.Set("transId", strconv.FormatInt(n.TransID, 10))
	q.Set("resultCode", strconv.Itoa(n.ResultCode))
	q.Set("message", n.Message)
	q.Set("payType", n.PayType)
	q.Set("responseTime", strconv.FormatInt(n.ResponseTime, 10))
	q.Set("extraData", n.ExtraData)
	q.Set("signature", n.Signature)
	return q.Encode()
}

func TestMoMoRedirect(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentPending, "")
	f.settler.On("PayTicket", mock.Anything, ph.ID, models.MethodMoMo, "99").Return(&models.PayResult{}, nil).Once()

	result := momo.IPN{
		PartnerCode:  "MOMO",
		OrderID:      "TICKET_" + itoa(ph.ID) + "_1",
		RequestID:    "TICKET_" + itoa(ph.ID) + "_1",
		Amount:       300000,
		OrderType:    "momo_wallet",
		TransID:      99,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1714550400000,
	}
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/payments/momo/redirect?"+momoRedirectQuery(f.h.MoMo, result, true), nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://front.test/payment-success?paymentHistoryId="+itoa(ph.ID), rec.Header().Get("Location"))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/payments/momo/redirect?resultCode=1006&orderId=TICKET_1_1", nil))
	assert.Equal(t, "http://front.test/payment-failed", rec.Header().Get("Location"))

	f.settler.AssertExpectations(t)
}

func TestMoMoRedirectRejectsUnsignedResult(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentPending, "")
	result := momo.IPN{OrderID: "TICKET_" + itoa(ph.ID) + "_1", TransID: 99}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/payments/momo/redirect?"+momoRedirectQuery(f.h.MoMo, result, false), nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://front.test/payment-failed", rec.Header().Get("Location"))

	// signed for a different transaction
	forged := result
	forged.Signature = f.h.MoMo.IPNSignature(momo.IPN{OrderID: result.OrderID, TransID: 1})
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/payments/momo/redirect?"+momoRedirectQuery(f.h.MoMo, forged, false), nil))
	assert.Equal(t, "http://front.test/payment-failed", rec.Header().Get("Location"))

	// the sandbox relaxes IPN checks but never the redirect
	f.h.MoMo.Config.Sandbox = true
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/payments/momo/redirect?"+momoRedirectQuery(f.h.MoMo, result, false), nil))
	assert.Equal(t, "http://front.test/payment-failed", rec.Header().Get("Location"))

	f.settler.AssertNotCalled(t, "PayTicket", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMoMoIPNConcurrentSettlementIsIdempotent(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentPending, "")
	// another callback settled the group between the status read and the update
	f.settler.On("PayTicket", mock.Anything, ph.ID, models.MethodMoMo, "777").
		Return(nil, fmt.Errorf("settle payment %d: %w", ph.ID, payment.ErrAlreadyPaid)).Once()

	ipn := momo.IPN{OrderID: "TICKET_" + itoa(ph.ID) + "_1", TransID: 777}
	ipn.Signature = f.h.MoMo.IPNSignature(ipn)
	rec := f.do(postJSON("/api/payments/momo/ipn", ipn))
	assert.Equal(t, true, decode(t, rec)["success"])
	f.settler.AssertExpectations(t)
}

func TestZaloPayCallback(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentPending, "300430_42")
	f.settler.On("PayTicket", mock.Anything, ph.ID, models.MethodZaloPay, "9001").Return(&models.PayResult{}, nil).Once()

	data := `{"app_id":1,"app_trans_id":"300430_42","amount":300000,"zp_trans_id":9001}`
	rec := f.do(postJSON("/api/payments/zalopay/callback", map[string]interface{}{"data": data, "mac": payment.HMACSHA256("k2", data)}))
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["return_code"])
	assert.Equal(t, "success", body["return_message"])

	rec = f.do(postJSON("/api/payments/zalopay/callback", map[string]interface{}{"data": data, "mac": "nope"}))
	body = decode(t, rec)
	assert.EqualValues(t, -1, body["return_code"])
	assert.Equal(t, "mac not equal", body["return_message"])

	f.settler.AssertExpectations(t)
}

// dbSettler settles through the booking store the way the booking service does.
type dbSettler struct {
	store  *bookingdb.DB
	ticket *models.Ticket
}

func (d *dbSettler) PayTicket(ctx context.Context, id int64, method models.PaymentMethod, transID string) (*models.PayResult, error) {
	err := d.store.Settle(ctx, bookingdb.Settlement{
		PaymentHistoryID: id,
		Method:           method,
		TransactionID:    transID,
		PaidAt:           time.Now().UTC(),
		TicketIDs:        []int64{d.ticket.ID},
		SeatIDs:          []int64{d.ticket.SeatID},
	})
	if err != nil {
		return nil, err
	}
	return &models.PayResult{}, nil
}

func TestZaloPayCallbackRetryAfterSettlement(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	trip := dbtest.SeedTrip(t, f.db, dbtest.TripOptions{})
	u := dbtest.SeedUser(t, f.db, "zalo@example.com")
	tk := dbtest.SeedTicket(t, f.db, u.ID, trip, 0, models.TicketBooked, models.PaymentPending)
	store := &bookingdb.DB{Bun: f.db}
	require.NoError(t, store.SetCheckout(ctx, *tk.PaymentHistoryID, "https://zalo.test/pay", "250101_123456"))
	f.h.Settler = &dbSettler{store: store, ticket: tk}

	data := `{"app_id":1,"app_trans_id":"250101_123456","amount":300000,"zp_trans_id":9001}`
	callback := map[string]interface{}{"data": data, "mac": payment.HMACSHA256("k2", data)}
	for i := 0; i < 2; i++ {
		body := decode(t, f.do(postJSON("/api/payments/zalopay/callback", callback)))
		assert.EqualValues(t, 1, body["return_code"], "attempt %d", i+1)
	}

	ph, err := f.h.Store.GetPaymentByTransactionID(ctx, "250101_123456")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, ph.Status)
}

func vnpayQuery(c *vnpay.Client, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("vnp_SecureHash", c.Sign(params))
	return q.Encode()
}

func TestVNPayIPN(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentPending, "")
	ref := "TICKET_" + itoa(ph.ID) + "_1700000000000"
	f.settler.On("PayTicket", mock.Anything, ph.ID, models.MethodVNPay, "14").Return(&models.PayResult{}, nil).Once()

	ok := vnpayQuery(f.h.VNPay, map[string]string{"vnp_TxnRef": ref, "vnp_ResponseCode": "00", "vnp_TransactionNo": "14"})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/ipn?"+ok, nil))
	assert.Equal(t, "Confirm Success", decode(t, rec)["Message"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/ipn?vnp_TxnRef="+ref+"&vnp_SecureHash=bad", nil))
	assert.Equal(t, "97", decode(t, rec)["RspCode"])

	_, err := f.db.NewUpdate().Model((*models.PaymentHistory)(nil)).Set("status = ?", models.PaymentSuccess).Where("id = ?", ph.ID).Exec(context.Background())
	require.NoError(t, err)
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/ipn?"+ok, nil))
	body := decode(t, rec)
	assert.Equal(t, "00", body["RspCode"])
	assert.Equal(t, "Order already confirmed", body["Message"])

	f.settler.AssertExpectations(t)
}

func TestVNPayIPNFailedCodeMarksPayment(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentPending, "")
	q := vnpayQuery(f.h.VNPay, map[string]string{"vnp_TxnRef": "TICKET_" + itoa(ph.ID) + "_1", "vnp_ResponseCode": "24"})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/ipn?"+q, nil))
	assert.Equal(t, "00", decode(t, rec)["RspCode"])

	var got models.PaymentHistory
	require.NoError(t, f.db.NewSelect().Model(&got).Where("id = ?", ph.ID).Scan(context.Background()))
	assert.Equal(t, models.PaymentFailed, got.Status)
}

func TestVNPayReturn(t *testing.T) {
	f := setup(t)
	ph := f.payment(t, models.PaymentPending, "")
	ref := "TICKET_" + itoa(ph.ID) + "_5"
	f.settler.On("PayTicket", mock.Anything, ph.ID, models.MethodVNPay, "").Return(&models.PayResult{}, nil).Once()

	q := vnpayQuery(f.h.VNPay, map[string]string{"vnp_TxnRef": ref, "vnp_ResponseCode": "00"})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/return?"+q, nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "busticket://payment-success?orderId="+ref, rec.Header().Get("Location"))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/payments/vnpay/return?vnp_TxnRef=x&vnp_SecureHash=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeWebhook(t *testing.T) {
	f := setup(t)
	paid := f.payment(t, models.PaymentPending, "pi_1")
	failed := f.payment(t, models.PaymentPending, "pi_2")
	f.settler.On("PayTicket", mock.Anything, paid.ID, models.MethodCreditCard, "pi_1").Return(&models.PayResult{}, nil).Once()

	send := func(payload string) *httptest.ResponseRecorder {
		sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: "whsec", Timestamp: time.Now()})
		req := httptest.NewRequest(http.MethodPost, "/api/payments/stripe/webhook", bytes.NewReader(sp.Payload))
		req.Header.Set("Stripe-Signature", sp.Header)
		return f.do(req)
	}

	rec := send(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","metadata":{"payment_history_id":"` + itoa(paid.ID) + `"}}}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = send(`{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","object":"payment_intent","metadata":{"payment_history_id":"` + itoa(failed.ID) + `"}}}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got models.PaymentHistory
	require.NoError(t, f.db.NewSelect().Model(&got).Where("id = ?", failed.ID).Scan(context.Background()))
	assert.Equal(t, models.PaymentFailed, got.Status)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/stripe/webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)

	f.settler.AssertExpectations(t)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
