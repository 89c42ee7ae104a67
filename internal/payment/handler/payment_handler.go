package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/payment"
	"busticket/internal/payment/momo"
	"busticket/internal/payment/services"
	"busticket/internal/payment/storage"
	"busticket/internal/payment/vnpay"
	"busticket/internal/payment/zalopay"
	"busticket/internal/utils"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 65536

// Settler marks a payment group paid; every gateway settles through it.
type Settler interface {
	PayTicket(ctx context.Context, paymentHistoryID int64, method models.PaymentMethod, transactionID string) (*models.PayResult, error)
}

type PaymentHandler struct {
	Settler     Settler
	Store       storage.Store
	MoMo        *momo.Client
	ZaloPay     *zalopay.Client
	VNPay       *vnpay.Client
	Stripe      *services.StripeService
	FrontendURL string
	AppScheme   string
	Logger      *logger.Logger
}

func NewPaymentHandler(settler Settler, store storage.Store, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{Settler: settler, Store: store, AppScheme: "busticket", Logger: log}
}

// Register mounts the gateway callbacks on g.
func (h *PaymentHandler) Register(g *gin.RouterGroup) {
	if h.MoMo != nil {
		g.GET("/momo/redirect", h.MoMoRedirect)
		g.POST("/momo/ipn", h.MoMoIPN)
	}
	if h.ZaloPay != nil {
		g.POST("/zalopay/callback", h.ZaloPayCallback)
		g.GET("/zalopay/status/:appTransId", h.ZaloPayStatus)
	}
	if h.VNPay != nil {
		g.GET("/vnpay/return", h.VNPayReturn)
		g.GET("/vnpay/ipn", h.VNPayIPN)
	}
	if h.Stripe != nil {
		g.POST("/stripe/webhook", h.StripeWebhook)
	}
}

// NewEngine builds the gin engine serving the callbacks under prefix.
func NewEngine(h *PaymentHandler, prefix string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.Logger.LogAPI(c.Request.Method, c.Request.URL.Path, strconv.Itoa(c.Writer.Status()), time.Since(start).String())
	})
	h.Register(engine.Group(prefix))
	return engine
}

// settle pays the group unless it already is; alreadyPaid reports the latter.
func (h *PaymentHandler) settle(ctx context.Context, id int64, method models.PaymentMethod, transID string) (alreadyPaid bool, err error) {
	ph, err := h.Store.GetPayment(ctx, id)
	if err != nil {
		return false, err
	}
	if ph.Status == models.PaymentSuccess {
		h.Logger.LogPayment(string(method), id, "already paid, skipping")
		return true, nil
	}
	if _, err := h.Settler.PayTicket(ctx, id, method, transID); err != nil {
		if errors.Is(err, payment.ErrAlreadyPaid) {
			h.Logger.LogPayment(string(method), id, "settled concurrently, skipping")
			return true, nil
		}
		h.Logger.LogPayment(string(method), id, fmt.Sprintf("settlement failed: %v", err))
		return false, err
	}
	return false, nil
}

// MoMoRedirect settles only when the redirect carries a valid MoMo signature.
func (h *PaymentHandler) MoMoRedirect(c *gin.Context) {
	failed := h.FrontendURL + "/payment-failed"
	if c.Query("resultCode") != "0" {
		c.Redirect(http.StatusFound, failed)
		return
	}
	result := momo.IPNFromQuery(c.Request.URL.Query())
	if !h.MoMo.VerifyRedirect(result) {
		h.Logger.LogSecurity("MOMO_REDIRECT", "invalid signature for order "+result.OrderID)
		c.Redirect(http.StatusFound, failed)
		return
	}
	id, ok := payment.ParseOrderID(result.OrderID)
	if !ok {
		c.Redirect(http.StatusFound, failed)
		return
	}
	if _, err := h.settle(c.Request.Context(), id, models.MethodMoMo, strconv.FormatInt(result.TransID, 10)); err != nil {
		c.Redirect(http.StatusFound, failed)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("%s/payment-success?paymentHistoryId=%d", h.FrontendURL, id))
}

func (h *PaymentHandler) MoMoIPN(c *gin.Context) {
	var ipn momo.IPN
	if err := c.ShouldBindJSON(&ipn); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	if !h.MoMo.VerifyIPN(ipn) {
		h.Logger.LogSecurity("MOMO_IPN", "invalid signature for order "+ipn.OrderID)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	if ipn.ResultCode != 0 {
		h.Logger.LogPayment("MOMO", 0, fmt.Sprintf("order %s failed with code %d: %s", ipn.OrderID, ipn.ResultCode, ipn.Message))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	id, ok := payment.ParseOrderID(ipn.OrderID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	if _, err := h.settle(c.Request.Context(), id, models.MethodMoMo, strconv.FormatInt(ipn.TransID, 10)); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type zaloPayCallback struct {
	Data string `json:"data"`
	Mac  string `json:"mac"`
	Type int    `json:"type"`
}

func (h *PaymentHandler) ZaloPayCallback(c *gin.Context) {
	var body zaloPayCallback
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusOK, zalopay.CallbackReply{ReturnCode: 0, ReturnMessage: err.Error()})
		return
	}
	if !h.ZaloPay.VerifyCallback(body.Data, body.Mac) {
		h.Logger.LogSecurity("ZALOPAY_CALLBACK", "mac not equal")
		c.JSON(http.StatusOK, zalopay.CallbackReply{ReturnCode: -1, ReturnMessage: "mac not equal"})
		return
	}
	data, err := zalopay.ParseCallbackData(body.Data)
	if err != nil {
		c.JSON(http.StatusOK, zalopay.CallbackReply{ReturnCode: 0, ReturnMessage: err.Error()})
		return
	}
	ph, err := h.Store.GetPaymentByTransactionID(c.Request.Context(), data.AppTransID)
	if err != nil {
		c.JSON(http.StatusOK, zalopay.CallbackReply{ReturnCode: 0, ReturnMessage: err.Error()})
		return
	}
	if _, err := h.settle(c.Request.Context(), ph.ID, models.MethodZaloPay, strconv.FormatInt(data.ZPTransID, 10)); err != nil {
		c.JSON(http.StatusOK, zalopay.CallbackReply{ReturnCode: 0, ReturnMessage: err.Error()})
		return
	}
	c.JSON(http.StatusOK, zalopay.CallbackReply{ReturnCode: 1, ReturnMessage: "success"})
}

func (h *PaymentHandler) ZaloPayStatus(c *gin.Context) {
	out, err := h.ZaloPay.QueryStatus(c.Request.Context(), c.Param("appTransId"))
	if err != nil {
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Không thể truy vấn ZaloPay", err.Error()))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) VNPayReturn(c *gin.Context) {
	res := h.VNPay.Verify(c.Request.URL.Query())
	if !res.Success {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Thanh toán VNPay không thành công", res.Message))
		return
	}
	if _, err := h.settle(c.Request.Context(), res.PaymentHistoryID, models.MethodVNPay, res.TransactionNo); err != nil {
		c.JSON(apperr.HTTPStatus(err), utils.ErrorResponse("Thanh toán VNPay không thành công", apperr.PublicMessage(err)))
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("%s://payment-success?orderId=%s", h.AppScheme, url.QueryEscape(res.TxnRef)))
}

func (h *PaymentHandler) VNPayIPN(c *gin.Context) {
	res := h.VNPay.Verify(c.Request.URL.Query())
	if !res.ValidSignature {
		c.JSON(http.StatusOK, gin.H{"RspCode": "97", "Message": "Invalid Checksum"})
		return
	}
	ctx := c.Request.Context()
	if !res.Success {
		if id, ok := payment.ParseOrderID(res.TxnRef); ok {
			if _, err := h.Store.MarkFailed(ctx, id, time.Now()); err != nil {
				c.JSON(http.StatusOK, gin.H{"RspCode": "99", "Message": "Unknown error"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"RspCode": "00", "Message": "Confirm Success"})
		return
	}
	alreadyPaid, err := h.settle(ctx, res.PaymentHistoryID, models.MethodVNPay, res.TransactionNo)
	switch {
	case err != nil:
		c.JSON(http.StatusOK, gin.H{"RspCode": "99", "Message": "Unknown error"})
	case alreadyPaid:
		c.JSON(http.StatusOK, gin.H{"RspCode": "00", "Message": "Order already confirmed"})
	default:
		c.JSON(http.StatusOK, gin.H{"RspCode": "00", "Message": "Confirm Success"})
	}
}

func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", err.Error()))
		return
	}
	ev, err := h.Stripe.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.Logger.LogSecurity("STRIPE_WEBHOOK", err.Error())
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook", err.Error()))
		return
	}

	ctx := c.Request.Context()
	switch ev.Type {
	case services.EventPaymentSucceeded:
		if _, err := h.settle(ctx, ev.PaymentHistoryID, models.MethodCreditCard, ev.PaymentIntentID); err != nil {
			c.JSON(apperr.HTTPStatus(err), utils.ErrorResponse("Failed to process payment", apperr.PublicMessage(err)))
			return
		}
	case services.EventPaymentFailed:
		if _, err := h.Store.MarkFailed(ctx, ev.PaymentHistoryID, time.Now()); err != nil {
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to process payment", err.Error()))
			return
		}
		h.Logger.LogPayment("STRIPE", ev.PaymentHistoryID, "payment failed: "+ev.FailureMessage)
	default:
		h.Logger.Debug("STRIPE", "ignoring webhook event "+ev.Type)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
