package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "storefront-service/common/errors"
	"storefront-service/services"
)

// maxWebhookBodyBytes bounds what we read from the provider.
const maxWebhookBodyBytes = int64(65536)

// PaymentController drives checkout and receives provider webhooks.
type PaymentController struct {
	payments services.PaymentService
	cart     services.CartService
	logger   *zap.Logger
}

func NewPaymentController(payments services.PaymentService, cart services.CartService, logger *zap.Logger) *PaymentController {
	return &PaymentController{payments: payments, cart: cart, logger: logger}
}

// CheckoutSummary handles GET /checkout.
func (pc *PaymentController) CheckoutSummary(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := pc.cart.Cart(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cart":            view,
		"publishable_key": pc.payments.PublishableKey(),
		"demo_payments":   pc.payments.DemoEnabled(),
	})
}

// DemoCheckout handles POST /checkout when demo payments are enabled.
func (pc *PaymentController) DemoCheckout(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	order, err := pc.payments.DemoPay(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order paid", "order": order})
}

// CreateCheckoutSession handles POST /create-checkout-session.
func (pc *PaymentController) CreateCheckoutSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sess, err := pc.payments.CreateSession(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Success handles GET /success?session_id=.
func (pc *PaymentController) Success(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	status, err := pc.payments.SessionStatus(c.Request.Context(), userID, c.Query("session_id"))
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Cancel handles GET /cancel. The open order is left untouched.
func (pc *PaymentController) Cancel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Checkout cancelled, your cart is unchanged"})
}

// StripeWebhook handles POST /stripe/webhook. Rejected events get a 400;
// everything the service accepts, including ignored events, gets a 200.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		pc.logger.Warn("Failed to read webhook body", zap.Error(err))
		apperrors.Respond(c, apperrors.ErrMalformedPayload.Wrap(err))
		return
	}

	if err := pc.payments.Reconcile(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
