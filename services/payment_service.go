package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	awspkg "storefront-service/pkg/aws"
	"storefront-service/repository"
)

const webhookDedupTTL = 24 * time.Hour

// EventDeduper remembers processed webhook event ids.
type EventDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string, ttl time.Duration) error
}

// PaymentConfig configures the payment bridge. OrderEventTarget is the topic
// ARN, queue URL or Kafka topic that receives order_paid events.
type PaymentConfig struct {
	BaseURL          string
	Currency         string
	PublishableKey   string
	DemoPayments     bool
	OrderEventTarget string
}

// PaymentService bridges the open order to the hosted checkout and applies
// the provider's confirmations back onto orders.
type PaymentService interface {
	CreateSession(ctx context.Context, userID uuid.UUID) (*models.CheckoutSession, error)
	Reconcile(ctx context.Context, payload []byte, signature string) error
	SessionStatus(ctx context.Context, userID uuid.UUID, sessionID string) (*models.SessionStatus, error)
	DemoPay(ctx context.Context, userID uuid.UUID) (*models.CartView, error)
	PublishableKey() string
	DemoEnabled() bool
}

type paymentServiceImpl struct {
	cart     CartService
	orders   repository.OrderRepository
	provider CheckoutProvider
	dedup    EventDeduper
	events   awspkg.Publisher
	metrics  *awspkg.MetricsClient
	cfg      PaymentConfig
	logger   *zap.Logger
}

func NewPaymentService(
	cart CartService,
	orders repository.OrderRepository,
	provider CheckoutProvider,
	dedup EventDeduper,
	events awspkg.Publisher,
	metrics *awspkg.MetricsClient,
	cfg PaymentConfig,
	logger *zap.Logger,
) PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	return &paymentServiceImpl{
		cart:     cart,
		orders:   orders,
		provider: provider,
		dedup:    dedup,
		events:   events,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *paymentServiceImpl) PublishableKey() string { return s.cfg.PublishableKey }
func (s *paymentServiceImpl) DemoEnabled() bool      { return s.cfg.DemoPayments }

// CreateSession prices the open order at current product prices less its
// discount and opens a hosted checkout session for it.
func (s *paymentServiceImpl) CreateSession(ctx context.Context, userID uuid.UUID) (*models.CheckoutSession, error) {
	order, err := s.cart.GetOrCreateOpenOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.FindItems(ctx, order.ID)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	if len(items) == 0 {
		return nil, apperrors.ErrEmptyCart
	}

	lines, err := checkoutLines(items, order.Discount)
	if err != nil {
		return nil, err
	}

	req := &CheckoutRequest{
		OrderID:    order.ID.String(),
		Customer:   userID.String(),
		Currency:   s.cfg.Currency,
		Lines:      lines,
		SuccessURL: s.cfg.BaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.BaseURL + "/cancel",
	}
	sess, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Error("Checkout session creation failed", zap.Error(err), zap.String("order_id", order.ID.String()))
		return nil, apperrors.ErrPaymentFailed.Wrap(err)
	}

	if err := s.orders.SetPaymentSession(ctx, order.ID, sess.ID); err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Order not found"))
	}

	recordAsync(s.metrics, awspkg.MetricCheckoutSessions, map[string]string{"Service": "storefront"})
	s.logger.Info("Checkout session created",
		zap.String("order_id", order.ID.String()),
		zap.String("session_id", sess.ID),
		zap.Int("lines", len(lines)),
	)
	return &models.CheckoutSession{
		SessionID:      sess.ID,
		URL:            sess.URL,
		PublishableKey: s.cfg.PublishableKey,
	}, nil
}

// checkoutLines builds one line per item with the discounted unit price in
// minor units.
func checkoutLines(items []models.OrderItem, discount int) ([]CheckoutLine, error) {
	lines := make([]CheckoutLine, 0, len(items))
	var total int64
	for _, item := range items {
		if item.Product == nil {
			return nil, apperrors.ErrInternal.Wrap(fmt.Errorf("order item %s has no product", item.ID))
		}
		unit := ApplyDiscount(item.Product.Price, discount)
		amount := MinorUnits(unit)
		lines = append(lines, CheckoutLine{
			Name:       item.Product.Name,
			UnitAmount: amount,
			Quantity:   int64(item.Quantity),
		})
		total += amount * int64(item.Quantity)
	}
	if total <= 0 {
		return nil, apperrors.ErrValidation.With("Order total must be greater than zero")
	}
	return lines, nil
}

// MinorUnits converts a two-decimal amount to cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// Reconcile applies a signed provider notification. Signature failures and
// undecodable bodies are rejected so nothing is mutated; everything else is
// acknowledged, including events for unknown sessions, so the provider does
// not retry forever. The conditional open -> paid update makes replays
// harmless; the event id cache only saves work.
func (s *paymentServiceImpl) Reconcile(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		recordAsync(s.metrics, awspkg.MetricWebhookRejected, map[string]string{"Reason": string(apperrors.From(err).Kind)})
		s.logger.Warn("Webhook rejected", zap.Error(err))
		return err
	}

	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	if s.dedup != nil && event.ID != "" {
		seen, err := s.dedup.Seen(ctx, event.ID)
		if err != nil {
			log.Warn("Webhook dedup lookup failed", zap.Error(err))
		} else if seen {
			log.Info("Webhook event already processed")
			return nil
		}
	}

	if !event.Completed {
		log.Debug("Webhook event ignored")
		return nil
	}

	log = log.With(zap.String("session_id", event.SessionID))
	order, err := s.orders.FindByPaymentSessionID(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("Payment confirmed for unknown checkout session", zap.String("order_id", event.OrderID))
			recordAsync(s.metrics, awspkg.MetricWebhookOrphaned, nil)
			s.remember(ctx, event.ID)
			return nil
		}
		return apperrors.ErrInternal.Wrap(err)
	}

	if order.IsPaid() {
		log.Info("Payment confirmation replayed for paid order", zap.String("order_id", order.ID.String()))
		s.remember(ctx, event.ID)
		return nil
	}

	transitioned, err := s.cart.MarkPaid(ctx, order.ID)
	if err != nil {
		return err
	}
	if transitioned {
		s.onPaid(ctx, order, event.SessionID, "webhook")
	} else {
		log.Info("Order was paid concurrently", zap.String("order_id", order.ID.String()))
	}

	s.remember(ctx, event.ID)
	return nil
}

// SessionStatus reports the order behind a checkout session the user owns.
func (s *paymentServiceImpl) SessionStatus(ctx context.Context, userID uuid.UUID, sessionID string) (*models.SessionStatus, error) {
	if sessionID == "" {
		return nil, apperrors.ErrValidation.With("session_id is required")
	}
	order, err := s.orders.FindByPaymentSessionID(ctx, sessionID)
	if err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Checkout session not found"))
	}
	if order.UserID != userID {
		return nil, apperrors.ErrNotFound.With("Checkout session not found")
	}
	return &models.SessionStatus{OrderID: order.ID.String(), Status: order.Status}, nil
}

// DemoPay marks the open order paid without a provider round trip. It only
// exists when demo payments are enabled.
func (s *paymentServiceImpl) DemoPay(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	if !s.cfg.DemoPayments {
		return nil, apperrors.ErrNotFound
	}
	order, err := s.cart.GetOrCreateOpenOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.FindItems(ctx, order.ID)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	if len(items) == 0 {
		return nil, apperrors.ErrEmptyCart
	}

	transitioned, err := s.cart.MarkPaid(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if transitioned {
		s.onPaid(ctx, order, "", "demo")
	}
	return s.cart.Order(ctx, userID, order.ID)
}

// onPaid publishes the order_paid event and business metrics. Both are best
// effort; the order is already paid.
func (s *paymentServiceImpl) onPaid(ctx context.Context, order *models.Order, sessionID, source string) {
	recordAsync(s.metrics, awspkg.MetricPaymentSucceeded, map[string]string{"Source": source})
	recordAsync(s.metrics, awspkg.MetricOrdersCompleted, nil)

	if s.events == nil || s.cfg.OrderEventTarget == "" {
		return
	}

	amount, err := s.cart.TotalAmount(ctx, order.ID)
	if err != nil {
		s.logger.Warn("Failed to price paid order for event", zap.Error(err), zap.String("order_id", order.ID.String()))
	}
	event := models.OrderPaidEvent{
		Type:      "order_paid",
		OrderID:   order.ID.String(),
		UserID:    order.UserID.String(),
		SessionID: sessionID,
		Source:    source,
		Amount:    ApplyDiscount(amount, order.Discount),
		Currency:  s.cfg.Currency,
		Timestamp: time.Now().UTC(),
	}
	msg, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("Failed to marshal order_paid event", zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, s.cfg.OrderEventTarget, msg); err != nil {
		s.logger.Warn("Failed to publish order_paid event", zap.Error(err), zap.String("order_id", order.ID.String()))
	}
}

func (s *paymentServiceImpl) remember(ctx context.Context, eventID string) {
	if s.dedup == nil || eventID == "" {
		return
	}
	if err := s.dedup.Remember(ctx, eventID, webhookDedupTTL); err != nil {
		s.logger.Warn("Failed to remember webhook event", zap.Error(err), zap.String("event_id", eventID))
	}
}
