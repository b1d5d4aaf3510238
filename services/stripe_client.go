package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"

	apperrors "storefront-service/common/errors"
)

// CheckoutLine is one priced line of a hosted checkout session.
type CheckoutLine struct {
	Name       string
	UnitAmount int64 // minor units
	Quantity   int64
}

type CheckoutRequest struct {
	OrderID    string
	Customer   string
	Currency   string
	Lines      []CheckoutLine
	SuccessURL string
	CancelURL  string
}

type ProviderSession struct {
	ID  string
	URL string
}

// WebhookEvent is the verified part of a provider notification the
// storefront acts on. OrderID is the reference set when the session was
// created; it is only logged, orders are matched on SessionID.
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
	OrderID   string
	Completed bool
}

// CheckoutProvider is the hosted payment provider.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*ProviderSession, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

const (
	eventCheckoutCompleted     = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

type StripeService struct {
	SecretKey  string
	WebhookKey string
}

func NewStripeService(secretKey, webhookKey string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey}
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*ProviderSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("user_id", req.Customer)

	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
				UnitAmount: stripe.Int64(line.UnitAmount),
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &ProviderSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header against the endpoint
// secret and decodes the event. Signature problems are ErrInvalidSignature;
// a verified body that cannot be decoded is ErrMalformedPayload.
func (s *StripeService) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.WebhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, apperrors.ErrInvalidSignature.Wrap(err)
		}
		return nil, apperrors.ErrMalformedPayload.Wrap(err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case eventCheckoutCompleted, eventAsyncPaymentSucceeded:
		var cs stripe.CheckoutSession
		if event.Data == nil || json.Unmarshal(event.Data.Raw, &cs) != nil || cs.ID == "" {
			return nil, apperrors.ErrMalformedPayload.With("Malformed checkout session")
		}
		out.SessionID = cs.ID
		out.OrderID = cs.ClientReferenceID
		if out.OrderID == "" {
			out.OrderID = cs.Metadata["order_id"]
		}
		// delayed payment methods complete the session before the money arrives
		out.Completed = out.Type == eventAsyncPaymentSucceeded ||
			cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusUnpaid
	}
	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
