package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPaidEvent is published once an order transitions to paid.
type OrderPaidEvent struct {
	Type      string          `json:"type"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id,omitempty"`
	Source    string          `json:"source"` // "webhook" or "demo"
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}

// CheckoutSession is what the storefront hands the browser to redirect to.
type CheckoutSession struct {
	SessionID      string `json:"session_id"`
	URL            string `json:"url"`
	PublishableKey string `json:"publishable_key"`
}

// SessionStatus backs the post-payment success page.
type SessionStatus struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}
