package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order. The only transition is
// open -> paid.
type OrderStatus string

const (
	OrderStatusOpen OrderStatus = "open"
	OrderStatusPaid OrderStatus = "paid"
)

// Order doubles as the user's cart while open. The partial unique index keeps
// at most one open order per user.
type Order struct {
	ID               uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID           uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_orders_one_open_per_user,where:status = 'open'" json:"user_id"`
	Status           OrderStatus `gorm:"type:varchar(10);not null;default:'open';index" json:"status"`
	VoucherID        *uuid.UUID  `gorm:"type:uuid" json:"voucher_id,omitempty"`
	Voucher          *Voucher    `gorm:"constraint:OnDelete:SET NULL" json:"voucher,omitempty"`
	Discount         int         `gorm:"not null;default:0;check:discount BETWEEN 0 AND 100" json:"discount"`
	PaymentSessionID *string     `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	PaidAt           *time.Time  `json:"paid_at,omitempty"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Items            []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (o *Order) IsOpen() bool { return o.Status == OrderStatusOpen }
func (o *Order) IsPaid() bool { return o.Status == OrderStatusPaid }

// MaxLineQuantity caps the quantity of a single order line.
const MaxLineQuantity = 999

// OrderItem is one line of an order; (order, product) is unique so quantity
// changes update the row in place.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_items_order_product" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_items_order_product;index" json:"product_id"`
	Product   *Product  `gorm:"constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	Quantity  int       `gorm:"not null;check:quantity >= 1" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Subtotal uses the product's current price; it is never stored.
func (i *OrderItem) Subtotal() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineQuantity is a product/quantity pair merged into an order.
type LineQuantity struct {
	ProductID uuid.UUID
	Quantity  int
}

// CartLine is the priced view of an order item.
type CartLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartView is an order priced at current product prices.
type CartView struct {
	OrderID     uuid.UUID       `json:"order_id"`
	Status      OrderStatus     `json:"status"`
	Lines       []CartLine      `json:"lines"`
	ItemCount   int             `json:"item_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	VoucherCode string          `json:"voucher_code,omitempty"`
	Discount    int             `json:"discount"`
	DiscountAmt decimal.Decimal `json:"discount_amount"`
	Total       decimal.Decimal `json:"total"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type AddToCartRequest struct {
	Quantity *int `json:"quantity" form:"quantity"`
}

type OrderPage struct {
	Orders []CartView `json:"orders"`
	Meta   PageMeta   `json:"meta"`
}
