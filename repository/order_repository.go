package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-service/models"
)

// ErrOrderNotOpen is returned when a cart mutation targets an order that has
// already been paid.
var ErrOrderNotOpen = errors.New("order is not open")

// OrderRepository defines data access for orders and their line items. Every
// method that changes line items runs in one transaction holding a row lock on
// the order, so it cannot interleave with the open -> paid transition.
type OrderRepository interface {
	GetOrCreateOpen(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	FindOpen(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, status models.OrderStatus, page, limit int) ([]models.Order, int64, error)
	FindByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)

	AddItem(ctx context.Context, orderID, productID uuid.UUID, quantity int) error
	DecrementItem(ctx context.Context, orderID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, orderID, productID uuid.UUID) error
	MergeItems(ctx context.Context, orderID uuid.UUID, lines []models.LineQuantity) error

	SetPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	SetVoucher(ctx context.Context, orderID uuid.UUID, voucherID *uuid.UUID, discount int) error
	MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) (bool, error)
	HasPaidItem(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// GetOrCreateOpen inserts an open order unless the partial unique index on
// (user_id) WHERE status = 'open' already holds one, then reads it back. The
// insert blocks on a concurrent uncommitted insert, so two racing requests
// end up with the same row.
func (r *GormOrderRepository) GetOrCreateOpen(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := models.Order{UserID: userID, Status: models.OrderStatusOpen}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND status = ?", userID, models.OrderStatusOpen).First(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOpen returns the user's open order without creating one.
func (r *GormOrderRepository) FindOpen(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.OrderStatusOpen).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Voucher").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDAndUserID retrieves a specific order for a user
func (r *GormOrderRepository) FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Voucher").
		Preload("Items.Product").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByUserID retrieves a user's orders in one status, newest first.
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND status = ?", userID, status)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Voucher").
		Preload("Items.Product").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) FindByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("payment_session_id = ?", sessionID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindItems returns an order's lines with their current product rows.
func (r *GormOrderRepository) FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddItem increments the (order, product) line by quantity, creating it if
// absent, in a single INSERT ... ON CONFLICT statement.
func (r *GormOrderRepository) AddItem(ctx context.Context, orderID, productID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenOrder(tx, orderID); err != nil {
			return err
		}
		return upsertLine(tx, orderID, productID, quantity)
	})
}

// DecrementItem lowers a line by one and deletes it instead of reaching zero.
func (r *GormOrderRepository) DecrementItem(ctx context.Context, orderID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenOrder(tx, orderID); err != nil {
			return err
		}

		var item models.OrderItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND product_id = ?", orderID, productID).
			First(&item).Error; err != nil {
			return err
		}

		if item.Quantity <= 1 {
			return tx.Delete(&models.OrderItem{}, "id = ?", item.ID).Error
		}
		return tx.Model(&models.OrderItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"quantity":   gorm.Expr("quantity - 1"),
				"updated_at": time.Now(),
			}).Error
	})
}

// RemoveItem deletes a line; gorm.ErrRecordNotFound when there was none.
func (r *GormOrderRepository) RemoveItem(ctx context.Context, orderID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenOrder(tx, orderID); err != nil {
			return err
		}

		res := tx.Where("order_id = ? AND product_id = ?", orderID, productID).Delete(&models.OrderItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// MergeItems adds every line to the order, accumulating quantities, all or
// nothing.
func (r *GormOrderRepository) MergeItems(ctx context.Context, orderID uuid.UUID, lines []models.LineQuantity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOpenOrder(tx, orderID); err != nil {
			return err
		}
		for _, l := range lines {
			if err := upsertLine(tx, orderID, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormOrderRepository) SetPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	return r.updateOpen(ctx, orderID, map[string]interface{}{
		"payment_session_id": sessionID,
	})
}

func (r *GormOrderRepository) SetVoucher(ctx context.Context, orderID uuid.UUID, voucherID *uuid.UUID, discount int) error {
	return r.updateOpen(ctx, orderID, map[string]interface{}{
		"voucher_id": voucherID,
		"discount":   discount,
	})
}

func (r *GormOrderRepository) updateOpen(ctx context.Context, orderID uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusOpen).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotOpen
	}
	return nil
}

// MarkPaid flips an open order to paid and decrements stock for each line,
// clamping at zero. It reports false, changing nothing, when the order was
// already paid; the conditional UPDATE is what makes replays harmless.
func (r *GormOrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) (bool, error) {
	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderStatusOpen).
			Updates(map[string]interface{}{
				"status":  models.OrderStatusPaid,
				"paid_at": paidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		transitioned = true

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				UpdateColumn("stock", gorm.Expr("GREATEST(stock - ?, 0)", item.Quantity)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return transitioned, nil
}

// HasPaidItem reports whether the user has bought the product at least once.
func (r *GormOrderRepository) HasPaidItem(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.product_id = ?", userID, models.OrderStatusPaid, productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// lockOpenOrder takes a row lock on the order and fails with ErrOrderNotOpen
// once it is paid.
func lockOpenOrder(tx *gorm.DB, orderID uuid.UUID) error {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "status").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return err
	}
	if !order.IsOpen() {
		return ErrOrderNotOpen
	}
	return nil
}

// upsertLine merges quantity into the (order, product) row, clamping the
// merged quantity at models.MaxLineQuantity.
func upsertLine(tx *gorm.DB, orderID, productID uuid.UUID, quantity int) error {
	item := models.OrderItem{OrderID: orderID, ProductID: productID, Quantity: quantity}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("LEAST(order_items.quantity + EXCLUDED.quantity, ?)", models.MaxLineQuantity),
			"updated_at": time.Now(),
		}),
	}).Create(&item).Error
}
