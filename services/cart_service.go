package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/repository"
)

// CartService manages the user's open order and its transition to paid.
// The open order is the cart; there is at most one per user.
type CartService interface {
	GetOrCreateOpenOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	Cart(ctx context.Context, userID uuid.UUID) (*models.CartView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	DecrementItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	ApplyVoucher(ctx context.Context, userID uuid.UUID, code string) (*models.CartView, error)
	RemoveVoucher(ctx context.Context, userID uuid.UUID) error

	TotalAmount(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
	Reorder(ctx context.Context, userID, orderID uuid.UUID) (*models.CartView, error)

	Orders(ctx context.Context, userID uuid.UUID, page, limit int) (*models.OrderPage, error)
	Order(ctx context.Context, userID, orderID uuid.UUID) (*models.CartView, error)
}

type cartServiceImpl struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	vouchers VoucherService
	cache    *CatalogCache
	logger   *zap.Logger
	now      func() time.Time
}

func NewCartService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	vouchers VoucherService,
	cache *CatalogCache,
	logger *zap.Logger,
) CartService {
	return &cartServiceImpl{
		orders:   orders,
		products: products,
		vouchers: vouchers,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *cartServiceImpl) GetOrCreateOpenOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetOrCreateOpen(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to resolve open order", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	return order, nil
}

func (s *cartServiceImpl) Cart(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	order, err := s.GetOrCreateOpenOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	if order.VoucherID != nil && order.Voucher == nil {
		if full, err := s.orders.FindByID(ctx, order.ID); err == nil {
			order = full
		}
	}
	items, err := s.orders.FindItems(ctx, order.ID)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	return BuildCartView(order, items), nil
}

// AddItem merges quantity units of an available product into the cart. The
// merged line may not exceed models.MaxLineQuantity.
func (s *cartServiceImpl) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return apperrors.ErrValidation.With("Quantity must be at least 1")
	}
	if quantity > models.MaxLineQuantity {
		return apperrors.ErrValidation.With(fmt.Sprintf("Quantity must be at most %d", models.MaxLineQuantity))
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return translate(err, apperrors.ErrNotFound.With("Product not found"))
	}
	if !product.Available {
		return apperrors.ErrNotFound.With("Product not found")
	}

	order, err := s.GetOrCreateOpenOrder(ctx, userID)
	if err != nil {
		return err
	}
	items, err := s.orders.FindItems(ctx, order.ID)
	if err != nil {
		return apperrors.ErrInternal.Wrap(err)
	}
	for _, it := range items {
		if it.ProductID == productID && it.Quantity+quantity > models.MaxLineQuantity {
			return apperrors.ErrValidation.With(fmt.Sprintf("Quantity must be at most %d", models.MaxLineQuantity))
		}
	}
	if err := s.orders.AddItem(ctx, order.ID, productID, quantity); err != nil {
		return translate(err, apperrors.ErrNotFound.With("Order not found"))
	}
	return nil
}

// DecrementItem lowers a line by one, removing it at zero.
func (s *cartServiceImpl) DecrementItem(ctx context.Context, userID, productID uuid.UUID) error {
	order, err := s.orders.FindOpen(ctx, userID)
	if err != nil {
		return translate(err, apperrors.ErrNotFound.With("Item not in cart"))
	}
	if err := s.orders.DecrementItem(ctx, order.ID, productID); err != nil {
		return translate(err, apperrors.ErrNotFound.With("Item not in cart"))
	}
	return nil
}

// RemoveItem deletes a line. Neither it nor DecrementItem opens a cart that
// does not exist yet.
func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	order, err := s.orders.FindOpen(ctx, userID)
	if err != nil {
		return translate(err, apperrors.ErrNotFound.With("Item not in cart"))
	}
	if err := s.orders.RemoveItem(ctx, order.ID, productID); err != nil {
		return translate(err, apperrors.ErrNotFound.With("Item not in cart"))
	}
	return nil
}

func (s *cartServiceImpl) ApplyVoucher(ctx context.Context, userID uuid.UUID, code string) (*models.CartView, error) {
	voucher, err := s.vouchers.FindValid(ctx, code, s.now())
	if err != nil {
		return nil, err
	}
	order, err := s.GetOrCreateOpenOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetVoucher(ctx, order.ID, &voucher.ID, voucher.Discount); err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Order not found"))
	}
	s.logger.Info("Voucher applied",
		zap.String("order_id", order.ID.String()),
		zap.String("code", voucher.Code),
		zap.Int("discount", voucher.Discount),
	)
	return s.Cart(ctx, userID)
}

func (s *cartServiceImpl) RemoveVoucher(ctx context.Context, userID uuid.UUID) error {
	order, err := s.GetOrCreateOpenOrder(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.orders.SetVoucher(ctx, order.ID, nil, 0); err != nil {
		return translate(err, apperrors.ErrNotFound.With("Order not found"))
	}
	return nil
}

// TotalAmount sums price x quantity over the order's lines at current
// prices. Nothing is cached; every call reads the products again.
func (s *cartServiceImpl) TotalAmount(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	items, err := s.orders.FindItems(ctx, orderID)
	if err != nil {
		return decimal.Zero, apperrors.ErrInternal.Wrap(err)
	}
	return sumItems(items), nil
}

// MarkPaid moves an open order to paid and takes its quantities out of
// stock. Calling it again is a no-op reporting false.
func (s *cartServiceImpl) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	transitioned, err := s.orders.MarkPaid(ctx, orderID, s.now().UTC())
	if err != nil {
		s.logger.Error("Failed to mark order paid", zap.Error(err), zap.String("order_id", orderID.String()))
		return false, apperrors.ErrInternal.Wrap(err)
	}
	if !transitioned {
		return false, nil
	}

	s.logger.Info("Order paid", zap.String("order_id", orderID.String()))
	if s.cache != nil {
		if items, err := s.orders.FindItems(ctx, orderID); err == nil {
			for _, item := range items {
				s.cache.InvalidateProduct(ctx, item.ProductID)
			}
		}
	}
	return true, nil
}

// Reorder merges a previous paid order's lines into the user's open order,
// accumulating with whatever is already in the cart. Products no longer on
// sale are skipped.
func (s *cartServiceImpl) Reorder(ctx context.Context, userID, orderID uuid.UUID) (*models.CartView, error) {
	previous, err := s.orders.FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Order not found"))
	}
	if !previous.IsPaid() {
		return nil, apperrors.ErrValidation.With("Only paid orders can be reordered")
	}

	lines := make([]models.LineQuantity, 0, len(previous.Items))
	for _, item := range previous.Items {
		if item.Product != nil && !item.Product.Available {
			s.logger.Info("Skipping unavailable product on reorder",
				zap.String("order_id", orderID.String()),
				zap.String("product_id", item.ProductID.String()),
			)
			continue
		}
		lines = append(lines, models.LineQuantity{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	open, err := s.GetOrCreateOpenOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		if err := s.orders.MergeItems(ctx, open.ID, lines); err != nil {
			return nil, translate(err, apperrors.ErrNotFound.With("Order not found"))
		}
	}
	return s.Cart(ctx, userID)
}

// Orders lists the user's paid orders, newest first.
func (s *cartServiceImpl) Orders(ctx context.Context, userID uuid.UUID, page, limit int) (*models.OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > MaxPerPage {
		limit = 10
	}
	orders, total, err := s.orders.FindByUserID(ctx, userID, models.OrderStatusPaid, page, limit)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}

	views := make([]models.CartView, 0, len(orders))
	for i := range orders {
		views = append(views, *BuildCartView(&orders[i], orders[i].Items))
	}
	return &models.OrderPage{Orders: views, Meta: models.NewPageMeta(page, limit, total)}, nil
}

func (s *cartServiceImpl) Order(ctx context.Context, userID, orderID uuid.UUID) (*models.CartView, error) {
	order, err := s.orders.FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Order not found"))
	}
	return BuildCartView(order, order.Items), nil
}

// BuildCartView prices an order's lines at current product prices and
// applies the order's discount.
func BuildCartView(order *models.Order, items []models.OrderItem) *models.CartView {
	view := &models.CartView{
		OrderID:   order.ID,
		Status:    order.Status,
		Lines:     make([]models.CartLine, 0, len(items)),
		Discount:  order.Discount,
		PaidAt:    order.PaidAt,
		CreatedAt: order.CreatedAt,
	}
	if order.Voucher != nil {
		view.VoucherCode = order.Voucher.Code
	}

	for i := range items {
		item := &items[i]
		line := models.CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal(),
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.UnitPrice = item.Product.Price
		}
		view.Lines = append(view.Lines, line)
		view.ItemCount += item.Quantity
	}

	view.Subtotal = sumItems(items)
	view.Total = ApplyDiscount(view.Subtotal, order.Discount)
	view.DiscountAmt = view.Subtotal.Sub(view.Total)
	return view
}

// ApplyDiscount takes percent off amount, rounded to cents.
func ApplyDiscount(amount decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return amount.Round(2)
	}
	if percent >= 100 {
		return decimal.Zero
	}
	factor := decimal.NewFromInt(int64(100 - percent)).Div(decimal.NewFromInt(100))
	return amount.Mul(factor).Round(2)
}

func sumItems(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Subtotal())
	}
	return total
}
