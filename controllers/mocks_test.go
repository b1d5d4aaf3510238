package controllers_test

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"storefront-service/middleware"
	"storefront-service/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser stands in for AuthMiddleware.
func asUser(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, userID)
		c.Set(middleware.RoleContextKey, role)
		c.Next()
	}
}

// --- Mock CartService ---

type MockCartService struct{ mock.Mock }

func (m *MockCartService) GetOrCreateOpenOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockCartService) Cart(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return m.Called(ctx, userID, productID, quantity).Error(0)
}

func (m *MockCartService) DecrementItem(ctx context.Context, userID, productID uuid.UUID) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return m.Called(ctx, userID, productID).Error(0)
}

func (m *MockCartService) ApplyVoucher(ctx context.Context, userID uuid.UUID, code string) (*models.CartView, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *MockCartService) RemoveVoucher(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockCartService) TotalAmount(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockCartService) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartService) Reorder(ctx context.Context, userID, orderID uuid.UUID) (*models.CartView, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *MockCartService) Orders(ctx context.Context, userID uuid.UUID, page, limit int) (*models.OrderPage, error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderPage), args.Error(1)
}

func (m *MockCartService) Order(ctx context.Context, userID, orderID uuid.UUID) (*models.CartView, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

// --- Mock PaymentService ---

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) CreateSession(ctx context.Context, userID uuid.UUID) (*models.CheckoutSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckoutSession), args.Error(1)
}

func (m *MockPaymentService) Reconcile(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func (m *MockPaymentService) SessionStatus(ctx context.Context, userID uuid.UUID, sessionID string) (*models.SessionStatus, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionStatus), args.Error(1)
}

func (m *MockPaymentService) DemoPay(ctx context.Context, userID uuid.UUID) (*models.CartView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *MockPaymentService) PublishableKey() string { return m.Called().String(0) }
func (m *MockPaymentService) DemoEnabled() bool      { return m.Called().Bool(0) }

// --- Mock AuthService ---

type MockAuthService struct{ mock.Mock }

func (m *MockAuthService) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, req *models.LoginRequest) (string, *models.User, error) {
	args := m.Called(ctx, req)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*models.User), args.Error(2)
}

func sampleCart(orderID uuid.UUID) *models.CartView {
	return &models.CartView{
		OrderID:   orderID,
		Status:    models.OrderStatusOpen,
		Lines:     []models.CartLine{},
		Subtotal:  decimal.Zero,
		Total:     decimal.Zero,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
