package services_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/services"
)

type cartFixture struct {
	db       *memDB
	orders   *fakeOrderRepo
	cart     services.CartService
	vouchers services.VoucherService
}

func newCartFixture() *cartFixture {
	db := newMemDB()
	logger := zap.NewNop()
	orders := &fakeOrderRepo{db: db}
	vouchers := services.NewVoucherService(&fakeVoucherRepo{db: db}, logger)
	cart := services.NewCartService(orders, &fakeProductRepo{db: db}, vouchers, nil, logger)
	return &cartFixture{db: db, orders: orders, cart: cart, vouchers: vouchers}
}

func TestGetOrCreateOpenOrder_SameOrderTwice(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()

	first, err := f.cart.GetOrCreateOpenOrder(ctx, user)
	require.NoError(t, err)
	second, err := f.cart.GetOrCreateOpenOrder(ctx, user)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.db.orderCount(user, models.OrderStatusOpen))
}

func TestAddItem_MergesIntoOneLine(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Oolong", "4.50", 10)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 1))
	}

	view, err := f.cart.Cart(ctx, user)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Quantity)
	assert.Equal(t, 5, view.ItemCount)
	// stock is only taken at payment
	assert.Equal(t, 10, f.db.product(p.ID).Stock)
}

func TestAddItem_Rejections(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Sencha", "3.00", 1)

	err := f.cart.AddItem(ctx, user, p.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = f.cart.AddItem(ctx, user, uuid.New(), 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.db.mu.Lock()
	f.db.products[p.ID].Available = false
	f.db.mu.Unlock()
	err = f.cart.AddItem(ctx, user, p.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddItem_QuantityIsCapped(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Sencha", "3.00", 10)

	err := f.cart.AddItem(ctx, user, p.ID, models.MaxLineQuantity+1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	err = f.cart.AddItem(ctx, user, p.ID, math.MaxInt32+1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, f.db.orderCount(user, models.OrderStatusOpen))

	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, models.MaxLineQuantity-1))
	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 1))

	err = f.cart.AddItem(ctx, user, p.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	view, err := f.cart.Cart(ctx, user)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, models.MaxLineQuantity, view.Lines[0].Quantity)
}

func TestTotalAmount_UsesCurrentPrices(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	a := f.db.addProduct("Matcha", "12.99", 5)
	b := f.db.addProduct("Kettle", "30.00", 5)

	require.NoError(t, f.cart.AddItem(ctx, user, a.ID, 2))
	require.NoError(t, f.cart.AddItem(ctx, user, b.ID, 1))
	order, err := f.cart.GetOrCreateOpenOrder(ctx, user)
	require.NoError(t, err)

	total, err := f.cart.TotalAmount(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("55.98").Equal(total), total.String())

	f.db.setPrice(a.ID, "10.00")
	total, err = f.cart.TotalAmount(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("50.00").Equal(total), total.String())
}

func TestDecrementItem(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	single := f.db.addProduct("Chai", "2.00", 5)
	multi := f.db.addProduct("Rooibos", "2.50", 5)

	require.NoError(t, f.cart.AddItem(ctx, user, single.ID, 1))
	require.NoError(t, f.cart.AddItem(ctx, user, multi.ID, 3))
	order, _ := f.cart.GetOrCreateOpenOrder(ctx, user)

	require.NoError(t, f.cart.DecrementItem(ctx, user, single.ID))
	require.NoError(t, f.cart.DecrementItem(ctx, user, multi.ID))

	lines := f.db.lines(order.ID)
	_, stillThere := lines[single.ID]
	assert.False(t, stillThere)
	assert.Equal(t, 2, lines[multi.ID])

	err := f.cart.DecrementItem(ctx, user, single.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveItem_AbsentIsNotFound(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Genmaicha", "3.20", 5)

	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 4))
	require.NoError(t, f.cart.RemoveItem(ctx, user, p.ID))

	err := f.cart.RemoveItem(ctx, user, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDecrementAndRemove_WithoutCartCreateNothing(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Hojicha", "4.10", 5)

	err := f.cart.DecrementItem(ctx, user, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	err = f.cart.RemoveItem(ctx, user, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Equal(t, 0, f.db.orderCount(user, models.OrderStatusOpen))
}

func TestMarkPaid_Idempotent(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Darjeeling", "6.00", 10)

	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 3))
	order, _ := f.cart.GetOrCreateOpenOrder(ctx, user)

	first, err := f.cart.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, 7, f.db.product(p.ID).Stock)

	second, err := f.cart.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, second)
	assert.Equal(t, 7, f.db.product(p.ID).Stock)

	paid, err := f.cart.Order(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
}

func TestMarkPaid_ClampsStockAtZero(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Pu-erh", "15.00", 2)

	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 5))
	order, _ := f.cart.GetOrCreateOpenOrder(ctx, user)

	_, err := f.cart.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.db.product(p.ID).Stock)
}

func TestMarkPaid_NextCartIsNewOrder(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Assam", "5.00", 5)

	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 1))
	paidOrder, _ := f.cart.GetOrCreateOpenOrder(ctx, user)
	_, err := f.cart.MarkPaid(ctx, paidOrder.ID)
	require.NoError(t, err)

	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 1))
	open, _ := f.cart.GetOrCreateOpenOrder(ctx, user)

	assert.NotEqual(t, paidOrder.ID, open.ID)
	assert.Equal(t, map[uuid.UUID]int{p.ID: 1}, f.db.lines(paidOrder.ID))
}

func TestReorder_MergesIntoOpenCart(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	a := f.db.addProduct("Earl Grey", "4.00", 50)
	b := f.db.addProduct("Lapsang", "5.00", 50)

	require.NoError(t, f.cart.AddItem(ctx, user, a.ID, 2))
	require.NoError(t, f.cart.AddItem(ctx, user, b.ID, 1))
	previous, _ := f.cart.GetOrCreateOpenOrder(ctx, user)
	_, err := f.cart.MarkPaid(ctx, previous.ID)
	require.NoError(t, err)

	require.NoError(t, f.cart.AddItem(ctx, user, a.ID, 1))

	view, err := f.cart.Reorder(ctx, user, previous.ID)
	require.NoError(t, err)

	assert.Equal(t, map[uuid.UUID]int{a.ID: 3, b.ID: 1}, f.db.lines(view.OrderID))
	assert.Equal(t, 1, f.db.orderCount(user, models.OrderStatusOpen))
}

func TestReorder_Rejections(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Jasmine", "3.00", 5)

	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 1))
	open, _ := f.cart.GetOrCreateOpenOrder(ctx, user)

	_, err := f.cart.Reorder(ctx, user, open.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.cart.Reorder(ctx, uuid.New(), open.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApplyVoucher_DiscountsTotal(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Hojicha", "20.00", 5)
	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 1))

	_, err := f.vouchers.Create(ctx, &models.CreateVoucherRequest{
		Code:      "spring10",
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   time.Now().Add(time.Hour),
		Discount:  10,
	})
	require.NoError(t, err)

	view, err := f.cart.ApplyVoucher(ctx, user, "Spring10")
	require.NoError(t, err)
	assert.Equal(t, "SPRING10", view.VoucherCode)
	assert.Equal(t, 10, view.Discount)
	assert.True(t, decimal.RequireFromString("18.00").Equal(view.Total), view.Total.String())
	assert.True(t, decimal.RequireFromString("2.00").Equal(view.DiscountAmt), view.DiscountAmt.String())

	require.NoError(t, f.cart.RemoveVoucher(ctx, user))
	view, err = f.cart.Cart(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Discount)
	assert.True(t, decimal.RequireFromString("20.00").Equal(view.Total))
}

func TestApplyVoucher_Expired(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()

	_, err := f.vouchers.Create(ctx, &models.CreateVoucherRequest{
		Code:      "OLD",
		ValidFrom: time.Now().Add(-48 * time.Hour),
		ValidTo:   time.Now().Add(-24 * time.Hour),
		Discount:  50,
	})
	require.NoError(t, err)

	_, err = f.cart.ApplyVoucher(ctx, uuid.New(), "OLD")
	assert.ErrorIs(t, err, apperrors.ErrInvalidVoucher)

	_, err = f.cart.ApplyVoucher(ctx, uuid.New(), "MISSING")
	assert.ErrorIs(t, err, apperrors.ErrInvalidVoucher)
}

func TestOrders_ListsPaidOnly(t *testing.T) {
	f := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	p := f.db.addProduct("Bancha", "2.00", 50)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 1))
		o, _ := f.cart.GetOrCreateOpenOrder(ctx, user)
		_, err := f.cart.MarkPaid(ctx, o.ID)
		require.NoError(t, err)
	}
	require.NoError(t, f.cart.AddItem(ctx, user, p.ID, 1))

	page, err := f.cart.Orders(ctx, user, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, int64(2), page.Meta.Total)
	for _, o := range page.Orders {
		assert.Equal(t, models.OrderStatusPaid, o.Status)
	}
}

func TestApplyDiscount(t *testing.T) {
	cases := []struct {
		amount  string
		percent int
		want    string
	}{
		{"10.00", 0, "10.00"},
		{"10.00", 15, "8.50"},
		{"9.99", 33, "6.69"},
		{"10.00", 100, "0"},
	}
	for _, tc := range cases {
		got := services.ApplyDiscount(decimal.RequireFromString(tc.amount), tc.percent)
		assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "%s at %d%% = %s", tc.amount, tc.percent, got)
	}
}
