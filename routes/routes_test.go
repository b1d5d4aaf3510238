package routes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"storefront-service/common/auth"
	"storefront-service/controllers"
	"storefront-service/routes"
	"storefront-service/services"
)

// Routing only; no handler behind an auth wall is reached in these tests.
func newRouter(ready func(context.Context) error, perMinute int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	var (
		cart     services.CartService
		payments = services.NewPaymentService(nil, nil, services.NewStripeService("sk_test", "whsec_routes"), nil, nil, nil, services.PaymentConfig{}, zap.NewNop())
	)
	h := routes.Handlers{
		Catalog:  controllers.NewCatalogController(nil, nil),
		Cart:     controllers.NewCartController(cart),
		Payment:  controllers.NewPaymentController(payments, cart, zap.NewNop()),
		Wishlist: controllers.NewWishlistController(nil),
		Voucher:  controllers.NewVoucherController(nil),
		Auth:     controllers.NewAuthController(nil, 60, false),
	}
	return routes.SetupRouter(h, routes.Options{
		Tokens:          auth.NewTokenManager("routes-secret", time.Hour),
		Logger:          zap.NewNop(),
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitPerMin: perMinute,
		Ready:           ready,
	})
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r := newRouter(nil, 1000)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/cart"},
		{http.MethodPost, "/add-to-cart/6f1c2a1e-8a43-4c55-9d59-1f0c8a8f4f00"},
		{http.MethodPost, "/create-checkout-session"},
		{http.MethodGet, "/wishlist"},
		{http.MethodPost, "/wishlist/move-to-cart"},
		{http.MethodGet, "/orders"},
		{http.MethodPost, "/admin/products"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestWebhookIsPublicAndNotRateLimited(t *testing.T) {
	r := newRouter(nil, 1)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(`{}`)))
		// unsigned, so rejected by verification rather than by auth or the limiter
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestRateLimitAppliesToPublicRoutes(t *testing.T) {
	r := newRouter(nil, 1)
	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cancel", nil))
		codes[w.Code]++
	}
	assert.Equal(t, 1, codes[http.StatusOK])
	assert.Equal(t, 4, codes[http.StatusTooManyRequests])
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(nil, 10).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	newRouter(func(context.Context) error { return errors.New("database unreachable") }, 10).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
