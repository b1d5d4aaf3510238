package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-service/common/auth"
	"storefront-service/common/logger"
	httpmw "storefront-service/common/middleware"
	"storefront-service/controllers"
	"storefront-service/middleware"
	"storefront-service/models"
	awspkg "storefront-service/pkg/aws"
)

const serviceName = "storefront-service"

type Handlers struct {
	Catalog  *controllers.CatalogController
	Cart     *controllers.CartController
	Payment  *controllers.PaymentController
	Wishlist *controllers.WishlistController
	Voucher  *controllers.VoucherController
	Auth     *controllers.AuthController
}

type Options struct {
	Tokens          *auth.TokenManager
	Metrics         *awspkg.MetricsClient
	Logger          *zap.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	RequestTimeout  time.Duration
	// Ready reports whether the service's dependencies answer.
	Ready func(ctx context.Context) error
}

// SetupRouter builds the engine with the global middleware chain and every
// storefront route.
func SetupRouter(h Handlers, opts Options) *gin.Engine {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		logger.RequestID(),
		httpmw.RequestLogger(opts.Logger),
		httpmw.SecurityHeaders(),
		httpmw.CORSMiddleware(opts.AllowedOrigins),
		httpmw.MetricsMiddleware(opts.Metrics, serviceName),
		httpmw.Timeout(opts.RequestTimeout),
	)

	r.GET("/health", func(c *gin.Context) {
		if opts.Ready != nil {
			if err := opts.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	// Provider retries must never be throttled.
	r.POST("/stripe/webhook", h.Payment.StripeWebhook)

	limited := r.Group("/")
	limited.Use(httpmw.RateLimitMiddleware(opts.RateLimitPerMin, opts.RateLimitPerMin/4+1))
	registerPublicRoutes(limited, h)

	authed := limited.Group("/")
	authed.Use(middleware.AuthMiddleware(opts.Tokens))
	registerCustomerRoutes(authed, h)

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	registerAdminRoutes(admin, h)

	return r
}

func registerPublicRoutes(rg *gin.RouterGroup, h Handlers) {
	rg.GET("/", h.Catalog.ListProducts)
	rg.GET("/categories", h.Catalog.ListCategories)
	rg.GET("/product/:id", h.Catalog.GetProduct)
	rg.GET("/cancel", h.Payment.Cancel)

	rg.POST("/signup", h.Auth.Signup)
	rg.POST("/login", h.Auth.Login)
	rg.POST("/logout", h.Auth.Logout)
}

func registerCustomerRoutes(rg *gin.RouterGroup, h Handlers) {
	rg.POST("/product/:id", h.Catalog.SubmitReview)

	rg.GET("/cart", h.Cart.GetCart)
	rg.POST("/cart", h.Cart.ApplyVoucher)
	rg.DELETE("/cart/voucher", h.Cart.RemoveVoucher)
	rg.POST("/add-to-cart/:id", h.Cart.AddToCart)
	rg.POST("/decrement/:id", h.Cart.DecrementItem)
	rg.POST("/remove-from-cart/:id", h.Cart.RemoveItem)

	rg.GET("/checkout", h.Payment.CheckoutSummary)
	rg.POST("/checkout", h.Payment.DemoCheckout)
	rg.POST("/create-checkout-session", h.Payment.CreateCheckoutSession)
	rg.GET("/success", h.Payment.Success)

	wishlist := rg.Group("/wishlist")
	wishlist.GET("", h.Wishlist.GetWishlist)
	wishlist.POST("/move-to-cart", h.Wishlist.MoveToCart)
	wishlist.POST("/:id", h.Wishlist.Add)
	wishlist.DELETE("/:id", h.Wishlist.Remove)

	orders := rg.Group("/orders")
	orders.GET("", h.Cart.ListOrders)
	orders.GET("/:id", h.Cart.GetOrder)
	orders.POST("/:id/reorder", h.Cart.Reorder)
}

func registerAdminRoutes(rg *gin.RouterGroup, h Handlers) {
	rg.POST("/categories", h.Catalog.CreateCategory)
	rg.POST("/products", h.Catalog.CreateProduct)
	rg.PUT("/products/:id", h.Catalog.UpdateProduct)

	rg.GET("/vouchers", h.Voucher.ListVouchers)
	rg.POST("/vouchers", h.Voucher.CreateVoucher)
	rg.DELETE("/vouchers/:code", h.Voucher.DeactivateVoucher)
}
