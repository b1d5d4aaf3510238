package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-service/common/auth"
	"storefront-service/common/logger"
	"storefront-service/config"
	"storefront-service/controllers"
	"storefront-service/database"
	"storefront-service/kafka"
	awspkg "storefront-service/pkg/aws"
	"storefront-service/repository"
	"storefront-service/routes"
	"storefront-service/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger is not configured yet
		logger.Initialize("development").Fatal("Failed to load configuration", zap.Error(err))
	}

	// --- 1. Logging and AWS ---
	var awsCfg *aws.Config
	if cfg.NeedsAWS() {
		c, err := awspkg.LoadAWSConfig(context.Background())
		if err != nil {
			logger.Initialize(cfg.Env).Fatal("Failed to load AWS config", zap.Error(err))
		}
		awsCfg = &c
	}

	log := logger.Initialize(cfg.Env)
	if cfg.CloudWatchEnabled && cfg.CloudWatchLogGroup != "" {
		cw, err := awspkg.NewCloudWatchLogsClient(context.Background(), *awsCfg, cfg.CloudWatchLogGroup, "storefront-service")
		if err != nil {
			log.Warn("CloudWatch Logs unavailable, logging to stdout only", zap.Error(err))
		} else {
			log = logger.InitializeWithWriter(cfg.Env, cw)
		}
	}
	defer func() { _ = log.Sync() }()

	for _, name := range cfg.InsecureDefaults() {
		log.Warn("Using insecure placeholder secret, set it before going live", zap.String("setting", name))
	}
	if cfg.DemoPayments {
		log.Warn("Demo payments enabled: POST /checkout marks orders paid without a provider")
	}

	var metrics *awspkg.MetricsClient
	if awsCfg != nil {
		metrics = awspkg.NewMetricsClient(*awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}

	// --- 2. Storage ---
	db, err := database.ConnectPostgres(cfg.PostgresDSN(), log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, catalog cache and webhook de-duplication disabled", zap.Error(err))
			redisClient = nil
		}
	}

	// --- 3. Dependency Injection ---
	products := repository.NewGormProductRepository(db)
	categories := repository.NewGormCategoryRepository(db)
	orders := repository.NewGormOrderRepository(db)
	vouchersRepo := repository.NewGormVoucherRepository(db)
	wishlists := repository.NewGormWishlistRepository(db)
	reviewsRepo := repository.NewGormReviewRepository(db)
	users := repository.NewGormUserRepository(db)

	cache := services.NewCatalogCache(redisClient, cfg.CatalogCacheTTL, log)
	var dedup services.EventDeduper
	if redisClient != nil {
		dedup = database.NewIdempotencyStore(redisClient, "stripe:event:")
	}
	var publisher awspkg.Publisher
	var producer *kafka.Producer
	if cfg.OrderEventTarget() != "" {
		switch cfg.OrderEventsSink {
		case config.SinkKafka:
			producer = kafka.NewProducer(cfg.KafkaBrokers, log)
			publisher = producer
		case config.SinkSQS:
			publisher = awspkg.NewSQSClient(*awsCfg)
		default:
			publisher = awspkg.NewSNSClient(*awsCfg)
		}
		log.Info("Publishing order events", zap.String("sink", cfg.OrderEventsSink), zap.String("target", cfg.OrderEventTarget()))
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	vouchers := services.NewVoucherService(vouchersRepo, log)
	catalog := services.NewCatalogService(products, categories, reviewsRepo, cache, metrics, log)
	cart := services.NewCartService(orders, products, vouchers, cache, log)
	reviews := services.NewReviewService(reviewsRepo, orders, products, log)
	wishlist := services.NewWishlistService(wishlists, products, cart, log)
	authSvc := services.NewAuthService(users, tokens, log)
	payments := services.NewPaymentService(
		cart,
		orders,
		services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		dedup,
		publisher,
		metrics,
		services.PaymentConfig{
			BaseURL:          cfg.BaseURL,
			Currency:         cfg.Currency,
			PublishableKey:   cfg.StripePublishableKey,
			DemoPayments:     cfg.DemoPayments,
			OrderEventTarget: cfg.OrderEventTarget(),
		},
		log,
	)

	handlers := routes.Handlers{
		Catalog:  controllers.NewCatalogController(catalog, reviews),
		Cart:     controllers.NewCartController(cart),
		Payment:  controllers.NewPaymentController(payments, cart, log),
		Wishlist: controllers.NewWishlistController(wishlist),
		Voucher:  controllers.NewVoucherController(vouchers),
		Auth:     controllers.NewAuthController(authSvc, int(cfg.TokenTTL/time.Second), cfg.IsProduction()),
	}

	// --- 4. HTTP Server ---
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := routes.SetupRouter(handlers, routes.Options{
		Tokens:          tokens,
		Metrics:         metrics,
		Logger:          log,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		RequestTimeout:  30 * time.Second,
		Ready:           readiness(db, redisClient),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Storefront service starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- 5. Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down storefront service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("Failed to close Kafka producer", zap.Error(err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Error("Failed to close PostgreSQL", zap.Error(err))
	}

	log.Info("Storefront service stopped gracefully")
}

// readiness pings Postgres and, when configured, Redis.
func readiness(db *gorm.DB, rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return errors.New("database unreachable")
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return errors.New("redis unreachable")
			}
		}
		return nil
	}
}
