package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	aws_pkg "storefront-service/pkg/aws"
)

// Placeholder Stripe credentials used when nothing is configured. They let a
// development instance boot but are refused in production.
const (
	defaultStripePublishableKey = "pk_test_insecure_placeholder"
	defaultStripeSecretKey      = "sk_test_insecure_placeholder"
	defaultStripeWebhookSecret  = "whsec_insecure_placeholder"
	defaultJWTSecret            = "insecure-development-jwt-secret"
)

// Order event sinks.
const (
	SinkSNS   = "sns"
	SinkSQS   = "sqs"
	SinkKafka = "kafka"
)

type Config struct {
	Env              string
	Port             string
	BaseURL          string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	RedisURL         string
	CatalogCacheTTL  time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	StripePublishableKey string
	StripeSecretKey      string
	StripeWebhookSecret  string
	Currency             string
	DemoPayments         bool

	OrderEventsSink     string
	OrderSNSTopicARN    string
	OrderSQSQueueURL    string
	KafkaBrokers        []string
	OrderKafkaTopic     string
	AWSUseSecrets       bool
	CloudWatchEnabled   bool
	CloudWatchLogGroup  string
	CloudWatchNamespace string

	AllowedOrigins  []string
	RateLimitPerMin int
}

// Load reads configuration from the environment (and a .env file if present),
// optionally overriding credentials from AWS Secrets Manager.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		BaseURL:          strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Europe/Dublin"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CatalogCacheTTL:  getDuration("CATALOG_CACHE_TTL", 10*time.Minute),

		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		TokenTTL:  getDuration("TOKEN_TTL", 24*time.Hour),

		StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", defaultStripePublishableKey),
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", defaultStripeSecretKey),
		StripeWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", defaultStripeWebhookSecret),
		Currency:             strings.ToLower(getEnv("CURRENCY", "eur")),
		DemoPayments:         getBool("DEMO_PAYMENTS", false),

		OrderEventsSink:     strings.ToLower(getEnv("ORDER_EVENTS_SINK", SinkSNS)),
		OrderSNSTopicARN:    os.Getenv("ORDER_SNS_TOPIC_ARN"),
		OrderSQSQueueURL:    os.Getenv("ORDER_SQS_QUEUE_URL"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		OrderKafkaTopic:     getEnv("ORDER_KAFKA_TOPIC", "orders.paid"),
		AWSUseSecrets:       getBool("AWS_USE_SECRETS", false),
		CloudWatchEnabled:   getBool("CLOUDWATCH_ENABLED", false),
		CloudWatchLogGroup:  os.Getenv("CLOUDWATCH_LOG_GROUP"),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Storefront"),

		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitPerMin: getInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	if cfg.AWSUseSecrets {
		if err := cfg.overrideFromSecrets(context.Background()); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overrideFromSecrets(ctx context.Context) error {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}
	sm := aws_pkg.NewSecretsClient(awsCfg)

	if m, err := sm.GetSecretMap(ctx, "storefront/DB_CREDENTIALS"); err == nil {
		override(&c.PostgresUser, m["POSTGRES_USER"])
		override(&c.PostgresPassword, m["POSTGRES_PASSWORD"])
		override(&c.PostgresDB, m["POSTGRES_DB"])
		override(&c.PostgresHost, m["POSTGRES_HOST"])
		override(&c.PostgresPort, m["POSTGRES_PORT"])
	}

	m, err := sm.GetSecretMap(ctx, "storefront/STRIPE")
	if err != nil {
		return fmt.Errorf("AWS_USE_SECRETS is set but stripe secret is unavailable: %w", err)
	}
	override(&c.StripePublishableKey, m["STRIPE_PUBLISHABLE_KEY"])
	override(&c.StripeSecretKey, m["STRIPE_SECRET_KEY"])
	override(&c.StripeWebhookSecret, m["STRIPE_WEBHOOK_SECRET"])
	override(&c.JWTSecret, m["JWT_SECRET"])
	return nil
}

// Validate checks required settings. Placeholder secrets are tolerated
// outside production only.
func (c *Config) Validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.Currency == "" {
		return fmt.Errorf("CURRENCY must not be empty")
	}
	switch c.OrderEventsSink {
	case SinkSNS, SinkSQS:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("ORDER_EVENTS_SINK=kafka requires KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown ORDER_EVENTS_SINK %q", c.OrderEventsSink)
	}
	if err := validateOrigins(c.AllowedOrigins); err != nil {
		return err
	}
	if c.IsProduction() {
		if insecure := c.InsecureDefaults(); len(insecure) > 0 {
			return fmt.Errorf("refusing to start in production with placeholder secrets: %s", strings.Join(insecure, ", "))
		}
		if c.DemoPayments {
			return fmt.Errorf("DEMO_PAYMENTS cannot be enabled in production")
		}
	}
	return nil
}

// InsecureDefaults lists the secrets still set to their placeholder value.
func (c *Config) InsecureDefaults() []string {
	var out []string
	if c.StripePublishableKey == defaultStripePublishableKey {
		out = append(out, "STRIPE_PUBLISHABLE_KEY")
	}
	if c.StripeSecretKey == defaultStripeSecretKey {
		out = append(out, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == defaultStripeWebhookSecret {
		out = append(out, "STRIPE_WEBHOOK_SECRET")
	}
	if c.JWTSecret == defaultJWTSecret {
		out = append(out, "JWT_SECRET")
	}
	return out
}

// OrderEventTarget is the destination order_paid events are published to on
// the configured sink. Empty disables publishing.
func (c *Config) OrderEventTarget() string {
	switch c.OrderEventsSink {
	case SinkSQS:
		return c.OrderSQSQueueURL
	case SinkKafka:
		return c.OrderKafkaTopic
	default:
		return c.OrderSNSTopicARN
	}
}

// NeedsAWS reports whether any AWS client has to be built.
func (c *Config) NeedsAWS() bool {
	if c.CloudWatchEnabled {
		return true
	}
	return c.OrderEventsSink != SinkKafka && c.OrderEventTarget() != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PostgresDSN builds the lib/pq style DSN understood by the pgx driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// validateOrigins accepts either a lone "*" or a list of http(s) origins.
func validateOrigins(origins []string) error {
	for _, o := range origins {
		if o == "*" {
			if len(origins) > 1 {
				return fmt.Errorf("ALLOWED_ORIGINS cannot mix \"*\" with explicit origins")
			}
			continue
		}
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("ALLOWED_ORIGINS entry %q must start with http:// or https://", o)
		}
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
