package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	// Server configuration
	Port        string
	Environment string
	DataDir     string
	FrontendURL string

	// MongoDB configuration
	MongoURI            string
	MongoDatabase       string
	MongoConnectRetries int
	MongoRetryDelay     time.Duration
	MongoSelectTimeout  time.Duration

	// Stripe configuration
	StripeSecretKey        string
	StripeWebhookSecret    string
	StripeWebhookTolerance time.Duration
	PaymentCurrency        string
	PaymentMethodTypes     []string

	// SMTP configuration
	EmailUser         string
	EmailPass         string
	EmailFromName     string
	SMTPHost          string
	SMTPPort          int
	SMTPTLS           bool
	EmailMaxAttempts  int
	EmailRetryDelay   time.Duration
	EmailVerifyBefore bool

	// Ticket rendering
	TicketDomain string
	TicketsDir   string
	QRCodesDir   string
	AssetsDir    string
	EventName    string
	EventDate    string
	EventHours   string
	EventVenue   string

	// Caches
	IdempotencyCapacity  int
	IdempotencyTTL       time.Duration
	IdempotencySweep     time.Duration
	AvailabilityCacheTTL time.Duration

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Scanner
	ScannerKeyHash string

	// Rate limiting
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
}

// LoadConfig reads configuration from the environment, loading a .env file
// first when one is present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	return &Config{
		// Server
		Port:        getEnv("PORT", "5000"),
		Environment: getEnv("NODE_ENV", getEnv("ENVIRONMENT", "development")),
		DataDir:     getEnv("PB_DATA_DIR", "pb_data"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// MongoDB
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:       getEnv("MONGO_DB", "tropitech"),
		MongoConnectRetries: getEnvAsInt("MONGO_CONNECT_RETRIES", 5),
		MongoRetryDelay:     getEnvAsDuration("MONGO_RETRY_DELAY", "3s"),
		MongoSelectTimeout:  getEnvAsDuration("MONGO_SELECT_TIMEOUT", "10s"),

		// Stripe
		StripeSecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeWebhookTolerance: getEnvAsDuration("STRIPE_WEBHOOK_TOLERANCE", "5m"),
		PaymentCurrency:        strings.ToLower(getEnv("PAYMENT_CURRENCY", "chf")),
		PaymentMethodTypes:     getEnvAsList("PAYMENT_METHOD_TYPES", []string{"card", "twint"}),

		// SMTP
		EmailUser:         getEnv("EMAIL_USER", ""),
		EmailPass:         getEnv("EMAIL_PASS", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Tropitech Event"),
		SMTPHost:          getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:          getEnvAsInt("SMTP_PORT", 465),
		SMTPTLS:           getEnvAsBool("SMTP_TLS", true),
		EmailMaxAttempts:  getEnvAsInt("EMAIL_MAX_ATTEMPTS", 3),
		EmailRetryDelay:   getEnvAsDuration("EMAIL_RETRY_DELAY", "2s"),
		EmailVerifyBefore: getEnvAsBool("EMAIL_VERIFY", true),

		// Rendering
		TicketDomain: getEnv("TICKET_DOMAIN", "tropitech.ch"),
		TicketsDir:   getEnv("TICKETS_DIR", "tickets"),
		QRCodesDir:   getEnv("QRCODES_DIR", "qrcodes"),
		AssetsDir:    getEnv("ASSETS_DIR", "assets"),
		EventName:    getEnv("EVENT_NAME", "TROPITECH"),
		EventDate:    getEnv("EVENT_DATE", "19 Avril 2025"),
		EventHours:   getEnv("EVENT_HOURS", "20h00 - 04h00"),
		EventVenue:   getEnv("EVENT_VENUE", "Caves du Château, Rue du Greny, Coppet"),

		// Caches
		IdempotencyCapacity:  getEnvAsInt("IDEMPOTENCY_CAPACITY", 1000),
		IdempotencyTTL:       getEnvAsDuration("IDEMPOTENCY_TTL", "24h"),
		IdempotencySweep:     getEnvAsDuration("IDEMPOTENCY_SWEEP_INTERVAL", "24h"),
		AvailabilityCacheTTL: getEnvAsDuration("AVAILABILITY_CACHE_TTL", "60s"),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "ticketing-server"),

		ScannerKeyHash: getEnv("SCANNER_KEY_HASH", ""),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate reports missing required settings. Missing secrets are only fatal
// in production.
func (c *Config) Validate() error {
	var errs []error
	if c.SMTPPort <= 0 {
		errs = append(errs, fmt.Errorf("SMTP_PORT must be positive, got %d", c.SMTPPort))
	}
	if c.EmailMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("EMAIL_MAX_ATTEMPTS must be at least 1, got %d", c.EmailMaxAttempts))
	}
	if !c.IsProduction() {
		return errors.Join(errs...)
	}

	required := map[string]string{
		"MONGO_URI":             os.Getenv("MONGO_URI"),
		"STRIPE_SECRET_KEY":     c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": c.StripeWebhookSecret,
		"EMAIL_USER":            c.EmailUser,
		"EMAIL_PASS":            c.EmailPass,
	}
	for _, key := range []string{"MONGO_URI", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "EMAIL_USER", "EMAIL_PASS"} {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s is required in production", key))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
