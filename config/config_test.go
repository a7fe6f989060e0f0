package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")

	cfg := LoadConfig()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "chf", cfg.PaymentCurrency)
	assert.Equal(t, []string{"card", "twint"}, cfg.PaymentMethodTypes)
	assert.Equal(t, 465, cfg.SMTPPort)
	assert.Equal(t, 3, cfg.EmailMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.EmailRetryDelay)
	assert.Equal(t, 1000, cfg.IdempotencyCapacity)
	assert.Equal(t, time.Minute, cfg.AvailabilityCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencySweep)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Equal(t, 5, cfg.MongoConnectRetries)
	assert.Equal(t, 3*time.Second, cfg.MongoRetryDelay)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("PAYMENT_CURRENCY", "EUR")
	t.Setenv("PAYMENT_METHOD_TYPES", "card, ,sepa_debit")
	t.Setenv("EMAIL_RETRY_DELAY", "not-a-duration")
	t.Setenv("SMTP_PORT", "587")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "eur", cfg.PaymentCurrency)
	assert.Equal(t, []string{"card", "sepa_debit"}, cfg.PaymentMethodTypes)
	assert.Equal(t, 2*time.Second, cfg.EmailRetryDelay)
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestValidate(t *testing.T) {
	t.Run("development tolerates missing secrets", func(t *testing.T) {
		cfg := &Config{Environment: "development", SMTPPort: 465, EmailMaxAttempts: 3}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("production requires secrets", func(t *testing.T) {
		t.Setenv("MONGO_URI", "")
		cfg := &Config{Environment: EnvProduction, SMTPPort: 465, EmailMaxAttempts: 3}

		err := cfg.Validate()
		require.Error(t, err)
		for _, key := range []string{"MONGO_URI", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "EMAIL_USER", "EMAIL_PASS"} {
			assert.Contains(t, err.Error(), key)
		}
	})

	t.Run("production with secrets", func(t *testing.T) {
		t.Setenv("MONGO_URI", "mongodb://db:27017")
		cfg := &Config{
			Environment:         EnvProduction,
			SMTPPort:            465,
			EmailMaxAttempts:    3,
			StripeSecretKey:     "sk_test",
			StripeWebhookSecret: "whsec_test",
			EmailUser:           "events@example.com",
			EmailPass:           "secret",
		}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad attempts", func(t *testing.T) {
		cfg := &Config{Environment: "development", SMTPPort: 465}
		assert.ErrorContains(t, cfg.Validate(), "EMAIL_MAX_ATTEMPTS")
	})
}
