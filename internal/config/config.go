package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.Bucket != ""
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	SuccessURL       string
	CancelURL        string
	PortalReturnURL  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	Database int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type EmailConfig struct {
	APIKey   string
	From     string
	FromName string
	AlertTo  []string
}

type GenerationConfig struct {
	URL       string
	APIKey    string
	Model     string
	StoryCost int64
	ImageCost int64
	Timeout   time.Duration
}

type LedgerConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type OutboxConfig struct {
	Interval             time.Duration
	BatchSize            int
	MaxRetryCount        int
	CompensationInterval time.Duration
}

type Config struct {
	Debug           bool
	Port            string
	AllowedOrigins  string
	JWTSecret       string
	AdminKeyHash    string
	PriceTablePath  string
	ProviderTimeout time.Duration

	Database   DatabaseConfig
	Stripe     StripeConfig
	R2         R2Config
	Redis      RedisConfig
	Kafka      KafkaConfig
	Email      EmailConfig
	Generation GenerationConfig
	Ledger     LedgerConfig
	Outbox     OutboxConfig
}

// LoadConfig reads the process environment (.env is loaded by the caller).
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Debug:           v.GetBool("DEBUG"),
		Port:            v.GetString("PORT"),
		AllowedOrigins:  v.GetString("ALLOWED_ORIGINS"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		AdminKeyHash:    v.GetString("ADMIN_KEY_HASH"),
		PriceTablePath:  v.GetString("PRICE_TABLE_PATH"),
		ProviderTimeout: v.GetDuration("PROVIDER_TIMEOUT"),
	}

	cfg.Database = DatabaseConfig{
		URL:             v.GetString("DATABASE_URL"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
	}

	cfg.Stripe = StripeConfig{
		SecretKey:        v.GetString("STRIPE_SECRET_KEY"),
		WebhookSecret:    v.GetString("STRIPE_WEBHOOK_SECRET"),
		WebhookTolerance: v.GetDuration("STRIPE_WEBHOOK_TOLERANCE"),
		SuccessURL:       v.GetString("STRIPE_SUCCESS_URL"),
		CancelURL:        v.GetString("STRIPE_CANCEL_URL"),
		PortalReturnURL:  v.GetString("STRIPE_PORTAL_RETURN_URL"),
	}

	// R2 config
	cfg.R2 = R2Config{
		AccountID:       v.GetString("R2_ACCOUNT_ID"),
		AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
		SecretAccessKey: v.GetString("R2_SECRET_ACCESS_KEY"),
		Bucket:          v.GetString("R2_BUCKET"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		Database: v.GetInt("REDIS_DB"),
	}

	cfg.Kafka = KafkaConfig{
		Brokers: splitList(v.GetString("KAFKA_BROKERS")),
		Topic:   v.GetString("KAFKA_TOPIC"),
	}

	cfg.Email = EmailConfig{
		APIKey:   v.GetString("RESEND_API_KEY"),
		From:     v.GetString("EMAIL_FROM_ADDRESS"),
		FromName: v.GetString("EMAIL_FROM_NAME"),
		AlertTo:  splitList(v.GetString("DEAD_LETTER_ALERT_TO")),
	}

	cfg.Generation = GenerationConfig{
		URL:       v.GetString("GENERATION_API_URL"),
		APIKey:    v.GetString("GENERATION_API_KEY"),
		Model:     v.GetString("GENERATION_MODEL"),
		StoryCost: v.GetInt64("STORY_CREDIT_COST"),
		ImageCost: v.GetInt64("IMAGE_CREDIT_COST"),
		Timeout:   v.GetDuration("GENERATION_TIMEOUT"),
	}

	cfg.Ledger = LedgerConfig{
		MaxAttempts: v.GetInt("LEDGER_MAX_ATTEMPTS"),
		BaseDelay:   v.GetDuration("LEDGER_BASE_DELAY"),
		MaxDelay:    v.GetDuration("LEDGER_MAX_DELAY"),
	}

	cfg.Outbox = OutboxConfig{
		Interval:             v.GetDuration("OUTBOX_INTERVAL"),
		BatchSize:            v.GetInt("OUTBOX_BATCH_SIZE"),
		MaxRetryCount:        v.GetInt("OUTBOX_MAX_RETRY_COUNT"),
		CompensationInterval: v.GetDuration("COMPENSATION_RETRY_INTERVAL"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("PRICE_TABLE_PATH", "config/prices.yml")
	v.SetDefault("PROVIDER_TIMEOUT", "10s")

	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("STRIPE_WEBHOOK_TOLERANCE", "5m")

	v.SetDefault("REDIS_PORT", 6379)

	v.SetDefault("KAFKA_TOPIC", "credit-ledger")

	v.SetDefault("EMAIL_FROM_NAME", "Storybook Credits")

	v.SetDefault("GENERATION_API_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("GENERATION_MODEL", "llama-3.1-8b-instant")
	v.SetDefault("STORY_CREDIT_COST", 1)
	v.SetDefault("IMAGE_CREDIT_COST", 1)
	v.SetDefault("GENERATION_TIMEOUT", "60s")

	v.SetDefault("LEDGER_MAX_ATTEMPTS", 4)
	v.SetDefault("LEDGER_BASE_DELAY", "50ms")
	v.SetDefault("LEDGER_MAX_DELAY", "1s")

	v.SetDefault("OUTBOX_INTERVAL", "500ms")
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("OUTBOX_MAX_RETRY_COUNT", 5)
	v.SetDefault("COMPENSATION_RETRY_INTERVAL", "5s")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
