package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string `env:"APP_SERVICE" envDefault:"privatedrops"`
	AppVersion  string `env:"APP_VERSION" envDefault:"0.1.0"`
	AppURL      string `env:"APP_URL" envDefault:"https://privatedrops.me"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	NodeID      int64  `env:"SNOWFLAKE_NODE_ID" envDefault:"1"`

	// Comma separated list of proxy CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`

	DBType            string `env:"DATABASE_TYPE" envDefault:"postgres"`
	DBHost            string `env:"DATABASE_HOST" envDefault:"localhost"`
	DBPort            string `env:"DATABASE_PORT" envDefault:"5432"`
	DBName            string `env:"DATABASE_NAME" envDefault:"privatedrops"`
	DBUser            string `env:"DATABASE_USER" envDefault:"postgres"`
	DBPassword        string `env:"DATABASE_PASSWORD"`
	DBSSLMode         string `env:"DATABASE_SSLMODE" envDefault:"disable"`
	DBPath            string `env:"DATABASE_PATH" envDefault:"privatedrops.db"`
	DBMaxIdleConn     int    `env:"DATABASE_MAX_IDLE_CONN" envDefault:"5"`
	DBMaxOpenConn     int    `env:"DATABASE_MAX_OPEN_CONN" envDefault:"20"`
	DBConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"1800"`
	DBConnMaxIdleTime int    `env:"DATABASE_CONN_MAX_IDLE_TIME" envDefault:"300"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	Auth      AuthConfig
	Stripe    StripeConfig
	Storage   StorageConfig
	Email     EmailConfig
	Media     MediaConfig
	Exchange  ExchangeConfig
	Moderate  ModerationConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Cloud     CloudConfig
}

type AuthConfig struct {
	JWTSecret   string        `env:"AUTH_JWT_SECRET"`
	TokenTTL    time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"168h"`
	NonceTTL    time.Duration `env:"AUTH_NONCE_TTL" envDefault:"15m"`
	AdminEmails []string      `env:"AUTH_ADMIN_EMAILS" envSeparator:","`
}

type StripeConfig struct {
	SecretKey            string        `env:"STRIPE_SECRET_KEY"`
	WebhookSecret        string        `env:"STRIPE_WEBHOOK_SECRET"`
	ConnectWebhookSecret string        `env:"STRIPE_CONNECT_WEBHOOK_SECRET"`
	BaseURL              string        `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com"`
	Timeout              time.Duration `env:"STRIPE_TIMEOUT" envDefault:"12s"`
	SignatureTolerance   time.Duration `env:"STRIPE_SIGNATURE_TOLERANCE" envDefault:"5m"`
	DefaultCountry       string        `env:"STRIPE_DEFAULT_COUNTRY" envDefault:"IT"`
	OnboardingReturnURL  string        `env:"STRIPE_ONBOARDING_RETURN_URL"`
	OnboardingRefreshURL string        `env:"STRIPE_ONBOARDING_REFRESH_URL"`
}

type StorageConfig struct {
	Bucket       string `env:"S3_BUCKET"`
	Region       string `env:"S3_REGION" envDefault:"eu-central-1"`
	Endpoint     string `env:"S3_ENDPOINT"`
	PublicURL    string `env:"S3_PUBLIC_URL"`
	AccessKeyID  string `env:"S3_ACCESS_KEY_ID"`
	SecretKey    string `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
}

type EmailConfig struct {
	Provider      string `env:"EMAIL_PROVIDER" envDefault:"noop"`
	From          string `env:"EMAIL_FROM" envDefault:"PrivateDrops <mailgun@privatedrops.me>"`
	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername  string `env:"SMTP_USERNAME"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_API_KEY"`
	MailgunURL    string `env:"MAILGUN_BASE_URL" envDefault:"https://api.mailgun.net"`
	QueueKey      string `env:"MAIL_QUEUE_KEY" envDefault:"privatedrops:mail"`
}

type MediaConfig struct {
	VideoBlurredURL string  `env:"VIDEO_DEFAULT_BLURRED_URL"`
	BlurSigma       float64 `env:"MEDIA_BLUR_SIGMA" envDefault:"15"`
	// Owners reaching this many reports are banned; zero disables the ban.
	ReportBanThreshold int64 `env:"MEDIA_REPORT_BAN_THRESHOLD" envDefault:"10"`
}

type ExchangeConfig struct {
	BaseURL   string        `env:"EXCHANGE_RATE_BASE_URL" envDefault:"https://api.exchangeratesapi.io"`
	AccessKey string        `env:"EXCHANGE_RATE_API_KEY"`
	CacheTTL  time.Duration `env:"EXCHANGE_RATE_CACHE_TTL" envDefault:"10m"`
}

type ModerationConfig struct {
	BaseURL   string  `env:"SIGHTENGINE_BASE_URL" envDefault:"https://api.sightengine.com"`
	User      string  `env:"SIGHTENGINE_USER"`
	Secret    string  `env:"SIGHTENGINE_SECRET_KEY"`
	Threshold float64 `env:"SIGHTENGINE_MINOR_THRESHOLD" envDefault:"0.7"`
}

type RateLimitConfig struct {
	LoginPerMinute    int `env:"RATE_LIMIT_LOGIN_PER_MINUTE" envDefault:"5"`
	LoginBurst        int `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"3"`
	CheckoutPerMinute int `env:"RATE_LIMIT_CHECKOUT_PER_MINUTE" envDefault:"30"`
	CheckoutBurst     int `env:"RATE_LIMIT_CHECKOUT_BURST" envDefault:"10"`
	ReportPerMinute   int `env:"RATE_LIMIT_REPORT_PER_MINUTE" envDefault:"3"`
	ReportBurst       int `env:"RATE_LIMIT_REPORT_BURST" envDefault:"1"`
}

type SchedulerConfig struct {
	Enabled          bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	ModerateInterval time.Duration `env:"SCHEDULER_MODERATE_INTERVAL" envDefault:"1m"`
	ModerateBatch    int           `env:"SCHEDULER_MODERATE_BATCH" envDefault:"25"`
	NonceInterval    time.Duration `env:"SCHEDULER_NONCE_INTERVAL" envDefault:"10m"`
	MetricsInterval  time.Duration `env:"SCHEDULER_METRICS_INTERVAL" envDefault:"30s"`
	LockTTL          time.Duration `env:"SCHEDULER_LOCK_TTL" envDefault:"2m"`
}

type CloudConfig struct {
	Metrics CloudMetricsConfig
}

type CloudMetricsConfig struct {
	Enabled   bool   `env:"CLOUD_METRICS_ENABLED" envDefault:"false"`
	Exporter  string `env:"CLOUD_METRICS_EXPORTER"`
	Endpoint  string `env:"CLOUD_METRICS_ENDPOINT"`
	AuthToken string `env:"CLOUD_METRICS_AUTH_TOKEN"`
}

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.DBType = strings.ToLower(strings.TrimSpace(cfg.DBType))
	cfg.AppURL = strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/")
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)
	cfg.Stripe.SecretKey = strings.TrimSpace(cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = strings.TrimSpace(cfg.Stripe.WebhookSecret)
	cfg.Stripe.ConnectWebhookSecret = strings.TrimSpace(cfg.Stripe.ConnectWebhookSecret)
	cfg.Email.Provider = strings.ToLower(strings.TrimSpace(cfg.Email.Provider))
	cfg.Cloud.Metrics.Exporter = strings.ToLower(strings.TrimSpace(cfg.Cloud.Metrics.Exporter))
	for i, email := range cfg.Auth.AdminEmails {
		cfg.Auth.AdminEmails[i] = strings.ToLower(strings.TrimSpace(email))
	}

	if cfg.IsProduction() && cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("AUTH_JWT_SECRET is required in production")
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// RedisEnabled reports whether a Redis address was configured.
func (c Config) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.Auth.AdminEmails {
		if admin != "" && admin == email {
			return true
		}
	}
	return false
}
