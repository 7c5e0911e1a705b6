// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is loaded once at startup and passed into services as an
// immutable object; nothing reads the environment after Load returns.
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	AWS         AWSConfig
	Gateway     GatewayConfig
	Escrow      EscrowConfig
	Email       EmailConfig
	I18n        I18nConfig
	Frontend    FrontendConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
}

// GatewayConfig points at the external PIX/card payment provider.
type GatewayConfig struct {
	BaseURL      string
	APIKey       string
	WebhookToken string
	Timeout      time.Duration
}

// EscrowConfig carries the settlement engine's tunables. The window
// durations are global; they are not configurable per ticket.
type EscrowConfig struct {
	PlatformFeePercent  float64
	ReservationWindow   time.Duration // seller accept/reject window
	PaymentWindow       time.Duration // buyer payment window after confirm
	ReleaseDelay        time.Duration // no-dispute delay before payout
	ReconcileGrace      time.Duration // leave room for webhook delivery
	ReconcileLookback   time.Duration // ignore pending older than this
	MinimumWithdrawal   float64
	CronToken           string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

type I18nConfig struct {
	DefaultLocale string
	LocalesPath   string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "repasso"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "sa-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "repasso-dispute-evidence"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:      getEnv("GATEWAY_BASE_URL", "https://sandbox.asaas.com/api/v3"),
			APIKey:       getEnv("GATEWAY_API_KEY", ""),
			WebhookToken: getEnv("GATEWAY_WEBHOOK_TOKEN", ""),
			Timeout:      time.Duration(getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Escrow: EscrowConfig{
			PlatformFeePercent: getEnvAsFloat("PLATFORM_FEE_PERCENT", 10.0),
			ReservationWindow:  time.Duration(getEnvAsInt("RESERVATION_WINDOW_MINUTES", 15)) * time.Minute,
			PaymentWindow:      time.Duration(getEnvAsInt("PAYMENT_WINDOW_MINUTES", 5)) * time.Minute,
			ReleaseDelay:       time.Duration(getEnvAsInt("RELEASE_DELAY_HOURS", 24)) * time.Hour,
			ReconcileGrace:     time.Duration(getEnvAsInt("RECONCILE_GRACE_MINUTES", 2)) * time.Minute,
			ReconcileLookback:  time.Duration(getEnvAsInt("RECONCILE_LOOKBACK_HOURS", 48)) * time.Hour,
			MinimumWithdrawal:  getEnvAsFloat("MINIMUM_WITHDRAWAL", 20.0),
			CronToken:          getEnv("CRON_TOKEN", ""),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "nao-responda@repasso.com.br"),
			FromName:     getEnv("FROM_NAME", "Repasso"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "pt_BR"),
			LocalesPath:   getEnv("LOCALES_PATH", "./internal/i18n/locales"),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Gateway.APIKey == "" && c.Environment == "production" {
		return fmt.Errorf("payment gateway API key is required in production")
	}

	if c.Escrow.CronToken == "" && c.Environment == "production" {
		return fmt.Errorf("cron token is required in production")
	}

	if c.Escrow.PlatformFeePercent < 0 || c.Escrow.PlatformFeePercent >= 100 {
		return fmt.Errorf("platform fee percent must be in [0, 100)")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
