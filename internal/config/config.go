package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"Xcellar"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	PaystackSecretKey     string `env:"PAYSTACK_SECRET_KEY"`
	PaystackWebhookSecret string `env:"PAYSTACK_WEBHOOK_SECRET"`
	PaystackBaseURL       string `env:"PAYSTACK_BASE_URL" envDefault:"https://api.paystack.co"`
	PaymentCallbackURL    string `env:"PAYMENT_CALLBACK_URL"`

	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	ShutdownPeriod  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	OTPCooldown     time.Duration `env:"OTP_COOLDOWN" envDefault:"60s"`
	LoginRatePerMin int           `env:"LOGIN_RATE_LIMIT_PER_MINUTE" envDefault:"5"`
}

// Load reads configuration from the environment (seeded from .env when
// present) and validates that production-critical values are set.
func Load() (Config, error) {
	_ = godotenv.Load() // best effort; real env always wins

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.Dev() {
		return cfg, nil
	}

	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"PAYSTACK_SECRET_KEY", cfg.PaystackSecretKey},
		{"PAYSTACK_WEBHOOK_SECRET", cfg.PaystackWebhookSecret},
		{"JWT_SECRET", cfg.JWTSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return Config{}, fmt.Errorf("%s must be set when APP_ENV=%s", r.name, cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Dev reports whether the application runs in a development-like environment,
// where in-memory backends and the simulated gateway are acceptable.
func (c Config) Dev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
