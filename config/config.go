package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/yeremiapane/food-checkout/services"
	"github.com/yeremiapane/food-checkout/utils"
)

type Config struct {
	Port              string
	GinMode           string
	LogLevel          string
	DBDriver          string
	DBDSN             string
	JWTSecret         string
	CORSOrigins       []string
	RabbitMQURL       string
	ReconcileInterval time.Duration
	Gateway           services.MidtransConfig
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from environment variables only.
func FromEnv() (*Config, error) {
	gatewayTimeout, err := durationEnv("GATEWAY_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	reconcile, err := durationEnv("RECONCILE_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBDSN:             os.Getenv("DB_DSN"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://127.0.0.1:5500")),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		ReconcileInterval: reconcile,
		Gateway: services.MidtransConfig{
			ServerKey:    os.Getenv("GATEWAY_SERVER_KEY"),
			ClientKey:    os.Getenv("GATEWAY_CLIENT_KEY"),
			MerchantID:   os.Getenv("GATEWAY_MERCHANT_ID"),
			IsProduction: os.Getenv("GATEWAY_ENV") == "production",
			BaseURL:      os.Getenv("GATEWAY_BASE_URL"),
			Timeout:      gatewayTimeout,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite":
	case "postgres":
		if _, err := pgx.ParseConfig(c.DBDSN); err != nil {
			return fmt.Errorf("invalid postgres DB_DSN: %w", err)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.Gateway.Timeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	if c.Gateway.ServerKey == "" {
		utils.InfoLogger.Warn("GATEWAY_SERVER_KEY is empty, card and paypal charges will be rejected by the gateway")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// durationEnv accepts Go durations ("30s") or plain seconds ("30").
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
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
