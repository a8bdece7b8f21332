package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	AppPort string
	AppEnv  string

	JWTSecret string

	GatewayKeyID     string
	GatewayKeySecret string
	WebhookSecret    string

	AMQPURL        string
	NotifyExchange string

	PendingOrderTTL   time.Duration
	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),

		AppPort: os.Getenv("APP_PORT"),
		AppEnv:  os.Getenv("APP_ENV"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GatewayKeyID:     os.Getenv("GATEWAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("GATEWAY_KEY_SECRET"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),

		AMQPURL:        os.Getenv("AMQP_URL"),
		NotifyExchange: os.Getenv("NOTIFY_EXCHANGE"),

		PendingOrderTTL:   durationEnv("PENDING_ORDER_TTL", 24*time.Hour),
		ReconcileInterval: durationEnv("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileGrace:    durationEnv("RECONCILE_GRACE", 10*time.Minute),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}
	if cfg.WebhookSecret == "" {
		log.Fatal("WEBHOOK_SECRET must be set")
	}
	if cfg.NotifyExchange == "" {
		cfg.NotifyExchange = "orders.events"
	}

	return cfg
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	// plain seconds also accepted
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
