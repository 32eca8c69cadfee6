package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/Cheertaboi/customer-rebates/internal/models"
	"github.com/Cheertaboi/customer-rebates/internal/rebate"
	"github.com/Cheertaboi/customer-rebates/pkg/db"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	Port            string
	Postgres        db.PostgresConfig
	RedisURL        string
	LogFormat       string
	LogLevel        string
	MetricsNS       string
	Selection       rebate.Mode
	PriceType       models.PriceType
	DefaultLocale   string
	DefaultCurrency string
	RuleCacheTTL    time.Duration
	MigrateOnStart  bool
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return FromKoanf(k)
}

// FromKoanf builds a Config from already loaded keys.
func FromKoanf(k *koanf.Koanf) (*Config, error) {
	port, err := parseInt(k.String("DB_PORT"), 5432)
	if err != nil {
		return nil, fmt.Errorf("DB_PORT: %w", err)
	}

	maxOpen, err := parseInt(k.String("DB_MAX_OPEN_CONNS"), 0)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := parseInt(k.String("DB_MAX_IDLE_CONNS"), 0)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg := &Config{
		Port: valueOrDefault(k.String("PORT"), "8080"),
		Postgres: db.PostgresConfig{
			Host:     valueOrDefault(k.String("DB_HOST"), "localhost"),
			Port:     port,
			User:     k.String("DB_USER"),
			Password: k.String("DB_PASSWORD"),
			DBName:   k.String("DB_NAME"),
			SSLMode:  valueOrDefault(k.String("DB_SSLMODE"), "disable"),

			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: parseDuration(k.String("DB_CONN_MAX_LIFETIME"), "1h"),
		},
		RedisURL:        strings.TrimSpace(k.String("REDIS_URL")),
		LogFormat:       valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:        valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsNS:       valueOrDefault(k.String("METRICS_NAMESPACE"), "rebates"),
		Selection:       rebate.ParseMode(strings.ToLower(strings.TrimSpace(k.String("REBATE_SELECTION")))),
		DefaultLocale:   valueOrDefault(k.String("DEFAULT_LOCALE"), "en_US"),
		DefaultCurrency: strings.ToUpper(valueOrDefault(k.String("DEFAULT_CURRENCY"), "EUR")),
		RuleCacheTTL:    parseDuration(k.String("RULE_CACHE_TTL"), "5m"),
		MigrateOnStart:  parseBool(k.String("MIGRATE_ON_START")),
	}

	switch pt := models.PriceType(strings.ToLower(valueOrDefault(k.String("PRICE_TYPE"), "gross"))); pt {
	case models.PriceGross, models.PriceNet:
		cfg.PriceType = pt
	default:
		return nil, fmt.Errorf("PRICE_TYPE must be gross or net, got %q", pt)
	}

	if cfg.Postgres.DBName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseInt(value string, fallback int) (int, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return strconv.Atoi(strings.TrimSpace(value))
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
