package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"milkrun/internal/logger"
)

type Config struct {
	Port    string
	GinMode string

	// Database
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSslMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	JWTSecret   string
	CORSOrigins []string

	// Redis backs locks and synced drafts. Empty address disables both.
	RedisAddress  string
	RedisPassword string
	DraftTTL      time.Duration

	// Google Cloud
	GCSBucket          string
	GCSFolder          string
	GCSCredentialsJSON string
	PubSubProjectID    string
	PubSubTopic        string

	PDFRendererURL   string
	BusinessTimezone string
	PhoneRegion      string

	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", "postgres"),
		DBName:             getEnv("DB_NAME", "postgres"),
		DBSslMode:          getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns:     intFromEnv("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:     intFromEnv("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime:  time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:8081,http://localhost:19006")),
		RedisAddress:       getEnv("REDIS_ADDRESS", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		DraftTTL:           time.Duration(intFromEnv("DRAFT_TTL_HOURS", 72)) * time.Hour,
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSFolder:          getEnv("GCS_FOLDER", "invoices"),
		GCSCredentialsJSON: getEnv("GCS_CREDENTIALS_JSON", ""),
		PubSubProjectID:    getEnv("PUBSUB_PROJECT_ID", getEnv("GOOGLE_CLOUD_PROJECT", "")),
		PubSubTopic:        getEnv("PUBSUB_TOPIC", ""),
		PDFRendererURL:     getEnv("PDF_RENDERER_URL", "http://localhost:3000"),
		BusinessTimezone:   getEnv("BUSINESS_TIMEZONE", "Asia/Kolkata"),
		PhoneRegion:        getEnv("PHONE_REGION", "IN"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		LogTimeFormat:      getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:          getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("BUSINESS_TIMEZONE %q is not a known timezone", c.BusinessTimezone)
	}
	if c.JWTSecret == "" && c.GinMode == "release" {
		return fmt.Errorf("JWT_SECRET is required in release mode")
	}
	return nil
}

// DSN builds the postgres connection string
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSslMode
}

// Location returns the business timezone; validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Secret returns the JWT signing secret with the development fallback
func (c *Config) Secret() []byte {
	if c.JWTSecret == "" {
		return []byte("default_super_secret_key")
	}
	return []byte(c.JWTSecret)
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
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
