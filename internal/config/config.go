package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trogers1052/price-ingest/internal/apperror"
)

const defaultURLTemplate = "https://www.alphavantage.co/query?function=TIME_SERIES_DAILY&symbol={symbol}&apikey={apikey}"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Provider ProviderConfig
	Ingest   IngestConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host             string
	Port             string
	User             string
	Password         string
	DBName           string
	SSLMode          string
	StatementTimeout time.Duration
	MigrationsPath   string
}

// ProviderConfig holds the quote provider's credentials and endpoint
type ProviderConfig struct {
	APIKey      string
	URLTemplate string
	Timeout     time.Duration
}

// IngestConfig holds the default run parameters
type IngestConfig struct {
	Symbols          []string
	WindowDays       int
	Concurrency      int
	RateLimitRetries int
}

// KafkaConfig holds Kafka configuration. Empty Brokers disables both the
// event producer and the trigger consumer.
type KafkaConfig struct {
	Brokers       []string
	EventsTopic   string
	RequestsTopic string
	GroupID       string
}

// RedisConfig holds the provider cache configuration. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:             getEnv("DB_HOST", "localhost"),
			Port:             getEnv("DB_PORT", "5432"),
			User:             getEnv("DB_USER", "postgres"),
			Password:         getEnv("DB_PASSWORD", "postgres"),
			DBName:           getEnv("DB_NAME", "prices"),
			SSLMode:          getEnv("DB_SSLMODE", "disable"),
			StatementTimeout: getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
			MigrationsPath:   getEnv("DB_MIGRATIONS_PATH", "file://db/migrations"),
		},
		Provider: ProviderConfig{
			APIKey:      getEnv("ALPHAVANTAGE_API_KEY", ""),
			URLTemplate: getEnv("ALPHAVANTAGE_URL_TEMPLATE", defaultURLTemplate),
			Timeout:     getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			Symbols:          getEnvList("INGEST_SYMBOLS", []string{"AAPL", "TSLA"}),
			WindowDays:       getEnvInt("INGEST_WINDOW_DAYS", 90),
			Concurrency:      getEnvInt("INGEST_CONCURRENCY", 2),
			RateLimitRetries: getEnvInt("INGEST_RATE_LIMIT_RETRIES", 3),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", nil),
			EventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "price-ingestion-events"),
			RequestsTopic: getEnv("KAFKA_REQUESTS_TOPIC", "price-ingestion-requests"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "price-ingest"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", 10*time.Minute),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate returns a ConfigError naming the first missing required setting
func (c *Config) Validate() error {
	switch {
	case c.Provider.APIKey == "":
		return apperror.NewMissing("ALPHAVANTAGE_API_KEY")
	case c.Provider.URLTemplate == "":
		return apperror.NewMissing("ALPHAVANTAGE_URL_TEMPLATE")
	case c.Database.Host == "":
		return apperror.NewMissing("DB_HOST")
	case c.Database.DBName == "":
		return apperror.NewMissing("DB_NAME")
	case len(c.Ingest.Symbols) == 0:
		return apperror.NewMissing("INGEST_SYMBOLS")
	case c.Ingest.WindowDays <= 0:
		return apperror.NewMissing("INGEST_WINDOW_DAYS")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// Addr returns the HTTP listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
