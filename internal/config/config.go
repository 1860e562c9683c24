// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
// When RawDSN is set it wins over the discrete fields.
type DatabaseConfig struct {
	Driver     string
	RawDSN     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	Debug      bool
}

// Mismatch policies for client-submitted totals.
const (
	MismatchReject = "reject"
	MismatchLog    = "log"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev                 bool
	Migrations          bool
	Seed                bool
	TotalMismatchPolicy string
	TotalTolerance      *float64 // nil means billing.DefaultTotalTolerance
}

// AuthConfig holds session cookie and bearer token settings.
type AuthConfig struct {
	SessionSecret string
	JWTSecret     string
	JWTIssuer     string
	TokenTTL      time.Duration
}

// RedisConfig is optional; an empty URL keeps token revocation in memory.
type RedisConfig struct {
	URL string
}

// KafkaConfig is optional; without brokers events are only logged.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// OutboxConfig tunes the event relay.
type OutboxConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DSN returns the PostgreSQL connection string in key=value format, or the
// normalized DATABASE_DSN when one was given.
func (d DatabaseConfig) DSN() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	if strings.HasPrefix(d.RawDSN, "postgres://") || strings.HasPrefix(d.RawDSN, "postgresql://") {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			RawDSN:     strings.Trim(strings.TrimSpace(os.Getenv("DATABASE_DSN")), "\"'"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "invoicehub"),
			Password:   getEnv("DB_PASSWORD", "invoicehub"),
			DBName:     getEnv("DB_NAME", "invoicehub"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "invoicehub.db"),
			Debug:      getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:                 getEnvBool("DEV", true),
			Migrations:          getEnvBool("MIGRATIONS", false),
			Seed:                getEnvBool("DB_SEED", false),
			TotalMismatchPolicy: mismatchPolicy(getEnv("TOTAL_MISMATCH_POLICY", MismatchReject)),
			TotalTolerance:      getEnvFloatPtr("TOTAL_TOLERANCE"),
		},
		Auth: AuthConfig{
			SessionSecret: getEnv("SESSION_SECRET", "devsessionsecret"),
			JWTSecret:     getEnv("JWT_SECRET", "devjwtsecret"),
			JWTIssuer:     getEnv("JWT_ISSUER", "invoicehub"),
			TokenTTL:      getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "invoicehub."),
		},
		Outbox: OutboxConfig{
			Interval:  getEnvDuration("OUTBOX_INTERVAL", 2*time.Second),
			BatchSize: getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
	}
}

func mismatchPolicy(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), MismatchLog) {
		return MismatchLog
	}
	return MismatchReject
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvFloatPtr returns nil when key is unset or not a non-negative number,
// so an explicit 0 survives.
func getEnvFloatPtr(key string) *float64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return nil
	}
	return &f
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if s, err := strconv.Atoi(value); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
