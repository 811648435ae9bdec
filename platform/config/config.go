// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// StoreConfig selects the key-value persistence backend for the sequence core.
type StoreConfig interface {
	DatabaseConfig
	GetStoreBackend() string
	GetRedisURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq background scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// AutomationConfig provides settings for the sequence automation sweep.
type AutomationConfig interface {
	GetSweepInterval() time.Duration
	GetSweepParallelism() int
	GetSweepRatePerSecond() float64
}

// EmailConfig provides settings for the overdue-digest email sender.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetOperatorEmail() string
}

// CalendarConfig locates an optional touch-plan override file.
type CalendarConfig interface {
	GetCalendarFile() string
}

// =============================================================================
// Concrete Config
// =============================================================================

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL  string
	StoreBackend string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	SweepInterval      time.Duration
	SweepParallelism   int
	SweepRatePerSecond float64

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	OperatorEmail    string

	CalendarFile string
}

// Load reads configuration from the environment, with .env support for
// local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true")

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "postgres")),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "sequence"),
		AsynqConcurrency: getPositiveInt("ASYNQ_CONCURRENCY", 10),

		SweepInterval:      getDuration("SWEEP_INTERVAL", 15*time.Minute),
		SweepParallelism:   getPositiveInt("SWEEP_PARALLELISM", 8),
		SweepRatePerSecond: getFloat("SWEEP_RATE_PER_SECOND", 50),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		EmailEnabled:     emailEnabled,
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getPositiveInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Dialer"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		OperatorEmail:    getEnv("OPERATOR_EMAIL", ""),

		CalendarFile: getEnv("CALENDAR_FILE", ""),
	}

	switch cfg.StoreBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is postgres")
		}
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when STORE_BACKEND is redis")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.EmailEnabled {
		if cfg.SMTPHost == "" || cfg.EmailFromAddress == "" || cfg.OperatorEmail == "" {
			return nil, fmt.Errorf("SMTP_HOST, EMAIL_FROM_ADDRESS and OPERATOR_EMAIL are required when EMAIL_ENABLED is true")
		}
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string          { return c.DatabaseURL }
func (c *Config) GetStoreBackend() string         { return c.StoreBackend }
func (c *Config) GetHTTPAddr() string             { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool           { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string        { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool         { return c.CORSAllowCreds }
func (c *Config) GetRedisURL() string             { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool       { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string       { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int        { return c.AsynqConcurrency }
func (c *Config) GetSweepInterval() time.Duration { return c.SweepInterval }
func (c *Config) GetSweepParallelism() int        { return c.SweepParallelism }
func (c *Config) GetSweepRatePerSecond() float64  { return c.SweepRatePerSecond }
func (c *Config) GetEmailEnabled() bool           { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string             { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string         { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string         { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string        { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string     { return c.EmailFromAddress }
func (c *Config) GetOperatorEmail() string        { return c.OperatorEmail }
func (c *Config) GetCalendarFile() string         { return c.CalendarFile }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getPositiveInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
