package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/menatics/andromeda/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration (API binary only)
	Server ServerConfig

	// Database configuration (internal Postgres store)
	Database DatabaseConfig

	// Redis configuration (run lock)
	Redis RedisConfig

	// Mail configuration (outbound SMTP)
	Mail MailConfig

	// Monitor configuration (daily reconciliation job)
	Monitor MonitorConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the internal store connection settings
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
	Timeout  time.Duration
}

// RedisConfig holds the run-lock backend settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MailConfig holds SMTP transport settings
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	UseTLS      bool
	Timeout     time.Duration
}

// MonitorConfig holds the daily job settings
type MonitorConfig struct {
	// Cron schedule for the daily run (default 08:00)
	Schedule string

	// Operations distribution list for consumption alerts and digests
	OperationsEmails []string

	// Base URL used to build unsubscribe links in client-facing mail
	BaseURL string

	// Directory for the per-day run log files
	LogDir string

	// Connect timeout for tenant database polls
	PollConnectTimeout time.Duration

	// TTL for the run-in-progress lock
	LockTTL time.Duration

	// When false, a consumption alert for a client is suppressed if one
	// was already sent the same calendar day by a previous run.
	AlertRepeatDaily bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Mail:          loadMailConfig(),
		Monitor:       loadMonitorConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ANDROMEDA_HOST", "0.0.0.0"),
		Port:            getEnv("ANDROMEDA_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ANDROMEDA_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ANDROMEDA_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("ANDROMEDA_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ANDROMEDA_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadDatabaseConfig loads internal store configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:      getEnv("ANDROMEDA_POSTGRES_URL", "postgres://localhost/andromeda?sslmode=disable"),
		MaxConns: getEnvInt("ANDROMEDA_POSTGRES_MAX_CONNS", 10),
		MinConns: getEnvInt("ANDROMEDA_POSTGRES_MIN_CONNS", 2),
		Timeout:  getEnvDuration("ANDROMEDA_POSTGRES_TIMEOUT", 10*time.Second),
	}
}

// loadRedisConfig loads run-lock backend configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("ANDROMEDA_REDIS_ADDR", "localhost:6379"),
		Password: getEnv("ANDROMEDA_REDIS_PASSWORD", ""),
		DB:       getEnvInt("ANDROMEDA_REDIS_DB", 0),
	}
}

// loadMailConfig loads SMTP configuration from environment
func loadMailConfig() MailConfig {
	return MailConfig{
		Host:        getEnv("ANDROMEDA_SMTP_HOST", ""),
		Port:        getEnvInt("ANDROMEDA_SMTP_PORT", 587),
		Username:    getEnv("ANDROMEDA_SMTP_USERNAME", ""),
		Password:    getEnv("ANDROMEDA_SMTP_PASSWORD", ""),
		FromAddress: getEnv("ANDROMEDA_SMTP_FROM", ""),
		FromName:    getEnv("ANDROMEDA_SMTP_FROM_NAME", "Sistema Andromeda"),
		UseTLS:      getEnvBool("ANDROMEDA_SMTP_USE_TLS", true),
		Timeout:     getEnvDuration("ANDROMEDA_SMTP_TIMEOUT", 30*time.Second),
	}
}

// loadMonitorConfig loads daily job configuration from environment
func loadMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Schedule:           getEnv("ANDROMEDA_MONITOR_SCHEDULE", "0 8 * * *"),
		OperationsEmails:   splitList(getEnv("ANDROMEDA_OPERATIONS_EMAILS", "")),
		BaseURL:            getEnv("ANDROMEDA_BASE_URL", "http://localhost:8080"),
		LogDir:             getEnv("ANDROMEDA_MONITOR_LOG_DIR", "logs"),
		PollConnectTimeout: getEnvDuration("ANDROMEDA_POLL_CONNECT_TIMEOUT", 10*time.Second),
		LockTTL:            getEnvDuration("ANDROMEDA_MONITOR_LOCK_TTL", 2*time.Hour),
		AlertRepeatDaily:   getEnvBool("ANDROMEDA_ALERT_REPEAT_DAILY", true),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("ANDROMEDA_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ANDROMEDA_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Mail.Host != "" && c.Mail.FromAddress == "" {
		return fmt.Errorf("SMTP from address is required when SMTP host is set")
	}

	if c.Monitor.Schedule == "" {
		return fmt.Errorf("monitor schedule is required")
	}
	if c.Monitor.PollConnectTimeout <= 0 {
		return fmt.Errorf("poll connect timeout must be positive")
	}
	if c.Monitor.PollConnectTimeout > 10*time.Second {
		return fmt.Errorf("poll connect timeout must not exceed 10s")
	}
	if c.Monitor.LockTTL <= 0 {
		return fmt.Errorf("monitor lock TTL must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// splitList parses a comma-separated list, dropping empty items
func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
