package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Logging      LoggingConfig
	Detection    DetectionConfig
	Notification NotificationConfig
	Channels     ChannelConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DetectionConfig contains anomaly detection configuration
type DetectionConfig struct {
	Schedule       string // cron expression for scheduled cycles
	LookbackDays   int    // baseline lookback window
	WorkerPoolSize int64  // max tenants processed concurrently
	RunOnStart     bool   // run one cycle immediately at startup
}

// NotificationConfig contains dispatch policy configuration
type NotificationConfig struct {
	ChannelTimeout    time.Duration // per-channel send timeout
	HighBatchWindow   time.Duration // batch window for high severity
	MediumBatchWindow time.Duration // batch window for medium severity
	DigestTopN        int           // alert titles included in a digest
	PolicySeedPath    string        // optional YAML overriding default policies
}

// ChannelConfig contains channel adapter configuration
type ChannelConfig struct {
	Email          EmailConfig
	ChatWebhook    ChatWebhookConfig
	GenericWebhook GenericWebhookConfig
}

// EmailConfig contains SMTP settings for the email channel
type EmailConfig struct {
	SMTPHost   string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// ChatWebhookConfig contains settings for the chat-webhook channel
type ChatWebhookConfig struct {
	WebhookURL string
	Channel    string
}

// GenericWebhookConfig contains settings for the outbound webhook channel
type GenericWebhookConfig struct {
	URL           string
	SigningSecret string
	MaxRetries    int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "usagewatch"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./data.db"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", "supersecretkey"),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 12*time.Hour),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
		},
		Detection: DetectionConfig{
			Schedule:       getEnv("DETECTION_SCHEDULE", "*/15 * * * *"),
			LookbackDays:   getEnvAsInt("DETECTION_LOOKBACK_DAYS", 90),
			WorkerPoolSize: int64(getEnvAsInt("DETECTION_WORKER_POOL", 8)),
			RunOnStart:     getEnvAsBool("DETECTION_RUN_ON_START", false),
		},
		Notification: NotificationConfig{
			ChannelTimeout:    getEnvAsDuration("NOTIFY_CHANNEL_TIMEOUT", 10*time.Second),
			HighBatchWindow:   getEnvAsDuration("NOTIFY_HIGH_BATCH_WINDOW", 5*time.Minute),
			MediumBatchWindow: getEnvAsDuration("NOTIFY_MEDIUM_BATCH_WINDOW", 60*time.Minute),
			DigestTopN:        getEnvAsInt("NOTIFY_DIGEST_TOP_N", 5),
			PolicySeedPath:    getEnv("NOTIFY_POLICY_SEED", ""),
		},
		Channels: ChannelConfig{
			Email: EmailConfig{
				SMTPHost:   getEnv("SMTP_HOST", ""),
				SMTPPort:   getEnvAsInt("SMTP_PORT", 587),
				Username:   getEnv("SMTP_USERNAME", ""),
				Password:   getEnv("SMTP_PASSWORD", ""),
				From:       getEnv("SMTP_FROM", "alerts@usagewatch.local"),
				Recipients: getEnvAsSlice("SMTP_RECIPIENTS", nil),
			},
			ChatWebhook: ChatWebhookConfig{
				WebhookURL: getEnv("CHAT_WEBHOOK_URL", ""),
				Channel:    getEnv("CHAT_WEBHOOK_CHANNEL", "#usage-alerts"),
			},
			GenericWebhook: GenericWebhookConfig{
				URL:           getEnv("WEBHOOK_URL", ""),
				SigningSecret: getEnv("WEBHOOK_SIGNING_SECRET", ""),
				MaxRetries:    getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
				RetryBaseWait: getEnvAsDuration("WEBHOOK_RETRY_BASE_WAIT", 500*time.Millisecond),
				RetryMaxWait:  getEnvAsDuration("WEBHOOK_RETRY_MAX_WAIT", 10*time.Second),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "supersecretkey" {
		return fmt.Errorf("JWT_SECRET must be set and should not use default value in production")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Detection.LookbackDays < 1 {
		return fmt.Errorf("detection lookback must be at least 1 day, got %d", c.Detection.LookbackDays)
	}

	if c.Detection.WorkerPoolSize < 1 {
		return fmt.Errorf("detection worker pool must be at least 1, got %d", c.Detection.WorkerPoolSize)
	}

	if c.Notification.HighBatchWindow <= 0 || c.Notification.MediumBatchWindow <= 0 {
		return fmt.Errorf("notification batch windows must be positive")
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
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
