package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Supported backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendMinIO    = "minio"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Backend string
	Root    string
	MinIO   MinIOConfig
}

// LinkConfig controls link issuing and expiry.
type LinkConfig struct {
	BaseURL     string
	ExpiryHours int
}

// SweepConfig controls the background reclamation sweeper.
type SweepConfig struct {
	Interval time.Duration
}

// SMTPConfig holds mail delivery credentials. Empty Host or User disables SMTP.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	SMTP       SMTPConfig
	WebhookURL string
	TimeoutSec int
	QueueSize  int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost         string
	Port            string
	Timezone        string
	LogLevel        string
	MaxUploadMB     int
	StoreTimeoutSec int
	MetadataBackend string
	Database        DatabaseConfig
	Storage         StorageConfig
	Link            LinkConfig
	Sweep           SweepConfig
	Notify          NotifyConfig
}

// Load reads configuration from environment variables and validates it.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		AppHost:         getEnv("APP_HOST", "localhost:8080"),
		Port:            getEnv("PORT", "8080"),
		Timezone:        getEnv("APP_TIMEZONE", "UTC"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MaxUploadMB:     getEnvInt("MAX_UPLOAD_MB", 100),
		StoreTimeoutSec: getEnvInt("STORE_TIMEOUT_SEC", 10),
		MetadataBackend: getEnv("METADATA_BACKEND", BackendPostgres),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", BackendLocal),
			Root:    getEnv("STORAGE_ROOT", "./uploads"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		Link: LinkConfig{
			BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
			ExpiryHours: getEnvInt("LINK_EXPIRY_HOURS", 24),
		},
		Sweep: SweepConfig{
			Interval: getEnvDuration("SWEEP_INTERVAL", time.Hour),
		},
		Notify: NotifyConfig{
			SMTP: SMTPConfig{
				Host:     getEnv("SMTP_HOST", ""),
				Port:     getEnvInt("SMTP_PORT", 587),
				User:     getEnv("SMTP_USER", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
				From:     getEnv("MAIL_FROM", ""),
			},
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			TimeoutSec: getEnvInt("NOTIFY_TIMEOUT_SEC", 10),
			QueueSize:  getEnvInt("NOTIFY_QUEUE_SIZE", 64),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that must fail fast at startup.
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.Link.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid BASE_URL %q: absolute http(s) address required", c.Link.BaseURL)
	}
	if c.Link.ExpiryHours <= 0 {
		return fmt.Errorf("LINK_EXPIRY_HOURS must be positive, got %d", c.Link.ExpiryHours)
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.Sweep.Interval)
	}
	switch c.MetadataBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown METADATA_BACKEND %q", c.MetadataBackend)
	}
	switch c.Storage.Backend {
	case BackendLocal, BackendMinIO:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// LinkTTL returns the configured link lifetime.
func (c *AppConfig) LinkTTL() time.Duration {
	return time.Duration(c.Link.ExpiryHours) * time.Hour
}

// StoreTimeout returns the per-call timeout applied to metadata and blob store calls.
func (c *AppConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSec) * time.Second
}

// Location returns the time zone used for log timestamps.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SMTPEnabled reports whether real mail delivery is configured.
func (s SMTPConfig) SMTPEnabled() bool {
	return s.Host != "" && s.User != "" && s.Password != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
