package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Category   CategoryConfig   `mapstructure:"category"`
	AI         AIConfig         `mapstructure:"ai"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Revalidate RevalidateConfig `mapstructure:"revalidate"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Tasks      TasksConfig      `mapstructure:"tasks"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// AuthConfig holds the shared secrets guarding the HTTP surface
type AuthConfig struct {
	ServiceRoleKey string `mapstructure:"service_role_key"`
	InternalAPIKey string `mapstructure:"internal_api_key"`
}

// QueueConfig holds queue draining configuration
type QueueConfig struct {
	VisibilityTimeout           time.Duration `mapstructure:"visibility_timeout"`
	EnrichmentVisibilityTimeout time.Duration `mapstructure:"enrichment_visibility_timeout"`
	MaxRetries                  int           `mapstructure:"max_retries"`
	Concurrency                 int           `mapstructure:"concurrency"`
	InstagramBatchSize          int           `mapstructure:"instagram_batch_size"`
	RaindropBatchSize           int           `mapstructure:"raindrop_batch_size"`
	TwitterBatchSize            int           `mapstructure:"twitter_batch_size"`
	ImportsBatchSize            int           `mapstructure:"imports_batch_size"`
	EnrichmentBatchSize         int           `mapstructure:"enrichment_batch_size"`
}

// CategoryConfig holds category linking configuration
type CategoryConfig struct {
	OnVerifyFailure string `mapstructure:"on_verify_failure"`
}

// AIConfig holds the vision model configuration
type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CaptureConfig holds screenshot and PDF thumbnail service configuration
type CaptureConfig struct {
	ScreenshotURL   string        `mapstructure:"screenshot_url"`
	ScreenshotToken string        `mapstructure:"screenshot_token"`
	PDFURL          string        `mapstructure:"pdf_url"`
	PDFSecretKey    string        `mapstructure:"pdf_secret_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
}

// StorageConfig holds R2 object storage configuration
type StorageConfig struct {
	AccountID       string        `mapstructure:"account_id"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	Bucket          string        `mapstructure:"bucket"`
	Endpoint        string        `mapstructure:"endpoint"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	MaxVideoBytes   int64         `mapstructure:"max_video_bytes"`
	MaxImageBytes   int64         `mapstructure:"max_image_bytes"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	MirrorTimeout   time.Duration `mapstructure:"mirror_timeout"`
}

// RevalidateConfig holds on-demand page revalidation configuration
type RevalidateConfig struct {
	URL            string        `mapstructure:"url"`
	Secret         string        `mapstructure:"secret"`
	Attempts       int           `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

// RedisConfig holds optional redis configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TasksConfig holds background task pool configuration
type TasksConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig holds queue drain schedule configuration
type SchedulerConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	Schedules map[string]string `mapstructure:"schedules"`
}

// SentryConfig holds error tracking configuration
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

const (
	VerifyAssumeSuccess = "assume-success"
	VerifyAssumeFailure = "assume-failure"
)

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Storage.PublicBaseURL == "" {
		if base := v.GetString("supabase.url"); base != "" {
			config.Storage.PublicBaseURL = strings.TrimRight(base, "/") + "/storage/v1/object/public/" + config.Storage.Bucket
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")

	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("queue.visibility_timeout", "30s")
	v.SetDefault("queue.enrichment_visibility_timeout", "120s")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.concurrency", 0)
	v.SetDefault("queue.instagram_batch_size", 5)
	v.SetDefault("queue.raindrop_batch_size", 5)
	v.SetDefault("queue.twitter_batch_size", 50)
	v.SetDefault("queue.imports_batch_size", 5)
	v.SetDefault("queue.enrichment_batch_size", 10)

	v.SetDefault("category.on_verify_failure", VerifyAssumeSuccess)

	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", "60s")

	v.SetDefault("capture.timeout", "60s")
	v.SetDefault("capture.probe_timeout", "5s")

	v.SetDefault("storage.bucket", "recollect")
	v.SetDefault("storage.max_video_bytes", 50*1024*1024)
	v.SetDefault("storage.max_image_bytes", 15*1024*1024)
	v.SetDefault("storage.download_timeout", "30s")
	v.SetDefault("storage.mirror_timeout", "10s")

	v.SetDefault("revalidate.attempts", 3)
	v.SetDefault("revalidate.initial_backoff", "500ms")
	v.SetDefault("revalidate.max_backoff", "2s")
	v.SetDefault("revalidate.attempt_timeout", "10s")
	v.SetDefault("revalidate.lock_ttl", "30s")

	v.SetDefault("tasks.workers", 4)
	v.SetDefault("tasks.queue_size", 100)
	v.SetDefault("tasks.timeout", "2m")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.schedules", map[string]string{
		"instagram_imports": "@every 30s",
		"raindrop_imports":  "@every 30s",
		"twitter_imports":   "@every 30s",
		"imports":           "@every 1m",
		"ai-embeddings":     "@every 1m",
	})

	v.SetDefault("sentry.environment", "production")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "PORT")

	// Database
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")
	v.BindEnv("supabase.url", "SUPABASE_URL")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")

	// Auth
	v.BindEnv("auth.service_role_key", "SUPABASE_SERVICE_ROLE_KEY")
	v.BindEnv("auth.internal_api_key", "INTERNAL_API_KEY")

	// Queue
	v.BindEnv("queue.max_retries", "QUEUE_MAX_RETRIES")
	v.BindEnv("category.on_verify_failure", "CATEGORY_ON_VERIFY_FAILURE")

	// AI
	v.BindEnv("ai.api_key", "GOOGLE_GEMINI_TOKEN")
	v.BindEnv("ai.model", "GEMINI_MODEL")

	// Capture
	v.BindEnv("capture.screenshot_url", "SCREENSHOT_API_URL")
	v.BindEnv("capture.screenshot_token", "SCREENSHOT_TOKEN")
	v.BindEnv("capture.pdf_url", "PDF_URL_SCREENSHOT_API")
	v.BindEnv("capture.pdf_secret_key", "PDF_SECRET_KEY")

	// Storage
	v.BindEnv("storage.account_id", "R2_ACCOUNT_ID")
	v.BindEnv("storage.access_key_id", "R2_ACCESS_KEY_ID")
	v.BindEnv("storage.secret_access_key", "R2_SECRET_ACCESS_KEY")
	v.BindEnv("storage.bucket", "R2_BUCKET_NAME")
	v.BindEnv("storage.public_base_url", "R2_PUBLIC_BUCKET_URL")

	// Revalidation
	v.BindEnv("revalidate.url", "REVALIDATE_URL")
	v.BindEnv("revalidate.secret", "REVALIDATE_SECRET_TOKEN")

	// Redis
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Sentry
	v.BindEnv("sentry.dsn", "SENTRY_DSN")
	v.BindEnv("sentry.environment", "SENTRY_ENVIRONMENT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	if c.Auth.ServiceRoleKey == "" {
		return fmt.Errorf("service role key is required")
	}

	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue max_retries must not be negative")
	}

	for name, size := range map[string]int{
		"instagram":  c.Queue.InstagramBatchSize,
		"raindrop":   c.Queue.RaindropBatchSize,
		"twitter":    c.Queue.TwitterBatchSize,
		"imports":    c.Queue.ImportsBatchSize,
		"enrichment": c.Queue.EnrichmentBatchSize,
	} {
		if size <= 0 {
			return fmt.Errorf("queue %s batch size must be positive", name)
		}
	}

	switch c.Category.OnVerifyFailure {
	case VerifyAssumeSuccess, VerifyAssumeFailure:
	default:
		return fmt.Errorf("category on_verify_failure must be %q or %q", VerifyAssumeSuccess, VerifyAssumeFailure)
	}

	if c.Tasks.Workers <= 0 || c.Tasks.QueueSize <= 0 {
		return fmt.Errorf("tasks workers and queue_size must be positive")
	}

	return nil
}
