package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Billing   BillingConfig   `mapstructure:",squash"`
	Notifier  NotifierConfig  `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	OverdueSpec  string `mapstructure:"SCHEDULER_OVERDUE_SPEC"`
	RestoreSpec  string `mapstructure:"SCHEDULER_RESTORE_SPEC"`
	ReminderSpec string `mapstructure:"SCHEDULER_REMINDER_SPEC"`
	Timezone     string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type BillingConfig struct {
	ReminderLeadDays int           `mapstructure:"REMINDER_LEAD_DAYS"`
	DedupWindow      time.Duration `mapstructure:"NOTIFICATION_DEDUP_WINDOW"`
	DefaultCurrency  string        `mapstructure:"DEFAULT_CURRENCY"`
}

type NotifierConfig struct {
	SendgridAPIKey string `mapstructure:"SENDGRID_API_KEY"`
	FromEmail      string `mapstructure:"NOTIFIER_FROM_EMAIL"`
	FromName       string `mapstructure:"NOTIFIER_FROM_NAME"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("REMINDER_LEAD_DAYS", 3)
	viper.SetDefault("NOTIFICATION_DEDUP_WINDOW", "24h")
	viper.SetDefault("DEFAULT_CURRENCY", "USD")
	viper.SetDefault("SCHEDULER_OVERDUE_SPEC", "0 0 0 * * *")
	viper.SetDefault("SCHEDULER_RESTORE_SPEC", "0 0 * * * *")
	viper.SetDefault("SCHEDULER_REMINDER_SPEC", "0 0 9 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "UTC")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
	viper.SetDefault("NOTIFIER_FROM_EMAIL", "billing@eduflow.io")
	viper.SetDefault("NOTIFIER_FROM_NAME", "Eduflow Billing")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Billing.ReminderLeadDays < 0 {
		return fmt.Errorf("REMINDER_LEAD_DAYS must not be negative")
	}

	if c.Billing.DedupWindow <= 0 {
		return fmt.Errorf("NOTIFICATION_DEDUP_WINDOW must be greater than 0")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE is invalid: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// ReminderWindow returns how far ahead of the due date reminders go out.
func (c *Config) ReminderWindow() time.Duration {
	return time.Duration(c.Billing.ReminderLeadDays) * 24 * time.Hour
}
