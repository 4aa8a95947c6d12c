package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port" env:"SERVER_PORT" validate:"required"`
		Mode string `yaml:"mode" env:"SERVER_MODE" validate:"oneof=development production test"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST" validate:"required"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" validate:"min=0"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" validate:"min=1"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsDir   string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
	} `yaml:"database"`

	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=json text"`
	} `yaml:"logging"`

	Digest struct {
		Cap                  int     `yaml:"cap" env:"DIGEST_CAP" validate:"min=1"`
		Window               string  `yaml:"window" env:"DIGEST_WINDOW"`
		Workers              int     `yaml:"workers" env:"DIGEST_WORKERS" validate:"min=1,max=256"`
		RetryBudget          int     `yaml:"retry_budget" env:"DIGEST_RETRY_BUDGET" validate:"min=0"`
		RetryInitialInterval string  `yaml:"retry_initial_interval" env:"DIGEST_RETRY_INITIAL_INTERVAL"`
		RetryMaxInterval     string  `yaml:"retry_max_interval" env:"DIGEST_RETRY_MAX_INTERVAL"`
		SendTimeout          string  `yaml:"send_timeout" env:"DIGEST_SEND_TIMEOUT"`
		StoreTimeout         string  `yaml:"store_timeout" env:"DIGEST_STORE_TIMEOUT"`
		RunDeadline          string  `yaml:"run_deadline" env:"DIGEST_RUN_DEADLINE"`
		RatePerSecond        float64 `yaml:"rate_per_second" env:"DIGEST_RATE_PER_SECOND" validate:"min=0"`
		RateBurst            int     `yaml:"rate_burst" env:"DIGEST_RATE_BURST" validate:"min=1"`
		Timezone             string  `yaml:"timezone" env:"DIGEST_TIMEZONE"`
	} `yaml:"digest"`

	Scheduler struct {
		Enabled bool `yaml:"enabled" env:"SCHEDULER_ENABLED"`
		Hour    int  `yaml:"hour" env:"SCHEDULER_HOUR" validate:"min=0,max=23"`
		Minute  int  `yaml:"minute" env:"SCHEDULER_MINUTE" validate:"min=0,max=59"`
	} `yaml:"scheduler"`

	SMTP struct {
		Host      string `yaml:"host" env:"SMTP_HOST"`
		Port      int    `yaml:"port" env:"SMTP_PORT" validate:"min=1,max=65535"`
		Username  string `yaml:"username" env:"SMTP_USERNAME"`
		Password  string `yaml:"password" env:"SMTP_PASSWORD"`
		FromEmail string `yaml:"from_email" env:"SMTP_FROM_EMAIL" validate:"required,email"`
		UseTLS    bool   `yaml:"use_tls" env:"SMTP_USE_TLS"`
	} `yaml:"smtp"`

	Redis struct {
		Addr      string `yaml:"addr" env:"REDIS_ADDR"`
		Password  string `yaml:"password" env:"REDIS_PASSWORD"`
		DB        int    `yaml:"db" env:"REDIS_DB" validate:"min=0"`
		DedupeTTL string `yaml:"dedupe_ttl" env:"REDIS_DEDUPE_TTL"`
	} `yaml:"redis"`

	Seed struct {
		Enabled bool `yaml:"enabled" env:"SEED_ENABLED"`
	} `yaml:"seed"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	// The file is optional; env vars alone are enough in containers
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := processStructFields(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "unisphere"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 2
	config.Database.MaxOpenConns = 10
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsDir = "migrations"

	config.JWT.AccessTokenExpiration = "1h"
	config.JWT.Issuer = "digest.unisphere.app"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Digest.Cap = 5
	config.Digest.Window = "168h"
	config.Digest.Workers = 4
	config.Digest.RetryBudget = 3
	config.Digest.RetryInitialInterval = "500ms"
	config.Digest.RetryMaxInterval = "10s"
	config.Digest.SendTimeout = "15s"
	config.Digest.StoreTimeout = "10s"
	config.Digest.RunDeadline = "2h"
	config.Digest.RatePerSecond = 10
	config.Digest.RateBurst = 5
	config.Digest.Timezone = "UTC"

	config.Scheduler.Enabled = true
	config.Scheduler.Hour = 6
	config.Scheduler.Minute = 0

	config.SMTP.Port = 587
	config.SMTP.FromEmail = "noreply@unisphere.app"

	config.Redis.DedupeTTL = "36h"
}

var validate = validator.New()

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return err
	}

	durations := map[string]string{
		"digest.window":                 config.Digest.Window,
		"digest.retry_initial_interval": config.Digest.RetryInitialInterval,
		"digest.retry_max_interval":     config.Digest.RetryMaxInterval,
		"digest.send_timeout":           config.Digest.SendTimeout,
		"digest.store_timeout":          config.Digest.StoreTimeout,
		"digest.run_deadline":           config.Digest.RunDeadline,
		"redis.dedupe_ttl":              config.Redis.DedupeTTL,
		"jwt.access_token_expiration":   config.JWT.AccessTokenExpiration,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s format: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if config.Server.Mode == "production" && config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required in production")
	}

	if _, err := time.LoadLocation(config.Digest.Timezone); err != nil {
		return fmt.Errorf("invalid digest.timezone: %w", err)
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}
