package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	// Server
	ServerPort  string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DatabaseType   string `env:"DB_TYPE" envDefault:"sqlite"`
	DatabasePath   string `env:"DB_PATH" envDefault:"./speechplay.db"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`

	// Participant tokens
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"2h"`

	// Locking. An empty REDIS_ADDR keeps locks in-process.
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"10s"`

	// Game timing
	TurnTickInterval time.Duration `env:"TURN_TICK_INTERVAL" envDefault:"1s"`
	PresetsPath      string        `env:"PRESETS_PATH"`

	// Email summaries (disabled when SES_FROM_EMAIL is empty)
	AWSRegion    string `env:"AWS_REGION" envDefault:"us-east-1"`
	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESFromName  string `env:"SES_FROM_NAME" envDefault:"SpeechPlay"`
	ContactsPath string `env:"CONTACTS_PATH"`

	// Request throttling per participant. Zero disables it.
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"120"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logrus.Info("loaded environment variables from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks ranges and cross-field constraints
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3":
		if c.DatabasePath == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("invalid DB_TYPE: %q", c.DatabaseType)
	}

	if c.DBMaxOpenConns < 0 {
		return fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %d", c.DBMaxOpenConns)
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("invalid TOKEN_TTL: %s", c.TokenTTL)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid REDIS_DB: %d", c.RedisDB)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("invalid LOCK_TTL: %s", c.LockTTL)
	}
	if c.TurnTickInterval < 100*time.Millisecond {
		return fmt.Errorf("invalid TURN_TICK_INTERVAL: %s (must be at least 100ms)", c.TurnTickInterval)
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateLimitWindow <= 0) {
		return fmt.Errorf("invalid RATE_LIMIT %d per %s", c.RateLimit, c.RateLimitWindow)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// ConfigureLogging applies the level and formatter to the standard logger.
// Production emits JSON, everything else the text formatter.
func (c *Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if c.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
