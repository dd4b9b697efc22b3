// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/crypto/bcrypt"
)

// MinJWTSecretLength is the minimum accepted signing secret length in bytes.
const MinJWTSecretLength = 32

var (
	// ErrWeakJWTSecret indicates the signing secret is shorter than MinJWTSecretLength.
	ErrWeakJWTSecret = errors.New("JWT_SECRET is too short")
	// ErrInvalidBcryptCost indicates BCRYPT_COST is outside bcrypt's range.
	ErrInvalidBcryptCost = errors.New("BCRYPT_COST out of range")
	// ErrInvalidTokenTTL indicates a non-positive TOKEN_TTL.
	ErrInvalidTokenTTL = errors.New("TOKEN_TTL must be positive")
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"3000"`

	// Database (PostgreSQL)
	DatabaseURL    string        `env:"DATABASE_URL,required"`
	DBMaxConns     int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBQueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"5s"`

	// Cache (Redis). Rate limiting is disabled when empty.
	RedisURL string `env:"REDIS_URL"`

	// Token signing. No default: a missing secret must stop startup.
	JWTSecret string        `env:"JWT_SECRET,required,unset"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"1h"`

	// Password hashing work factor
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting for registration and login (per client IP)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// Request body size limit in bytes (default 64KB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// RateLimitConfigured returns true if a Redis backend is available and
// rate limiting is switched on.
func (c *Config) RateLimitConfigured() bool {
	return c.RateLimitEnabled && c.RedisURL != ""
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakJWTSecret, MinJWTSecretLength, len(c.JWTSecret))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d", ErrInvalidBcryptCost, c.BcryptCost)
	}
	if c.TokenTTL <= 0 {
		return ErrInvalidTokenTTL
	}
	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
