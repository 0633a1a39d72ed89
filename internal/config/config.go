// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Base URL for absolute links in responses (pagination, uploads)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Token signing secret. Rotating it invalidates every outstanding
	// token, session and reset alike.
	SecretKey string `env:"SECRET_KEY,required"`

	// Token lifetimes per purpose
	SessionTokenTTL time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"720h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`

	// Upload storage. MaxRequestBodySize caps the whole request body,
	// which bounds multipart uploads end to end.
	UploadDir          string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	MaxUploadSize      int64  `env:"MAX_UPLOAD_SIZE" envDefault:"8388608"` // 8MB per file
	MaxRequestBodySize int64  `env:"MAX_REQUEST_BODY_SIZE" envDefault:"33554432"`

	// Mail (password reset). When SMTPHost is empty the mailer is a
	// logging no-op, which keeps local development working.
	SMTPHost     string `env:"SMTP_HOST" envDefault:""`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME" envDefault:""`
	SMTPPassword string `env:"SMTP_PASSWORD" envDefault:""`
	SenderEmail  string `env:"SENDER_EMAIL" envDefault:"no-reply@lreview.local"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MailEnabled reports whether an SMTP transport is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
