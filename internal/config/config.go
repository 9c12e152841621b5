// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AppSecret is the HMAC secret used to sign session tokens (HS256). Required.
	AppSecret string `mapstructure:"APP_SECRET"`
	// TokenIssuer is the iss claim on issued tokens (e.g. "ident-plane").
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
	// TokenTTL is the session token lifetime (e.g. "24h"). Empty or "0" means
	// no exp claim is set; expiry is then a verifier-side concern.
	TokenTTL string `mapstructure:"TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// OTPTTL is the one-time code lifetime (e.g. "15m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// RequestTimeout bounds each request's store and notifier calls (e.g. "10s").
	RequestTimeout string `mapstructure:"REQUEST_TIMEOUT"`

	// SMTPHost, SMTPPort, SMTPUser, SMTPPass, SMTPFrom configure the outbound mailer.
	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort string `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
	SMTPFrom string `mapstructure:"SMTP_FROM"`

	// OTPReturnToClient when true enables dev OTP mode: no email is sent and
	// codes are kept for GET /dev/otp. Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// CORSOrigins is a comma-separated list of allowed origins; empty allows all.
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	// OTLPTraceEndpoint is the OTLP/HTTP trace collector endpoint (e.g.
	// localhost:4318). Empty disables trace export.
	OTLPTraceEndpoint string `mapstructure:"OTLP_TRACE_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_SECRET", "")
	v.SetDefault("TOKEN_ISSUER", "ident-plane")
	v.SetDefault("TOKEN_TTL", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_TTL", "15m")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("OTLP_TRACE_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.AppSecret == "" {
		return nil, errors.New("config: APP_SECRET must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// TokenLifetime parses TokenTTL as a time.Duration. Returns 0 (no exp claim)
// if unset or invalid.
func (c *Config) TokenLifetime() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// CodeLifetime parses OTPTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) CodeLifetime() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// Timeout parses RequestTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
