// Package config handles configuration for the account service, including
// defaults, environment (.env) overlay, JSON overlay and command-line flags.
package config

import (
	"errors"
	"time"
)

// Config holds runtime settings for the account server. It is loaded once at
// startup and treated as read-only afterwards.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the public HTTP endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - AccessTokenSecret / RefreshTokenSecret: independent HMAC secrets (HS256).
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - BcryptCost: password hashing cost.
//   - S3*: object storage settings for avatar and cover image uploads.
//   - UploadDir / MaxUploadSize: temporary storage for multipart uploads.
//   - CookieSecure: Secure flag of the token cookies.
//   - AvatarRequired / CoverImageEnabled: registration contract.
type Config struct {
	EndpointAddrHTTP             string
	DatabaseDSN                  string
	AccessTokenSecret            string
	RefreshTokenSecret           string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	BcryptCost                   int
	S3RootUser                   string
	S3RootPassword               string
	S3Bucket                     string
	S3Region                     string
	S3BaseEndpoint               string
	S3PublicURL                  string
	UploadDir                    string
	MaxUploadSize                int64
	CookieSecure                 bool
	AvatarRequired               bool
	CoverImageEnabled            bool
	LogFormat                    string
	LogLevel                     string
	ShutdownTimeout              time.Duration
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secrets are insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8000"
	c.DatabaseDSN = ""
	c.AccessTokenSecret = "access-secret"
	c.RefreshTokenSecret = "refresh-secret"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 10 * 24 * time.Hour
	c.BcryptCost = 10
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "avatars"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.S3PublicURL = ""
	c.UploadDir = "public/temp"
	c.MaxUploadSize = 10 << 20
	c.CookieSecure = true
	c.AvatarRequired = true
	c.CoverImageEnabled = true
	c.LogFormat = "zap"
	c.LogLevel = "info"
	c.ShutdownTimeout = 10 * time.Second
}

// Validate reports settings the service cannot run with.
func (c *Config) Validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return errors.New("config: token secrets must not be empty")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: access and refresh token secrets must differ")
	}
	if c.AccessTokenValidityDuration <= 0 {
		return errors.New("config: access token validity must be positive")
	}
	if c.RefreshTokenValidityDuration <= c.AccessTokenValidityDuration {
		return errors.New("config: refresh token validity must exceed access token validity")
	}
	if c.EndpointAddrHTTP == "" {
		return errors.New("config: http address is required")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment (optionally seeded from a .env file), an optional JSON
// file and finally command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	parseJson(cfg)
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
