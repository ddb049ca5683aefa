// Package config handles configuration for the server component: env-aware
// defaults, a JSON overlay, environment variables and command-line flags,
// applied in that order.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds runtime settings for the cutout server.
//
// Fields:
//   - Env: "development" or "production"; picks the DB path and cookie Secure flag.
//   - HTTPAddr: bind address of the HTTP surface.
//   - DatabaseDSN: SQLite file path or a postgres:// URL.
//   - SecretKey: HMAC secret for signing session JWTs (HS256).
//   - SessionTokenValidityDuration: session lifetime, cookie Max-Age follows it.
//   - Gemini*: upstream background-removal API settings. GeminiTimeout 0 means no timeout.
//   - MaxUploadBytes / MaxInputDimension: upload limits; dimension 0 disables down-scaling.
//   - BatchTTL / BatchMaxItems: bulk batch eviction and size limits.
//   - APIRateLimit: per API key limit for /api/v1 ("60-M"); empty disables.
//   - S3*: optional archive export target; empty S3Bucket disables export.
type Config struct {
	Env                          string
	HTTPAddr                     string
	DatabaseDSN                  string
	SecretKey                    string
	SessionTokenValidityDuration time.Duration
	GeminiAPIKey                 string
	GeminiModel                  string
	GeminiBaseURL                string
	GeminiTimeout                time.Duration
	MaxUploadBytes               int64
	MaxInputDimension            int
	FrontendDistDir              string
	LogFormat                    string
	LogLevel                     string
	APIRateLimit                 string
	BatchTTL                     time.Duration
	BatchMaxItems                int
	S3RootUser                   string
	S3RootPassword               string
	S3Bucket                     string
	S3Region                     string
	S3BaseEndpoint               string
}

// LoadDefaults populates Config with defaults for c.Env.
// NOTE: the development secret is insecure and rejected by Validate in production.
func (c *Config) LoadDefaults() {
	if c.Env == "" {
		c.Env = EnvDevelopment
	}

	c.HTTPAddr = ":3000"
	c.DatabaseDSN = "./app.db"
	c.SecretKey = "dev-secret-key"
	c.LogFormat = "console"
	if c.IsProduction() {
		c.DatabaseDSN = "/data/app.db"
		c.SecretKey = ""
		c.LogFormat = "json"
	}
	c.LogLevel = "info"

	c.SessionTokenValidityDuration = time.Hour
	c.GeminiModel = "gemini-2.5-flash-image"
	c.GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	c.GeminiTimeout = 0
	c.MaxUploadBytes = 20 << 20
	c.MaxInputDimension = 0
	c.FrontendDistDir = "dist"
	c.APIRateLimit = "60-M"
	c.BatchTTL = 30 * time.Minute
	c.BatchMaxItems = 50
	c.S3Region = "us-east-1"
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// ExportEnabled reports whether bulk archives can be exported to S3.
func (c *Config) ExportEnabled() bool {
	return c.S3Bucket != ""
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("config: secret key is required (JWT_SECRET)")
	}
	if c.IsProduction() && c.SecretKey == "dev-secret-key" {
		return errors.New("config: development secret key used in production")
	}
	if c.HTTPAddr == "" {
		return errors.New("config: http address is required")
	}
	if c.DatabaseDSN == "" {
		return errors.New("config: database dsn is required")
	}
	if c.SessionTokenValidityDuration <= 0 {
		return errors.New("config: session token validity must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: max upload size must be positive")
	}
	if c.BatchMaxItems <= 0 {
		return errors.New("config: batch max items must be positive")
	}
	return nil
}

// detectEnv reads APP_ENV, falling back to NODE_ENV.
func detectEnv() string {
	for _, key := range []string{"APP_ENV", "NODE_ENV"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return strings.ToLower(v)
		}
	}
	return EnvDevelopment
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{Env: detectEnv()}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
