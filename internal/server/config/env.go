package config

import (
	"strings"

	"github.com/spf13/viper"
)

// parseEnv overlays config with environment variables read through viper.
//
// Recognised variables:
//
//	HTTP_ADDR, PORT                 bind address (PORT becomes ":<port>")
//	DATABASE_DSN, DATABASE_URL      database location
//	JWT_SECRET                      session signing secret
//	SESSION_TTL                     session lifetime ("1h")
//	GEMINI_API_KEY, API_KEY         upstream credential
//	GEMINI_MODEL, GEMINI_BASE_URL, GEMINI_TIMEOUT
//	MAX_UPLOAD_BYTES, MAX_INPUT_DIMENSION
//	FRONTEND_DIST_DIR, LOG_FORMAT, LOG_LEVEL, API_RATE_LIMIT
//	BATCH_TTL, BATCH_MAX_ITEMS
//	S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT
func parseEnv(config *Config) {
	v := viper.New()
	v.AutomaticEnv()

	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v.IsSet(k) {
				if s := strings.TrimSpace(v.GetString(k)); s != "" {
					*dst = s
					return
				}
			}
		}
	}

	str(&config.HTTPAddr, "HTTP_ADDR")
	if !v.IsSet("HTTP_ADDR") && v.IsSet("PORT") {
		if port := strings.TrimSpace(v.GetString("PORT")); port != "" {
			config.HTTPAddr = ":" + port
		}
	}
	str(&config.DatabaseDSN, "DATABASE_DSN", "DATABASE_URL")
	str(&config.SecretKey, "JWT_SECRET")
	str(&config.GeminiAPIKey, "GEMINI_API_KEY", "API_KEY")
	str(&config.GeminiModel, "GEMINI_MODEL")
	str(&config.GeminiBaseURL, "GEMINI_BASE_URL")
	str(&config.FrontendDistDir, "FRONTEND_DIST_DIR")
	str(&config.LogFormat, "LOG_FORMAT")
	str(&config.LogLevel, "LOG_LEVEL")
	str(&config.APIRateLimit, "API_RATE_LIMIT")
	str(&config.S3RootUser, "S3_ROOT_USER")
	str(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	str(&config.S3Bucket, "S3_BUCKET")
	str(&config.S3Region, "S3_REGION")
	str(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")

	if v.IsSet("SESSION_TTL") {
		if d := v.GetDuration("SESSION_TTL"); d > 0 {
			config.SessionTokenValidityDuration = d
		}
	}
	if v.IsSet("GEMINI_TIMEOUT") {
		config.GeminiTimeout = v.GetDuration("GEMINI_TIMEOUT")
	}
	if v.IsSet("BATCH_TTL") {
		if d := v.GetDuration("BATCH_TTL"); d > 0 {
			config.BatchTTL = d
		}
	}
	if v.IsSet("MAX_UPLOAD_BYTES") {
		if n := v.GetInt64("MAX_UPLOAD_BYTES"); n > 0 {
			config.MaxUploadBytes = n
		}
	}
	if v.IsSet("MAX_INPUT_DIMENSION") {
		config.MaxInputDimension = v.GetInt("MAX_INPUT_DIMENSION")
	}
	if v.IsSet("BATCH_MAX_ITEMS") {
		if n := v.GetInt("BATCH_MAX_ITEMS"); n > 0 {
			config.BatchMaxItems = n
		}
	}
}
