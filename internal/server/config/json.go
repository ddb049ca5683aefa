package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/cutout/internal/flagx"
	"github.com/dmitrijs2005/cutout/internal/timex"
)

// JsonConfig is a DTO used only for reading JSON config files. Durations
// use timex.Duration so "1h" and integer nanoseconds both parse. Zero
// values leave the current setting untouched.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration"`
	GeminiAPIKey                 string         `json:"gemini_api_key"`
	GeminiModel                  string         `json:"gemini_model"`
	GeminiBaseURL                string         `json:"gemini_base_url"`
	GeminiTimeout                timex.Duration `json:"gemini_timeout"`
	MaxUploadBytes               int64          `json:"max_upload_bytes"`
	MaxInputDimension            int            `json:"max_input_dimension"`
	FrontendDistDir              string         `json:"frontend_dist_dir"`
	LogFormat                    string         `json:"log_format"`
	LogLevel                     string         `json:"log_level"`
	APIRateLimit                 string         `json:"api_rate_limit"`
	BatchTTL                     timex.Duration `json:"batch_ttl"`
	BatchMaxItems                int            `json:"batch_max_items"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
}

// parseJson overlays config with the JSON file named by -c/-config or
// CONFIG_FILE. It panics when the file cannot be read or parsed.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.SessionTokenValidityDuration, c.SessionTokenValidityDuration.Duration)
	setString(&config.GeminiAPIKey, c.GeminiAPIKey)
	setString(&config.GeminiModel, c.GeminiModel)
	setString(&config.GeminiBaseURL, c.GeminiBaseURL)
	setDuration(&config.GeminiTimeout, c.GeminiTimeout.Duration)
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.MaxInputDimension > 0 {
		config.MaxInputDimension = c.MaxInputDimension
	}
	setString(&config.FrontendDistDir, c.FrontendDistDir)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.APIRateLimit, c.APIRateLimit)
	setDuration(&config.BatchTTL, c.BatchTTL.Duration)
	if c.BatchMaxItems > 0 {
		config.BatchMaxItems = c.BatchMaxItems
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
