package config

import "time"

// Config holds runtime settings for the cutout CLI.
//
// Fields:
//   - ServerURL: base URL of the cutout server.
//   - DatabasePath: local SQLite file keeping the stored email and API key.
//   - RequestTimeout: per request deadline; image removal can be slow.
type Config struct {
	ServerURL      string
	DatabasePath   string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:3000"
	c.DatabasePath = "cutout-cli.db"
	c.RequestTimeout = 2 * time.Minute
}

// LoadConfig constructs a Config from defaults overlaid with the JSON file
// referenced in args, if any.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
