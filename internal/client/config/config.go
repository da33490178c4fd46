package config

import "time"

// Config holds runtime settings for the gophauth CLI.
//
// Fields:
//   - DatabasePath: SQLite file holding the users and metadata tables.
//   - LogBackend: "slog" or "zap".
//   - LogLevel: debug, info, warn or error.
//   - LogFormat: "text" or "json".
//   - LogFile: rotated log file; empty logs to stderr.
//   - SessionTTL: lifetime of a login session; 0 means it never expires.
//   - OperationTimeout: deadline for each storage operation; 0 means none.
type Config struct {
	DatabasePath     string
	LogBackend       string
	LogLevel         string
	LogFormat        string
	LogFile          string
	SessionTTL       time.Duration
	OperationTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "auth.db"
	c.LogBackend = "slog"
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.LogFile = ""
	c.SessionTTL = 0
	c.OperationTimeout = 0
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, JSON (if present) and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
