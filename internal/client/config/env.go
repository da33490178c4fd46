package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/joho/godotenv"
)

const (
	envDatabasePath     = "GOPHAUTH_DB_PATH"
	envLogBackend       = "GOPHAUTH_LOG_BACKEND"
	envLogLevel         = "GOPHAUTH_LOG_LEVEL"
	envLogFormat        = "GOPHAUTH_LOG_FORMAT"
	envLogFile          = "GOPHAUTH_LOG_FILE"
	envSessionTTL       = "GOPHAUTH_SESSION_TTL"
	envOperationTimeout = "GOPHAUTH_OP_TIMEOUT"
)

// parseEnv overlays Config with GOPHAUTH_* environment variables.
//
// A dotenv file named with -e/-env is loaded first and must exist; without
// the flag, ./.env is loaded when present. Variables already set in the
// process environment win over the file. Durations use time.ParseDuration
// syntax. Panics on unreadable files or bad durations.
func parseEnv(cfg *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if v, ok := os.LookupEnv(envDatabasePath); ok {
		cfg.DatabasePath = v
	}
	if v, ok := os.LookupEnv(envLogBackend); ok {
		cfg.LogBackend = v
	}
	if v, ok := os.LookupEnv(envLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv(envLogFormat); ok {
		cfg.LogFormat = v
	}
	if v, ok := os.LookupEnv(envLogFile); ok {
		cfg.LogFile = v
	}
	if v, ok := os.LookupEnv(envSessionTTL); ok {
		cfg.SessionTTL = mustDuration(envSessionTTL, v)
	}
	if v, ok := os.LookupEnv(envOperationTimeout); ok {
		cfg.OperationTimeout = mustDuration(envOperationTimeout, v)
	}
}

func mustDuration(name, v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(name + ": " + err.Error())
	}
	return d
}
