// Package config loads runtime configuration for the gophauth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables, optionally seeded from a dotenv file
//     selected with -e or -env (see parseEnv).
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   path to the SQLite database file
//	-l string   log level
//	-t int      per-operation timeout (seconds)
//
// Environment
//
//	GOPHAUTH_DB_PATH, GOPHAUTH_LOG_BACKEND, GOPHAUTH_LOG_LEVEL,
//	GOPHAUTH_LOG_FORMAT, GOPHAUTH_LOG_FILE, GOPHAUTH_SESSION_TTL,
//	GOPHAUTH_OP_TIMEOUT
//
// # JSON schema
//
// The JSON loader uses timex.Duration, so durations can be either strings
// like "30m" or integer nanoseconds:
//
//	{
//	  "database_path": "auth.db",
//	  "log_backend": "zap",
//	  "log_level": "debug",
//	  "log_format": "json",
//	  "log_file": "gophauth.log",
//	  "session_ttl": "720h",
//	  "operation_timeout": "5s"
//	}
package config
