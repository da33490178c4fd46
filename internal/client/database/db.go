// Package database opens the local SQLite store and manages its schema.
//
// The schema lives in embedded goose migrations (see package migrations) and
// is applied with a goose.Provider, so opening an existing file only creates
// what is missing and never drops data. Reset is the one destructive path and
// is only reachable through an explicit user command.
//
// Every failure is wrapped with common.ErrStorageUnavailable.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/migrations"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Connect opens (creating if needed) the SQLite database at dsn and verifies
// it is reachable. The schema is left as found; see Migrate.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorageUnavailable, dsn, err)
	}

	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", common.ErrStorageUnavailable, dsn, err)
	}
	return db, nil
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, log logging.Logger) (*sql.DB, error) {
	db, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return nil, fmt.Errorf("%w: migration provider: %w", common.ErrStorageUnavailable, err)
	}
	return p, nil
}

// Migrate applies all pending migrations. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, log logging.Logger) error {
	p, err := newProvider(db)
	if err != nil {
		return err
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("%w: migrate up: %w", common.ErrStorageUnavailable, err)
	}
	logResults(ctx, log, results)

	v, err := Version(ctx, db)
	if err != nil {
		return err
	}
	log.Debug(ctx, "database ready", "schema_version", v)
	return nil
}

// Reset rolls every migration back and applies them again, leaving empty
// users and metadata tables.
func Reset(ctx context.Context, db *sql.DB, log logging.Logger) error {
	p, err := newProvider(db)
	if err != nil {
		return err
	}

	down, err := p.DownTo(ctx, 0)
	if err != nil {
		return fmt.Errorf("%w: migrate down: %w", common.ErrStorageUnavailable, err)
	}
	logResults(ctx, log, down)

	up, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("%w: migrate up: %w", common.ErrStorageUnavailable, err)
	}
	logResults(ctx, log, up)

	log.Warn(ctx, "database reset")
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	p, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: schema version: %w", common.ErrStorageUnavailable, err)
	}
	return v, nil
}

func logResults(ctx context.Context, log logging.Logger, results []*goose.MigrationResult) {
	for _, r := range results {
		log.Info(ctx, "migration applied",
			"version", r.Source.Version,
			"direction", r.Direction,
			"duration", r.Duration)
	}
}
