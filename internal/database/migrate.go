package database

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// gooseUp is a seam for tests; the real call needs a live database.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

var gooseStatus = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.StatusContext(ctx, db, dir)
}

func setupGoose() error {
	goose.SetBaseFS(migrationsFS)
	return goose.SetDialect("mysql")
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return oops.In("database").Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	if err := gooseUp(ctx, db, "migrations"); err != nil {
		return oops.In("database").Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// MigrationStatus logs the applied state of every embedded migration.
func MigrationStatus(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return oops.In("database").Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	if err := gooseStatus(ctx, db, "migrations"); err != nil {
		return oops.In("database").Code("MIGRATION_STATUS_FAILED").Wrap(err)
	}
	return nil
}
