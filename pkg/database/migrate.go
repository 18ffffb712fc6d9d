package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies the embedded migrations for the dialect of db.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	dialect, dir, err := migrationSource(db.DriverName())
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func migrationSource(driverName string) (dialect, dir string, err error) {
	switch driverName {
	case sqliteDriverName:
		return "sqlite3", "migrations/sqlite", nil
	case pgxDriverName:
		return "postgres", "migrations/postgres", nil
	default:
		return "", "", fmt.Errorf("no migrations for driver %q", driverName)
	}
}
