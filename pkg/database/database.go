package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tcg-server/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// sql driver names registered by modernc.org/sqlite and pgx/stdlib
	sqliteDriverName = "sqlite"
	pgxDriverName    = "pgx"
)

// InitDB opens the configured database and checks it is reachable.
func InitDB(ctx context.Context, config utils.DatabaseConfig) (*sqlx.DB, error) {
	switch config.Driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, config.Path)
	case DriverPostgres:
		return OpenPostgres(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

// OpenSQLite opens a database file with foreign keys and a busy timeout.
// Writes are serialised through a single connection.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ping(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenPostgres opens a pgx backed pool.
func OpenPostgres(ctx context.Context, config utils.DatabaseConfig) (*sqlx.DB, error) {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=5",
		config.Host, config.Port, config.User, config.Password, config.Name, sslMode)

	db, err := sqlx.Open(pgxDriverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	maxConns := config.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := ping(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func ping(ctx context.Context, db *sqlx.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database failed: %w", err)
	}
	return nil
}
