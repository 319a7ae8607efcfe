// Package database opens the SQL record store and applies its schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"kycbuster/internal/records/store"
	"kycbuster/pkg/platform/audit/store/sqlstore"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects and pings. SQLite is limited to one connection because
// the driver serializes writers anyway and in-memory databases are
// per-connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Migrate creates the record and audit tables if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for name, schema := range map[string]string{
		"records": store.Schema,
		"audit":   sqlstore.Schema,
	} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("apply %s schema: %w", name, err)
		}
	}
	return nil
}
