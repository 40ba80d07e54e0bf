package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DialectFor maps a driver name to the bun dialect the schema was
// written for. Postgres and sqlite are the two dialects the migration
// set ships.
func DialectFor(driver string) (schema.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pg", "postgresql":
		return pgdialect.New(), nil
	case "sqlite", "sqlite3":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// OpenBunDB opens a database/sql handle for the given driver and wraps
// it in a bun.DB with the matching dialect. The caller owns the handle.
func OpenBunDB(driver string, dsn string) (*bun.DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	driverName := strings.ToLower(strings.TrimSpace(driver))
	switch driverName {
	case "pg", "postgresql":
		driverName = "postgres"
	case "sqlite":
		driverName = "sqlite3"
	}
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s database: %w", driverName, err)
	}
	return bun.NewDB(sqlDB, dialect), nil
}
