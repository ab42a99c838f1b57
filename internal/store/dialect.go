package store

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported database drivers, as accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pqUniqueViolation = "23505"

// Dialect captures the SQL differences between the supported databases.
type Dialect struct {
	// Driver is the database/sql driver name.
	Driver string

	placeholder   sq.PlaceholderFormat
	likeOperator  string
	orderBy       string
	gooseDialect  goose.Dialect
	migrationsDir string
	uniqueCheck   func(error) bool
}

var (
	// SQLite is the dialect for the file-backed modernc.org/sqlite driver.
	// LIKE is case-insensitive for ASCII in SQLite.
	SQLite = Dialect{
		Driver:        DriverSQLite,
		placeholder:   sq.Question,
		likeOperator:  "LIKE",
		orderBy:       "abbreviation ASC",
		gooseDialect:  goose.DialectSQLite3,
		migrationsDir: "migrations/sqlite",
		uniqueCheck:   isSQLiteUniqueViolation,
	}

	// Postgres is the dialect for lib/pq.
	Postgres = Dialect{
		Driver:        DriverPostgres,
		placeholder:   sq.Dollar,
		likeOperator:  "ILIKE",
		orderBy:       `abbreviation COLLATE "C" ASC`,
		gooseDialect:  goose.DialectPostgres,
		migrationsDir: "migrations/postgres",
		uniqueCheck:   isPQUniqueViolation,
	}
)

// DialectFor returns the dialect registered for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3":
		return SQLite, nil
	case DriverPostgres, "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q (allowed: %s|%s)", driver, DriverSQLite, DriverPostgres)
	}
}

// isUniqueViolation reports whether err is a unique constraint failure.
func (d Dialect) isUniqueViolation(err error) bool {
	if err == nil || d.uniqueCheck == nil {
		return false
	}
	return d.uniqueCheck(err)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// isPQUniqueViolation checks whether the error is a PostgreSQL unique
// constraint violation (error code 23505).
func isPQUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// isSQLiteUniqueViolation checks whether the error is a SQLite UNIQUE
// constraint failure.
func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
