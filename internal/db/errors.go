package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/orderload/pkg/orderload"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	pgCodeUniqueViolation = "23505"
	myDuplicateEntry      = 1062
)

// IsUniqueViolation reports whether err is a primary key or unique constraint
// violation from any supported driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCodeUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == myDuplicateEntry
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	return false
}

// connectionHints returns the command a user can run to check the server is up.
func connectionHints(driver orderload.Driver, host string, port int) (probe, passwordSource string) {
	switch driver {
	case orderload.DriverMySQL:
		return fmt.Sprintf("mysqladmin ping -h %s -P %d", host, port), "$MYSQL_PWD or the connection string"
	default:
		return fmt.Sprintf("pg_isready -h %s -p %d", host, port), "$PGPASSWORD or ~/.pgpass"
	}
}

// wrapConnectionError wraps raw driver connection errors with actionable guidance.
func wrapConnectionError(err error, config *orderload.ConnectionConfig) error {
	errStr := strings.ToLower(err.Error())
	if config.Driver == orderload.DriverSQLite {
		return fmt.Errorf("failed to open sqlite database %q: %w", config.Path, err)
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	probe, passwordSource := connectionHints(config.Driver, config.Host, config.Port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - The %s server is not running (check: %s)
  - Wrong host or port
  - Firewall blocking the connection

Original error: %w`, addr, config.Driver, probe, err)

	case strings.Contains(errStr, "no such host"):
		return fmt.Errorf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable

Original error: %w`, config.Host, err)

	case strings.Contains(errStr, "password authentication failed") || strings.Contains(errStr, "access denied"):
		return fmt.Errorf(`authentication failed for user "%s" on database "%s"

Possible causes:
  - Wrong password (check %s)
  - Wrong username
  - User does not have access to the database

Original error: %w`, config.Username, config.Database, passwordSource, err)

	case strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "unknown database"):
		return fmt.Errorf(`database "%s" does not exist

Create it first, then run "orderload init" to get the orders table DDL.

Original error: %w`, config.Database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)

Original error: %w`, addr, err)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return fmt.Errorf(`SSL/TLS connection error

Possible causes:
  - Server requires SSL but --sslmode is wrong
  - Certificate verification failed (try --sslmode=require)

Original error: %w`, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`too many connections to database "%s"

Original error: %w`, config.Database, err)

	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}
