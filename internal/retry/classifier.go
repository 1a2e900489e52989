package retry

import (
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL error codes for transient conditions
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
)

// Transient PostgreSQL SQLSTATE classes: connection exception,
// insufficient resources, operator intervention.
var pgTransientClasses = []string{"08", "53", "57"}

// MySQL server and client error numbers for transient conditions
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/
const (
	myTooManyConnections = 1040
	myLockWaitTimeout    = 1205
	myDeadlock           = 1213
	myConnectionError    = 2002
	myConnHostError      = 2003
	myServerGone         = 2006
	myServerLost         = 2013
)

// StoreErrorClassifier implements ErrorClassifier for every supported driver:
// PostgreSQL (pgconn), MySQL (go-sql-driver) and SQLite (modernc).
type StoreErrorClassifier struct{}

// NewStoreErrorClassifier creates a new classifier.
func NewStoreErrorClassifier() *StoreErrorClassifier {
	return &StoreErrorClassifier{}
}

// IsTransient determines if an error is temporary and retryable.
func (c *StoreErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientPgError(pgErr)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return isTransientMySQLError(myErr)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		primary := liteErr.Code() & 0xff
		return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	if isNetworkError(err) {
		return true
	}

	return isConnectionMessage(err)
}

func isTransientPgError(pgErr *pgconn.PgError) bool {
	for _, class := range pgTransientClasses {
		if strings.HasPrefix(pgErr.Code, class) {
			return true
		}
	}

	switch pgErr.Code {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable:
		return true
	}
	return false
}

func isTransientMySQLError(myErr *mysql.MySQLError) bool {
	switch myErr.Number {
	case myTooManyConnections, myLockWaitTimeout, myDeadlock,
		myConnectionError, myConnHostError, myServerGone, myServerLost:
		return true
	}
	return false
}

// isNetworkError checks for network-level errors.
func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() || dnsErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		if opErr.Err != nil {
			for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ENETUNREACH, syscall.EHOSTUNREACH} {
				if errors.Is(opErr.Err, errno) {
					return true
				}
			}
		}
	}

	return false
}

// transientPatterns catch driver errors that arrive as plain strings.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"connection failure",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"too many connections",
	"server closed the connection",
	"unexpected eof",
	"database is locked",
}

func isConnectionMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
