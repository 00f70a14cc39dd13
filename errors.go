package sqlmux

import (
	"errors"
	"fmt"
)

// Category classifies every error returned by sqlmux operations.
//
// The taxonomy is categorical rather than exception-typed: callers branch on the
// category (and, for driver and pool errors, the backend tag) instead of on
// driver-specific error types.
type Category int

const (
	// CategoryOther is the catch-all for wrapper errors.
	CategoryOther Category = iota
	// CategoryConfig is a malformed connection descriptor or unsupported combination.
	CategoryConfig
	// CategoryConnection is a failed handshake, broken socket, dead worker, or
	// a driver refusing a connection.
	CategoryConnection
	// CategoryParameter is a unified value that cannot be represented in the
	// backend's type system.
	CategoryParameter
	// CategoryExecution is an operation sqlmux refuses in the current state: a
	// finished transaction, a closed or stale prepared statement, a SQLite
	// transaction mismatch, or non-transactional work while a SQLite
	// transaction is open. Errors the driver returns, including constraint
	// violations and "no such column", are CategoryDriver.
	CategoryExecution
	// CategoryUnimplemented is a capability a backend does not offer.
	CategoryUnimplemented
	// CategoryPool is a pool failure: exhausted beyond the acquire timeout, or
	// the pool refusing a checkout.
	CategoryPool
	// CategoryDriver is an error surfaced verbatim from a backend driver.
	CategoryDriver
)

func (c Category) String() string {
	switch c {
	case CategoryConfig:
		return "configuration"
	case CategoryConnection:
		return "connection"
	case CategoryParameter:
		return "parameter"
	case CategoryExecution:
		return "execution"
	case CategoryUnimplemented:
		return "unimplemented"
	case CategoryPool:
		return "pool"
	case CategoryDriver:
		return "driver"
	default:
		return "other"
	}
}

// ErrPoolExhausted is wrapped by PoolExhausted so callers can errors.Is on it.
var ErrPoolExhausted = errors.New("no connection became available within the acquire timeout")

// Error is the single error type exposed by all sqlmux operations.
//
// Driver and pool errors additionally carry the backend tag, so both
// "is this an execution error" and "is this a sqlite error" are answerable:
//
//	var mux *sqlmux.Error
//	if errors.As(err, &mux) && mux.Category == sqlmux.CategoryDriver {
//	    log.Println(mux.Database, mux.Error())
//	}
//
// The payload message of a wrapped driver error is preserved verbatim so
// driver-side diagnostics like "no such column" survive the round trip.
type Error struct {
	// Category is the taxonomy bucket.
	Category Category
	// Database is the backend tag, set for driver and pool errors.
	Database DatabaseType
	// Message is the human-readable payload for errors raised by sqlmux itself.
	Message string
	// Cause is the wrapped driver or pool error, if any.
	Cause error
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil && e.Category == CategoryDriver:
		return fmt.Sprintf("%s error: %v", e.Database, e.Cause)
	case e.Cause != nil && e.Category == CategoryPool:
		return fmt.Sprintf("%s pool error: %v", e.Database, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s error: %v", e.Category, e.Cause)
	default:
		return fmt.Sprintf("%s error: %s", e.Category, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// ConfigError reports a malformed or unsupported configuration.
func ConfigError(format string, args ...any) *Error {
	return &Error{Category: CategoryConfig, Message: fmt.Sprintf(format, args...)}
}

// ConnectionError reports a failed or broken connection.
func ConnectionError(format string, args ...any) *Error {
	return &Error{Category: CategoryConnection, Message: fmt.Sprintf(format, args...)}
}

// ParameterError reports a value that cannot be represented by a backend.
func ParameterError(format string, args ...any) *Error {
	return &Error{Category: CategoryParameter, Message: fmt.Sprintf(format, args...)}
}

// ExecutionError reports an operation refused in the current connection or
// transaction state.
func ExecutionError(format string, args ...any) *Error {
	return &Error{Category: CategoryExecution, Message: fmt.Sprintf(format, args...)}
}

// Unimplemented reports a capability a backend does not offer.
func Unimplemented(format string, args ...any) *Error {
	return &Error{Category: CategoryUnimplemented, Message: fmt.Sprintf(format, args...)}
}

// OtherError wraps an error that fits no other category.
func OtherError(cause error) *Error {
	return &Error{Category: CategoryOther, Cause: cause}
}

// PostgresError wraps a pgx error verbatim.
func PostgresError(cause error) *Error { return driverError(Postgres, cause) }

// SqliteError wraps a go-sqlite3 error verbatim.
func SqliteError(cause error) *Error { return driverError(Sqlite, cause) }

// MssqlError wraps a go-mssqldb error verbatim.
func MssqlError(cause error) *Error { return driverError(Mssql, cause) }

// LibsqlError wraps a libsql driver error verbatim.
func LibsqlError(cause error) *Error { return driverError(Libsql, cause) }

// TursoError wraps a libsql driver error from a Turso backend verbatim.
func TursoError(cause error) *Error { return driverError(Turso, cause) }

// DriverError wraps a backend driver error verbatim under the given tag.
func DriverError(db DatabaseType, cause error) *Error { return driverError(db, cause) }

func driverError(db DatabaseType, cause error) *Error {
	return &Error{Category: CategoryDriver, Database: db, Cause: cause}
}

// PoolError wraps a checkout or pool-management failure for a backend.
func PoolError(db DatabaseType, cause error) *Error {
	return &Error{Category: CategoryPool, Database: db, Cause: cause}
}

// PoolExhausted reports a bounded pool that stayed empty beyond the acquire
// timeout.
func PoolExhausted(db DatabaseType) *Error {
	return &Error{Category: CategoryPool, Database: db, Cause: ErrPoolExhausted}
}

// CategoryOf returns the taxonomy bucket of err, or CategoryOther when err was
// not produced by sqlmux.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryOther
}

// DatabaseOf returns the backend tag carried by err, if any.
func DatabaseOf(err error) (DatabaseType, bool) {
	var e *Error
	if errors.As(err, &e) && (e.Category == CategoryDriver || e.Category == CategoryPool) {
		return e.Database, true
	}
	return 0, false
}
