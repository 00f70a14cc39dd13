// Package sqlmux multiplexes application code over several relational engines
// through a single value-typed data and parameter model.
//
// The package is split the same way the supported engines are: this root package
// holds everything backend-neutral — the unified Value variant, rows and result
// sets, the placeholder translator, the erased connection handle and the error
// taxonomy — while each engine lives in its own driver package under drivers/.
//
// # Basic Usage
//
//	import (
//	    "github.com/sqlmux/sqlmux"
//	    "github.com/sqlmux/sqlmux/drivers/sqlite"
//	)
//
//	cap, err := sqlite.NewConfigAndPool(ctx, sqlite.Config{Path: "app.db", PoolSize: 4})
//	if err != nil { ... }
//	conn, err := cap.GetConnection(ctx)
//	if err != nil { ... }
//	defer conn.Release()
//
//	rs, err := conn.Query("SELECT id, name FROM users WHERE id = ?1").
//	    Params(sqlmux.Int(1)).
//	    Select(ctx)
//
// Importing a driver package is what links its backend into the program; the
// public surface of Conn and Tx never mentions a backend.
//
// # Transactions
//
// Begin returns a *Tx; only Tx carries Commit, Rollback, Prepare and the
// tx-scoped statement methods. Dropping a Tx without finishing it — by deferring
// Close, or by releasing the owning connection — always rolls the transaction
// back before the connection re-enters the pool. See Tx for details.
package sqlmux

import "fmt"

// DatabaseType identifies the active backend. It is carried by the pool and by
// every connection handle so callers can branch when necessary.
type DatabaseType int

const (
	// Postgres is a PostgreSQL server reached over the extended wire protocol.
	Postgres DatabaseType = iota
	// Sqlite is an embedded file or in-memory SQLite database.
	Sqlite
	// Mssql is a SQL Server database.
	Mssql
	// Libsql is a libSQL database, local file or remote URL.
	Libsql
	// Turso is a hosted libSQL (Turso platform) database.
	Turso
)

// String returns the lowercase backend name.
func (t DatabaseType) String() string {
	switch t {
	case Postgres:
		return "postgres"
	case Sqlite:
		return "sqlite"
	case Mssql:
		return "mssql"
	case Libsql:
		return "libsql"
	case Turso:
		return "turso"
	default:
		return fmt.Sprintf("DatabaseType(%d)", int(t))
	}
}

// ParseDatabaseType maps a backend name from a config file onto its tag.
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch s {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return Sqlite, nil
	case "mssql", "sqlserver":
		return Mssql, nil
	case "libsql":
		return Libsql, nil
	case "turso":
		return Turso, nil
	default:
		return 0, ConfigError("unknown database type %q", s)
	}
}

// PlaceholderStyleFor returns the placeholder style a backend's SQL dialect
// uses natively, and whether the backend participates in translation at all.
// SQL Server uses named @pN parameters and is never translated.
func PlaceholderStyleFor(t DatabaseType) (PlaceholderStyle, bool) {
	switch t {
	case Postgres:
		return StyleDollar, true
	case Sqlite, Libsql, Turso:
		return StyleQuestion, true
	default:
		return StyleQuestion, false
	}
}
