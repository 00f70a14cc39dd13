// Package libsql provides the libSQL backend (the remote-compatible SQLite
// fork) over the libsql database/sql driver.
//
// The descriptor is a URL: libsql://, https://, or wss:// for a remote
// database with an auth token. SQL is the SQLite dialect, placeholders
// included, so this backend participates in placeholder translation exactly
// like the embedded engine.
//
//	cap, err := libsql.NewConfigAndPool(ctx, libsql.Config{
//	    URL:       "libsql://mydb-org.turso.io",
//	    AuthToken: token,
//	    PoolSize:  4,
//	})
package libsql

import (
	"context"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/sqlmux/sqlmux"
	"github.com/sqlmux/sqlmux/drivers/base"
)

// Config describes a libSQL database and its pool.
type Config struct {
	// URL is the database URL (libsql://, https://, or wss://).
	URL string

	// AuthToken authenticates against a remote database, when required.
	AuthToken string

	PoolSize              int
	AcquireTimeout        time.Duration
	TranslatePlaceholders bool
	Logger                sqlmux.Logger
}

// NewConfigAndPool builds the bounded pool, verifies the handshake, and
// wraps it in the erased facade.
func NewConfigAndPool(ctx context.Context, cfg Config, opts ...sqlmux.Option) (*sqlmux.ConfigAndPool, error) {
	p, err := NewBackendPool(ctx, sqlmux.Libsql, cfg,
		func(err error) error { return sqlmux.LibsqlError(err) })
	if err != nil {
		return nil, err
	}
	return sqlmux.NewPool(p, opts...), nil
}

// NewBackendPool builds the base pool under the given backend tag. The Turso
// driver reuses it, since both backends speak through the same libsql driver.
func NewBackendPool(ctx context.Context, db sqlmux.DatabaseType, cfg Config, wrap func(error) error) (*base.Pool, error) {
	if cfg.URL == "" {
		return nil, sqlmux.ConfigError("%s database URL must not be empty", db)
	}
	return base.NewPool(ctx, base.Config{
		DatabaseType:          db,
		DriverName:            "libsql",
		DSN:                   DSN(cfg.URL, cfg.AuthToken),
		PoolSize:              cfg.PoolSize,
		AcquireTimeout:        cfg.AcquireTimeout,
		TranslatePlaceholders: cfg.TranslatePlaceholders,
		Logger:                cfg.Logger,
		BindValue:             base.BindSqliteFamily,
		ScanValue:             base.ScanSqliteFamily,
		WrapError:             wrap,
	})
}

// DSN appends the auth token to the database URL.
func DSN(url, authToken string) string {
	if authToken == "" {
		return url
	}
	return url + "?authToken=" + authToken
}
