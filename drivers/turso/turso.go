// Package turso provides the Turso backend: a hosted libSQL database reached
// through the libsql driver, tagged and classified separately so callers can
// tell platform databases apart from self-hosted libSQL.
//
//	cap, err := turso.NewConfigAndPool(ctx, turso.Config{
//	    URL:       "libsql://mydb-org.turso.io",
//	    AuthToken: token,
//	    PoolSize:  4,
//	})
package turso

import (
	"context"
	"time"

	"github.com/sqlmux/sqlmux"
	"github.com/sqlmux/sqlmux/drivers/libsql"
)

// Config describes a Turso database and its pool.
type Config struct {
	// URL is the platform database URL.
	URL string

	// AuthToken is the platform auth token.
	AuthToken string

	PoolSize              int
	AcquireTimeout        time.Duration
	TranslatePlaceholders bool
	Logger                sqlmux.Logger
}

// NewConfigAndPool builds the bounded pool, verifies the handshake, and
// wraps it in the erased facade.
func NewConfigAndPool(ctx context.Context, cfg Config, opts ...sqlmux.Option) (*sqlmux.ConfigAndPool, error) {
	if cfg.AuthToken == "" {
		return nil, sqlmux.ConfigError("turso auth token must not be empty")
	}
	p, err := libsql.NewBackendPool(ctx, sqlmux.Turso, libsql.Config{
		URL:                   cfg.URL,
		AuthToken:             cfg.AuthToken,
		PoolSize:              cfg.PoolSize,
		AcquireTimeout:        cfg.AcquireTimeout,
		TranslatePlaceholders: cfg.TranslatePlaceholders,
		Logger:                cfg.Logger,
	}, func(err error) error { return sqlmux.TursoError(err) })
	if err != nil {
		return nil, err
	}
	return sqlmux.NewPool(p, opts...), nil
}
